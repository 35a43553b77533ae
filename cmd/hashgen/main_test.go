package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/secureauth/secureauth/internal/password"
)

func TestRunPrintsVerifiableDigests(t *testing.T) {
	var out bytes.Buffer
	h := password.New(4, false)
	if err := run(&out, h, []string{"345678912345:Password1"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	acct, digest, ok := strings.Cut(strings.TrimSpace(out.String()), "\t")
	if !ok || acct != "345678912345" {
		t.Fatalf("unexpected output %q", out.String())
	}
	if !h.Verify("Password1", digest) {
		t.Fatalf("digest does not verify")
	}
}

func TestRunRejectsBadPairs(t *testing.T) {
	h := password.New(4, false)
	for _, pair := range []string{"no-colon", "123:Password1", "345678912345:short"} {
		if err := run(&bytes.Buffer{}, h, []string{pair}); err == nil {
			t.Fatalf("expected error for %q", pair)
		}
	}
}

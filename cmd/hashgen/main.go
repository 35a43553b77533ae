// Command hashgen prints bcrypt digests for seeding accounts.
//
// Usage:
//
//	hashgen [-cost 12] 345678912345:Password1 [...]
//
// Each argument is an account:password pair; output is one
// "account<TAB>digest" line per pair.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/secureauth/secureauth/internal/account"
	"github.com/secureauth/secureauth/internal/password"
)

func main() {
	cost := flag.Int("cost", 12, "bcrypt cost")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: hashgen [-cost N] account:password [...]")
		os.Exit(2)
	}
	if err := run(os.Stdout, password.New(*cost, false), flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "hashgen: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, hasher *password.Hasher, pairs []string) error {
	for _, pair := range pairs {
		acct, secret, ok := strings.Cut(pair, ":")
		if !ok {
			return fmt.Errorf("%q: expected account:password", pair)
		}
		if !account.ValidAccountNumber(acct) {
			return fmt.Errorf("%q: account number must be 12 digits", acct)
		}
		digest, err := hasher.Hash(secret)
		if err != nil {
			return fmt.Errorf("%s: %w", acct, err)
		}
		fmt.Fprintf(w, "%s\t%s\n", acct, digest)
	}
	return nil
}

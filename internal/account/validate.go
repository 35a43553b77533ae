package account

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/secureauth/secureauth/internal/apperr"
)

var (
	accountNumberPattern = regexp.MustCompile(`^\d{12}$`)
	phonePattern         = regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`)
)

const (
	minAge = 18
	maxAge = 120
)

var requiredFields = []string{
	"account_number", "first_name", "last_name", "age", "gender",
	"phone_number", "address", "bank_account_type",
	"date_of_account_opening", "branch_code", "password",
}

// ValidAccountNumber reports whether s is exactly 12 digits.
func ValidAccountNumber(s string) bool { return accountNumberPattern.MatchString(s) }

// ValidPhone reports whether s has the form (XXX) XXX-XXXX.
func ValidPhone(s string) bool { return phonePattern.MatchString(s) }

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, s)
	return t, err == nil
}

// fields is a decoded JSON object from a request body.
type fields map[string]any

func (f fields) has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f fields) str(op, key string) (string, error) {
	s, ok := f[key].(string)
	if !ok {
		return "", apperr.Validation(op, fmt.Sprintf("Field %s must be a string.", key))
	}
	return s, nil
}

// age accepts a JSON number or a numeric string, like the original form clients send.
func (f fields) age(op string) (int, error) {
	var n int
	switch v := f["age"].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, apperr.Validation(op, "Age must be a valid number.")
		}
		n = int(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, apperr.Validation(op, "Age must be a valid number.")
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, apperr.Validation(op, "Age must be a valid number.")
		}
		n = i
	default:
		return 0, apperr.Validation(op, "Age must be a valid number.")
	}
	if n < minAge || n > maxAge {
		return 0, apperr.Validation(op, "Age must be between 18 and 120.")
	}
	return n, nil
}

func parseRegistration(f fields) (RegisterInput, error) {
	const op = "account.parseRegistration"

	var missing []string
	for _, key := range requiredFields {
		if !f.has(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return RegisterInput{}, apperr.Validation(op, "Missing required fields: "+strings.Join(missing, ", "))
	}

	str := map[string]string{}
	for _, key := range requiredFields {
		if key == "age" {
			continue
		}
		s, err := f.str(op, key)
		if err != nil {
			return RegisterInput{}, err
		}
		str[key] = s
	}

	if !ValidAccountNumber(str["account_number"]) {
		return RegisterInput{}, apperr.Validation(op, "Invalid account number format. Must be 12 digits.")
	}
	if !ValidPhone(str["phone_number"]) {
		return RegisterInput{}, apperr.Validation(op, "Invalid phone number format. Use (XXX) XXX-XXXX.")
	}
	opened, ok := ParseDate(str["date_of_account_opening"])
	if !ok {
		return RegisterInput{}, apperr.Validation(op, "Invalid date format. Use YYYY-MM-DD.")
	}
	age, err := f.age(op)
	if err != nil {
		return RegisterInput{}, err
	}

	return RegisterInput{
		AccountNumber: str["account_number"],
		Password:      str["password"],
		Profile: Profile{
			FirstName:            str["first_name"],
			LastName:             str["last_name"],
			Age:                  age,
			Gender:               str["gender"],
			PhoneNumber:          str["phone_number"],
			Address:              str["address"],
			BankAccountType:      str["bank_account_type"],
			DateOfAccountOpening: opened,
			BranchCode:           str["branch_code"],
		},
	}, nil
}

func parsePatch(f fields) (Patch, error) {
	const op = "account.parsePatch"
	var p Patch

	text := func(key string, dst **string) error {
		if !f.has(key) {
			return nil
		}
		s, err := f.str(op, key)
		if err != nil {
			return err
		}
		*dst = &s
		return nil
	}

	if err := text("phone_number", &p.PhoneNumber); err != nil {
		return Patch{}, err
	}
	if p.PhoneNumber != nil && !ValidPhone(*p.PhoneNumber) {
		return Patch{}, apperr.Validation(op, "Invalid phone number format. Use (XXX) XXX-XXXX.")
	}

	if f.has("date_of_account_opening") {
		s, err := f.str(op, "date_of_account_opening")
		if err != nil {
			return Patch{}, err
		}
		opened, ok := ParseDate(s)
		if !ok {
			return Patch{}, apperr.Validation(op, "Invalid date format. Use YYYY-MM-DD.")
		}
		p.DateOfAccountOpening = &opened
	}

	if f.has("age") {
		age, err := f.age(op)
		if err != nil {
			return Patch{}, err
		}
		p.Age = &age
	}

	for key, dst := range map[string]**string{
		"first_name":        &p.FirstName,
		"last_name":         &p.LastName,
		"gender":            &p.Gender,
		"address":           &p.Address,
		"bank_account_type": &p.BankAccountType,
		"branch_code":       &p.BranchCode,
		"password":          &p.Password,
	} {
		if err := text(key, dst); err != nil {
			return Patch{}, err
		}
	}

	return p, nil
}

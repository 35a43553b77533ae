package account

import (
	"strings"
	"time"

	"github.com/secureauth/secureauth/internal/session"
)

// DateLayout is the wire and storage format of the account opening date.
const DateLayout = "2006-01-02"

// Profile holds the descriptive fields of an account holder.
type Profile struct {
	FirstName            string
	LastName             string
	Age                  int
	Gender               string
	PhoneNumber          string
	Address              string
	BankAccountType      string
	DateOfAccountOpening time.Time
	BranchCode           string
}

// Account is the persisted record for one account holder.
type Account struct {
	AccountNumber string
	PasswordHash  string
	Profile

	LoginAttempts     int
	LastFailedAttempt *time.Time
	LastLogin         *time.Time
	CreatedAt         time.Time
}

// FullName joins first and last name.
func (a Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// RegisterInput is the data required to open an account.
type RegisterInput struct {
	AccountNumber string
	Password      string
	Profile
}

// Patch carries a partial profile update; nil fields are left untouched.
type Patch struct {
	FirstName            *string
	LastName             *string
	Age                  *int
	Gender               *string
	PhoneNumber          *string
	Address              *string
	BankAccountType      *string
	DateOfAccountOpening *time.Time
	BranchCode           *string
	Password             *string
}

func (p Patch) apply(a *Account) {
	if p.FirstName != nil {
		a.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		a.LastName = *p.LastName
	}
	if p.Age != nil {
		a.Age = *p.Age
	}
	if p.Gender != nil {
		a.Gender = *p.Gender
	}
	if p.PhoneNumber != nil {
		a.PhoneNumber = *p.PhoneNumber
	}
	if p.Address != nil {
		a.Address = *p.Address
	}
	if p.BankAccountType != nil {
		a.BankAccountType = *p.BankAccountType
	}
	if p.DateOfAccountOpening != nil {
		a.DateOfAccountOpening = *p.DateOfAccountOpening
	}
	if p.BranchCode != nil {
		a.BranchCode = *p.BranchCode
	}
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Account Account
	Token   session.Token
}

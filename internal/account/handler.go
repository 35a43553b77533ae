package account

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/secureauth/secureauth/internal/apperr"
	"github.com/secureauth/secureauth/internal/middleware"
)

// Handler exposes account endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginRequest struct {
	AccountNumber string `json:"account_number"`
	Password      string `json:"password"`
}

type userSummary struct {
	Name          string `json:"name"`
	AccountType   string `json:"account_type"`
	AccountNumber string `json:"account_number"`
}

type loginResponse struct {
	Success   bool        `json:"success"`
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expires_in"`
	User      userSummary `json:"user"`
}

type profileView struct {
	AccountNumber        string  `json:"account_number"`
	FirstName            string  `json:"first_name"`
	LastName             string  `json:"last_name"`
	Age                  int     `json:"age"`
	Gender               string  `json:"gender"`
	PhoneNumber          string  `json:"phone_number"`
	Address              string  `json:"address"`
	BankAccountType      string  `json:"bank_account_type"`
	DateOfAccountOpening *string `json:"date_of_account_opening"`
	BranchCode           string  `json:"branch_code"`
	LastLogin            *string `json:"last_login"`
}

func newProfileView(a Account) profileView {
	v := profileView{
		AccountNumber:   a.AccountNumber,
		FirstName:       a.FirstName,
		LastName:        a.LastName,
		Age:             a.Age,
		Gender:          a.Gender,
		PhoneNumber:     a.PhoneNumber,
		Address:         a.Address,
		BankAccountType: a.BankAccountType,
		BranchCode:      a.BranchCode,
	}
	if !a.DateOfAccountOpening.IsZero() {
		s := a.DateOfAccountOpening.Format(DateLayout)
		v.DateOfAccountOpening = &s
	}
	if a.LastLogin != nil {
		s := a.LastLogin.UTC().Format("2006-01-02 15:04:05")
		v.LastLogin = &s
	}
	return v
}

func decodeFields(c *fiber.Ctx, op string) (fields, error) {
	var f fields
	if len(c.Body()) == 0 {
		return nil, apperr.Validation(op, "Request must contain JSON data")
	}
	if err := c.BodyParser(&f); err != nil || f == nil {
		return nil, apperr.Validation(op, "Request must contain JSON data")
	}
	return f, nil
}

// Register handles self-service account opening.
func (h *Handler) Register(c *fiber.Ctx) error { return h.create(c, "account.Register") }

// Add opens an account on behalf of an authenticated caller.
func (h *Handler) Add(c *fiber.Ctx) error { return h.create(c, "account.Add") }

func (h *Handler) create(c *fiber.Ctx, op string) error {
	f, err := decodeFields(c, op)
	if err != nil {
		return err
	}
	in, err := parseRegistration(f)
	if err != nil {
		return err
	}
	a, err := h.service.Register(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success":        true,
		"message":        "User registered successfully",
		"account_number": a.AccountNumber,
	})
}

// Login authenticates and returns a bearer token.
func (h *Handler) Login(c *fiber.Ctx) error {
	const op = "account.Login"
	var req loginRequest
	if len(c.Body()) == 0 || c.BodyParser(&req) != nil {
		return apperr.Validation(op, "Request must contain JSON data")
	}
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	if req.AccountNumber == "" {
		return apperr.Validation(op, "Account number is required")
	}
	if req.Password == "" {
		return apperr.Validation(op, "Password is required")
	}
	if !ValidAccountNumber(req.AccountNumber) {
		return apperr.Validation(op, "Invalid account number format")
	}

	res, err := h.service.Login(c.UserContext(), req.AccountNumber, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		Success:   true,
		Token:     res.Token.Value,
		ExpiresIn: res.Token.ExpiresIn(h.service.now()),
		User: userSummary{
			Name:          res.Account.FullName(),
			AccountType:   res.Account.BankAccountType,
			AccountNumber: res.Account.AccountNumber,
		},
	})
}

// Profile returns the authenticated caller's own profile.
func (h *Handler) Profile(c *fiber.Ctx) error {
	accountNumber := middleware.AccountNumber(c)
	if accountNumber == "" {
		return apperr.New("account.Profile", apperr.ErrUnauthorized, "Authentication required")
	}
	a, err := h.service.Get(c.UserContext(), accountNumber)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "profile": newProfileView(a)})
}

// List returns all account profiles.
func (h *Handler) List(c *fiber.Ctx) error {
	accounts, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	users := make([]profileView, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, newProfileView(a))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "users": users})
}

// Update applies a partial update to the account named in the path.
func (h *Handler) Update(c *fiber.Ctx) error {
	const op = "account.Update"
	accountNumber := c.Params("account_number")
	if !ValidAccountNumber(accountNumber) {
		return apperr.Validation(op, "Invalid account number format. Must be 12 digits.")
	}
	f, err := decodeFields(c, op)
	if err != nil {
		return err
	}
	patch, err := parsePatch(f)
	if err != nil {
		return err
	}
	if _, err := h.service.Update(c.UserContext(), accountNumber, patch); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "message": "Details updated successfully"})
}

// Delete removes the account named in the path.
func (h *Handler) Delete(c *fiber.Ctx) error {
	accountNumber := c.Params("account_number")
	if !ValidAccountNumber(accountNumber) {
		return apperr.Validation("account.Delete", "Invalid account number format. Must be 12 digits.")
	}
	if err := h.service.Delete(c.UserContext(), accountNumber); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "message": "Details removed successfully"})
}

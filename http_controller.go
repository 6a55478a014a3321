package accounts

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 20
)

var resetCodePattern = regexp.MustCompile(fmt.Sprintf(`^[0-9]{%d}$`, ResetCodeLength))

type AccountsControllerRoutes struct {
	Register        string
	SignIn          string
	ForgotPassword  string
	VerifyResetCode string
	ResetPassword   string
	Me              string
	Locations       string
}

// AccountsController exposes Accounts over fiber
type AccountsController struct {
	Debug    bool
	Logger   Logger
	Accounts *Accounts
	Routes   *AccountsControllerRoutes
}

type AccountsControllerOption func(*AccountsController) *AccountsController

// WithControllerDebug dumps request payloads to the logger
func WithControllerDebug(debug bool) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Debug = debug
		return c
	}
}

func WithControllerLogger(logger Logger) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

func NewAccountsController(accounts *Accounts, opts ...AccountsControllerOption) *AccountsController {
	c := &AccountsController{
		Logger:   defLogger{},
		Accounts: accounts,
		Routes: &AccountsControllerRoutes{
			Register:        "/auth/register",
			SignIn:          "/auth/signIn",
			ForgotPassword:  "/auth/forgotPassword",
			VerifyResetCode: "/auth/verifyResetCode",
			ResetPassword:   "/auth/resetPassword",
			Me:              "/users/me",
			Locations:       "/locations",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Accounts == nil {
		panic("Missing Accounts in accounts controller...")
	}

	return c
}

// RegisterAccountRoutes mounts the account routes on router
func RegisterAccountRoutes(router fiber.Router, accounts *Accounts, opts ...AccountsControllerOption) *AccountsController {
	controller := NewAccountsController(accounts, opts...)

	router.Post(controller.Routes.Register, controller.Register).Name("auth.register")
	router.Post(controller.Routes.SignIn, controller.SignIn).Name("auth.sign-in")
	router.Post(controller.Routes.ForgotPassword, controller.ForgotPassword).Name("auth.forgot-password")
	router.Post(controller.Routes.VerifyResetCode, controller.VerifyResetCode).Name("auth.verify-reset-code")
	router.Post(controller.Routes.ResetPassword, controller.ResetPassword).Name("auth.reset-password")
	router.Get(controller.Routes.Locations, controller.ListLocations).Name("locations.list")

	protected := ProtectedRoute(accounts.Authenticator())
	router.Get(controller.Routes.Me, protected, controller.Me).Name("users.me.get")
	router.Patch(controller.Routes.Me, protected, controller.UpdateMe).Name("users.me.update")
	router.Delete(controller.Routes.Me, protected, controller.DeleteMe).Name("users.me.delete")

	return controller
}

// RegisterRequest payload
type RegisterRequest struct {
	FirstName  string `json:"firstName" form:"firstName"`
	LastName   string `json:"lastName" form:"lastName"`
	Username   string `json:"username" form:"username"`
	Email      string `json:"email" form:"email"`
	Phone      string `json:"phoneNumber" form:"phoneNumber"`
	Password   string `json:"password" form:"password"`
	LocationID string `json:"location" form:"location"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required),
		validation.Field(&r.LastName, validation.Required),
		validation.Field(&r.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
		validation.Field(&r.LocationID, validation.Required),
	)
}

// UpdateProfileRequest payload, absent fields are left unchanged
type UpdateProfileRequest struct {
	FirstName               *string                  `json:"firstName" form:"firstName"`
	LastName                *string                  `json:"lastName" form:"lastName"`
	Username                *string                  `json:"username" form:"username"`
	Email                   *string                  `json:"email" form:"email"`
	Phone                   *string                  `json:"phoneNumber" form:"phoneNumber"`
	Bio                     *string                  `json:"bio" form:"bio"`
	LocationID              *string                  `json:"location" form:"location"`
	NotificationPreferences []NotificationPreference `json:"notificationPreference"`
	SocialLinks             []SocialLink             `json:"socialLinks"`
}

func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.NilOrNotEmpty),
		validation.Field(&r.LastName, validation.NilOrNotEmpty),
		validation.Field(&r.Username, validation.NilOrNotEmpty, validation.Length(3, 50)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&r.Bio, validation.Length(0, 500)),
		validation.Field(&r.LocationID, validation.NilOrNotEmpty),
	)
}

// SignInRequest payload
type SignInRequest struct {
	Identifier string `json:"email" form:"email"`
	Password   string `json:"password" form:"password"`
}

func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// ForgotPasswordRequest payload
type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email"`
}

func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// VerifyResetCodeRequest payload
type VerifyResetCodeRequest struct {
	Email string `json:"email" form:"email"`
	Code  string `json:"code" form:"code"`
}

func (r VerifyResetCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required, validation.Match(resetCodePattern)),
	)
}

// ResetPasswordRequest payload
type ResetPasswordRequest struct {
	Email    string `json:"email" form:"email"`
	Proof    string `json:"proof" form:"proof"`
	Password string `json:"password" form:"password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Proof, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
	)
}

type validatable interface {
	Validate() error
}

// bind parses and validates the body, on failure the response is already
// written and handled is true.
func (a *AccountsController) bind(c *fiber.Ctx, payload validatable) (bool, error) {
	if err := c.BodyParser(payload); err != nil {
		return true, c.Status(fiber.StatusBadRequest).JSON(ErrorBody{
			Error: "malformed request body",
			Code:  "BAD_REQUEST",
		})
	}

	if err := payload.Validate(); err != nil {
		return true, c.Status(fiber.StatusBadRequest).JSON(ErrorBody{
			Error:  "validation failed",
			Code:   "VALIDATION_FAILED",
			Fields: err,
		})
	}

	return false, nil
}

func (a *AccountsController) Register(c *fiber.Ctx) error {
	payload := new(RegisterRequest)
	if handled, err := a.bind(c, payload); handled {
		return err
	}

	if a.Debug {
		// the password never reaches the log
		dump := *payload
		dump.Password = ""
		a.Logger.Debug("register payload: %s", print.MaybePrettyJSON(dump))
	}

	identity, err := a.Accounts.Register(c.UserContext(), RegisterIdentityMessage{
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		Username:   payload.Username,
		Email:      payload.Email,
		Phone:      payload.Phone,
		Password:   payload.Password,
		LocationID: payload.LocationID,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "user registered, verify your email to keep the account",
		"user":    ToView(identity),
	})
}

func (a *AccountsController) SignIn(c *fiber.Ctx) error {
	payload := new(SignInRequest)
	if handled, err := a.bind(c, payload); handled {
		return err
	}

	session, err := a.Accounts.SignIn(c.UserContext(), payload.Identifier, payload.Password)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(session)
}

func (a *AccountsController) ForgotPassword(c *fiber.Ctx) error {
	payload := new(ForgotPasswordRequest)
	if handled, err := a.bind(c, payload); handled {
		return err
	}

	if err := a.Accounts.RequestReset(c.UserContext(), payload.Email); err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "reset code sent",
	})
}

func (a *AccountsController) VerifyResetCode(c *fiber.Ctx) error {
	payload := new(VerifyResetCodeRequest)
	if handled, err := a.bind(c, payload); handled {
		return err
	}

	resp, err := a.Accounts.VerifyResetCode(c.UserContext(), payload.Email, payload.Code)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (a *AccountsController) ResetPassword(c *fiber.Ctx) error {
	payload := new(ResetPasswordRequest)
	if handled, err := a.bind(c, payload); handled {
		return err
	}

	session, err := a.Accounts.ResetPassword(c.UserContext(), payload.Email, payload.Proof, payload.Password)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(session)
}

func (a *AccountsController) Me(c *fiber.Ctx) error {
	identity, ok := CurrentIdentity(c)
	if !ok {
		return writeError(c, ErrUnauthorized)
	}

	return c.Status(fiber.StatusOK).JSON(ToView(identity))
}

func (a *AccountsController) UpdateMe(c *fiber.Ctx) error {
	identity, ok := CurrentIdentity(c)
	if !ok {
		return writeError(c, ErrUnauthorized)
	}

	payload := new(UpdateProfileRequest)
	if handled, err := a.bind(c, payload); handled {
		return err
	}

	if a.Debug {
		a.Logger.Debug("update profile payload: %s", print.MaybePrettyJSON(payload))
	}

	updated, err := a.Accounts.UpdateProfile(c.UserContext(), identity.ID, UpdateProfileMessage{
		FirstName:               payload.FirstName,
		LastName:                payload.LastName,
		Username:                payload.Username,
		Email:                   payload.Email,
		Phone:                   payload.Phone,
		Bio:                     payload.Bio,
		LocationID:              payload.LocationID,
		NotificationPreferences: payload.NotificationPreferences,
		SocialLinks:             payload.SocialLinks,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(ToView(updated))
}

func (a *AccountsController) DeleteMe(c *fiber.Ctx) error {
	identity, ok := CurrentIdentity(c)
	if !ok {
		return writeError(c, ErrUnauthorized)
	}

	if err := a.Accounts.DeleteIdentity(c.UserContext(), identity.ID); err != nil {
		return writeError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (a *AccountsController) ListLocations(c *fiber.Ctx) error {
	locations, err := a.Accounts.Locations(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(locations)
}

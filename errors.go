package accounts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodeUsernameTaken      = "USERNAME_TAKEN"
	TextCodeIdentityConflict   = "IDENTITY_CONFLICT"
	TextCodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	TextCodeLocationNotFound   = "LOCATION_NOT_FOUND"
	TextCodeRoleNotFound       = "ROLE_NOT_FOUND"
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeResetCodeIncorrect = "RESET_CODE_INCORRECT"
	TextCodeResetCodeExpired   = "RESET_CODE_EXPIRED"
	TextCodeResetProofInvalid  = "RESET_PROOF_INVALID"
	TextCodeDeliveryFailed     = "DELIVERY_FAILED"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodePasswordTooLong    = "PASSWORD_TOO_LONG"
	TextCodeInvalidPhone       = "INVALID_PHONE_NUMBER"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeTokenScope         = "TOKEN_SCOPE_MISMATCH"
	TextCodeInternal           = "INTERNAL_ERROR"
)

// ErrEmailTaken is returned when another identity already holds the email.
var ErrEmailTaken = goerrors.New("there is already an account with that email", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrUsernameTaken is returned when another identity already holds the username.
var ErrUsernameTaken = goerrors.New("there is already a user with that username", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(goerrors.CodeConflict)

// ErrIdentityConflict is returned when the store rejects an insert on a unique column.
var ErrIdentityConflict = goerrors.New("username or email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeIdentityConflict).
	WithCode(goerrors.CodeConflict)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrLocationNotFound is returned when registration references an unknown location.
var ErrLocationNotFound = goerrors.New("specified location does not exist", goerrors.CategoryNotFound).
	WithTextCode(TextCodeLocationNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrRoleNotFound = goerrors.New("role not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRoleNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUnauthorized is returned for unknown identities and wrong passwords alike.
var ErrUnauthorized = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

var ErrResetCodeIncorrect = goerrors.New("reset code is incorrect", goerrors.CategoryValidation).
	WithTextCode(TextCodeResetCodeIncorrect).
	WithCode(goerrors.CodeBadRequest)

var ErrResetCodeExpired = goerrors.New("reset code has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeResetCodeExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrResetProofInvalid is returned when a reset proof no longer matches an active code.
var ErrResetProofInvalid = goerrors.New("invalid or already used password reset proof", goerrors.CategoryNotFound).
	WithTextCode(TextCodeResetProofInvalid).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

var ErrPasswordTooLong = goerrors.New("password exceeds the maximum length", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordTooLong).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is what the hasher returns on a wrong password.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

var ErrInvalidPhone = goerrors.New("phone number is not valid", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidPhone).
	WithCode(goerrors.CodeBadRequest)

var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenScope = goerrors.New("token is not valid for this operation", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenScope).
	WithCode(goerrors.CodeUnauthorized)

// newDeliveryFailedError keeps the mailer fault as source so callers can retry.
func newDeliveryFailedError(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver email").
		WithTextCode(TextCodeDeliveryFailed)
}

// newInternalError logs the underlying fault and returns an opaque error.
func newInternalError(logger Logger, err error, message string) *goerrors.Error {
	normalizeLogger(logger).Error("%s: %v", message, err)
	return goerrors.New(message, goerrors.CategoryInternal).
		WithTextCode(TextCodeInternal)
}

// domainOrInternal passes rich errors through and hides everything else.
func domainOrInternal(logger Logger, err error, message string) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return newInternalError(logger, err, message)
}

func asRichError(err error) (*goerrors.Error, bool) {
	if err == nil {
		return nil, false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return nil, false
	}
	return richErr, true
}

// IsConflict reports a uniqueness violation.
func IsConflict(err error) bool {
	richErr, ok := asRichError(err)
	return ok && richErr.Category == goerrors.CategoryConflict
}

// IsNotFound reports a missing identity, location or reset proof.
func IsNotFound(err error) bool {
	richErr, ok := asRichError(err)
	return ok && richErr.Category == goerrors.CategoryNotFound
}

// IsUnauthorized reports bad credentials or an unusable token.
func IsUnauthorized(err error) bool {
	richErr, ok := asRichError(err)
	return ok && richErr.Category == goerrors.CategoryAuth
}

func IsCodeIncorrect(err error) bool {
	richErr, ok := asRichError(err)
	return ok && richErr.TextCode == TextCodeResetCodeIncorrect
}

func IsCodeExpired(err error) bool {
	richErr, ok := asRichError(err)
	return ok && richErr.TextCode == TextCodeResetCodeExpired
}

func IsDeliveryFailed(err error) bool {
	richErr, ok := asRichError(err)
	return ok && richErr.TextCode == TextCodeDeliveryFailed
}

// IsBadInput reports validation failures on caller supplied values.
func IsBadInput(err error) bool {
	richErr, ok := asRichError(err)
	return ok && (richErr.Category == goerrors.CategoryValidation ||
		richErr.Category == goerrors.CategoryBadInput)
}

// IsInternal reports an unexpected storage or infrastructure fault.
func IsInternal(err error) bool {
	if err == nil {
		return false
	}
	richErr, ok := asRichError(err)
	return !ok || richErr.Category == goerrors.CategoryInternal
}

// isUniqueViolation detects unique constraint errors from postgres and sqlite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

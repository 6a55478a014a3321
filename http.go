package accounts

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

const (
	// LocalsIdentityKey holds the authenticated *Identity in fiber locals
	LocalsIdentityKey = "accounts.identity"
	bearerScheme      = "Bearer"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Fields any    `json:"fields,omitempty"`
}

// StatusFor maps the error taxonomy to an HTTP status
func StatusFor(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case IsCodeExpired(err):
		return fiber.StatusGone
	case IsCodeIncorrect(err):
		return fiber.StatusBadRequest
	case IsDeliveryFailed(err):
		return fiber.StatusBadGateway
	case IsConflict(err):
		return fiber.StatusConflict
	case IsNotFound(err):
		return fiber.StatusNotFound
	case IsUnauthorized(err):
		return fiber.StatusUnauthorized
	case IsBadInput(err):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// errorBodyFor never exposes the wrapped source of an error
func errorBodyFor(err error) ErrorBody {
	richErr, ok := asRichError(err)
	if !ok || richErr.Category == goerrors.CategoryInternal {
		return ErrorBody{Error: "internal server error", Code: TextCodeInternal}
	}

	return ErrorBody{
		Error: richErr.Message,
		Code:  richErr.TextCode,
	}
}

func writeError(c *fiber.Ctx, err error) error {
	return c.Status(StatusFor(err)).JSON(errorBodyFor(err))
}

// BearerToken extracts the token from an Authorization header
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerScheme) || !strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerScheme):])
}

// ProtectedRoute requires a valid session token and stores the identity
// in the request locals.
func ProtectedRoute(auth *Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return writeError(c, ErrUnauthorized)
		}

		session, err := auth.SessionFromToken(token)
		if err != nil {
			return writeError(c, err)
		}

		identity, err := auth.IdentityFromSession(c.UserContext(), session)
		if err != nil {
			return writeError(c, err)
		}

		ctx := WithSessionContext(c.UserContext(), session)
		c.SetUserContext(WithIdentityContext(ctx, identity))
		c.Locals(LocalsIdentityKey, identity)
		return c.Next()
	}
}

// CurrentIdentity returns the identity stored by ProtectedRoute
func CurrentIdentity(c *fiber.Ctx) (*Identity, bool) {
	identity, ok := c.Locals(LocalsIdentityKey).(*Identity)
	return identity, ok && identity != nil
}

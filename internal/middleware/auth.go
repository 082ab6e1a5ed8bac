// Package middleware provides authentication, logging, tracing, metrics and
// rate limiting middleware for the application.
package middleware

import (
	"context"
	"strings"

	"commentservice/internal/auth"
	"commentservice/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by AuthRequired.
const (
	LocalClaims   = "claims"
	LocalUserID   = "userID"
	LocalUserName = "userName"
)

// TokenVerifier validates a bearer token. *auth.Validator implements it.
type TokenVerifier interface {
	Validate(ctx context.Context, token string) (auth.Claims, error)
}

type authFailure struct {
	code    string
	message string
}

// Fixed client-facing text per failure kind; the validator's own error text
// stays in server logs.
var authFailures = map[auth.Kind]authFailure{
	auth.KindMalformedToken:      {models.CodeMalformedToken, "Token is malformed"},
	auth.KindKeyNotFound:         {models.CodeKeyNotFound, "Token signing key is not recognized"},
	auth.KindKeySetUnavailable:   {models.CodeKeySetUnavailable, "Unable to verify token at this time"},
	auth.KindExpiredToken:        {models.CodeTokenExpired, "Token has expired, please log in again"},
	auth.KindInvalidAudience:     {models.CodeInvalidAudience, "Token was not issued for this application"},
	auth.KindInvalidIssuer:       {models.CodeInvalidIssuer, "Token issuer is not accepted"},
	auth.KindInvalidSignature:    {models.CodeInvalidSignature, "Token signature is invalid"},
	auth.KindUnsupportedTokenUse: {models.CodeUnsupportedTokenUse, "Token type is not supported"},
}

// AuthError converts a verification failure into the AppError sent to clients.
func AuthError(err error) *models.AppError {
	f, ok := authFailures[auth.KindOf(err)]
	if !ok {
		f = authFailure{models.CodeInvalidToken, "Token is invalid"}
	}
	return &models.AppError{Code: f.code, Message: f.message, Err: err}
}

// AuthRequired rejects requests without a valid bearer token. On success the
// verified claims, subject and display name are stored in locals and the
// subject is added to the request context.
func AuthRequired(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, appErr := bearerToken(c.Get(fiber.HeaderAuthorization))
		if appErr != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, appErr)
		}

		claims, err := verifier.Validate(c.UserContext(), token)
		if err != nil {
			Logger.WarnContext(c.UserContext(), "token rejected",
				"kind", string(auth.KindOf(err)),
				"error", err.Error(),
				"path", c.Path(),
			)
			return models.RespondWithError(c, fiber.StatusUnauthorized, AuthError(err))
		}

		subject := claims.Subject()
		if subject == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(models.CodeInvalidToken, "Token has no subject"))
		}

		c.Locals(LocalClaims, claims)
		c.Locals(LocalUserID, subject)
		c.Locals(LocalUserName, claims.DisplayName())
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, subject))

		return c.Next()
	}
}

func bearerToken(header string) (string, *models.AppError) {
	if header == "" {
		return "", models.NewUnauthorizedError("", "Authorization header required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", models.NewUnauthorizedError("", "Invalid authorization header format")
	}
	return token, nil
}

// ClaimsFrom returns the claims stored by AuthRequired.
func ClaimsFrom(c *fiber.Ctx) (auth.Claims, bool) {
	claims, ok := c.Locals(LocalClaims).(auth.Claims)
	return claims, ok
}

// UserIDFrom returns the authenticated subject, or "".
func UserIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

// UserNameFrom returns the authenticated display name, or "".
func UserNameFrom(c *fiber.Ctx) string {
	name, _ := c.Locals(LocalUserName).(string)
	return name
}

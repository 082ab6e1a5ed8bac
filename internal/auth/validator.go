package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"commentservice/internal/observability"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
)

const (
	tokenUseID     = "id"
	tokenUseAccess = "access"
)

// KeyProvider resolves the key set published by an issuer. *KeySetCache implements it.
type KeyProvider interface {
	Get(ctx context.Context, issuer string) (KeySet, error)
}

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	// Issuer is the default issuer whose key set is consulted first.
	Issuer string
	// ClientID must match aud on identity tokens and client_id on access tokens.
	ClientID string
	// TrustedIssuers restricts which token-claimed issuers may be used as a
	// key-lookup fallback. Empty allows any issuer.
	TrustedIssuers []string
	// Leeway is the clock skew tolerated on exp, nbf and iat.
	Leeway time.Duration
	Now    func() time.Time
	Logger *slog.Logger
}

// Validator verifies identity and access tokens issued by one identity provider.
type Validator struct {
	keys     KeyProvider
	issuer   string
	clientID string
	trusted  map[string]struct{}
	leeway   time.Duration
	now      func() time.Time
	logger   *slog.Logger
	parser   *jwt.Parser
}

// NewValidator creates a Validator. Issuer and ClientID are required.
func NewValidator(keys KeyProvider, cfg ValidatorConfig) (*Validator, error) {
	if keys == nil {
		return nil, errors.New("auth: key provider is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("auth: issuer is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("auth: client id is required")
	}

	v := &Validator{
		keys:     keys,
		issuer:   cfg.Issuer,
		clientID: cfg.ClientID,
		leeway:   cfg.Leeway,
		now:      cfg.Now,
		logger:   cfg.Logger,
		parser:   jwt.NewParser(),
	}
	if v.now == nil {
		v.now = time.Now
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	if len(cfg.TrustedIssuers) > 0 {
		v.trusted = make(map[string]struct{}, len(cfg.TrustedIssuers))
		for _, iss := range cfg.TrustedIssuers {
			v.trusted[iss] = struct{}{}
		}
	}
	return v, nil
}

// Validate verifies tokenString and returns its full claim set.
func (v *Validator) Validate(ctx context.Context, tokenString string) (Claims, error) {
	ctx, span := observability.StartSpan(ctx, "auth.ValidateToken")

	claims, err := v.validate(ctx, tokenString)
	if err != nil {
		kind := KindOf(err)
		observability.AuthFailures.WithLabelValues(string(kind)).Inc()
		span.SetAttributes(attribute.String("auth.failure_kind", string(kind)))
	} else {
		span.SetAttributes(attribute.String("auth.token_use", claims.TokenUse()))
	}
	observability.FinishSpan(span, err)

	return claims, err
}

func (v *Validator) validate(ctx context.Context, tokenString string) (Claims, error) {
	if len(strings.Split(tokenString, ".")) != 3 {
		return nil, newError(KindMalformedToken, errors.New("token must have three segments"))
	}

	unverified, _, err := v.parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, newError(KindMalformedToken, err)
	}

	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, newError(KindMalformedToken, errors.New("missing kid header"))
	}

	// Untrusted until the signature is checked below.
	preview, _ := unverified.Claims.(jwt.MapClaims)
	tokenUse, _ := preview["token_use"].(string)
	tokenIssuer, _ := preview["iss"].(string)

	key, issuer, err := v.resolveKey(ctx, kid, tokenIssuer)
	if err != nil {
		return nil, err
	}

	switch tokenUse {
	case tokenUseID:
		claims, err := v.verify(tokenString, key, issuer, tokenUseID)
		if err != nil {
			return nil, err
		}
		aud, err := jwt.MapClaims(claims).GetAudience()
		if err != nil || !slices.Contains(aud, v.clientID) {
			return nil, newError(KindInvalidAudience, fmt.Errorf("aud %v does not include client id", aud))
		}
		return claims, nil
	case tokenUseAccess:
		claims, err := v.verify(tokenString, key, issuer, tokenUseAccess)
		if err != nil {
			return nil, err
		}
		if clientID, _ := claims["client_id"].(string); clientID != v.clientID {
			return nil, newError(KindInvalidAudience, fmt.Errorf("client_id %q does not match", clientID))
		}
		return claims, nil
	default:
		return nil, newError(KindUnsupportedTokenUse, fmt.Errorf("token_use %q", tokenUse))
	}
}

// resolveKey looks kid up in the default issuer's key set, then in the set of
// the issuer the token claims. The returned issuer is the one the signature
// must bind to.
func (v *Validator) resolveKey(ctx context.Context, kid, tokenIssuer string) (any, string, error) {
	keys, defaultErr := v.keys.Get(ctx, v.issuer)
	if defaultErr == nil {
		if key, ok := keys[kid]; ok {
			return key, v.issuer, nil
		}
	}

	if tokenIssuer != "" && tokenIssuer != v.issuer && v.trusts(tokenIssuer) {
		alt, err := v.keys.Get(ctx, tokenIssuer)
		if err == nil {
			if key, ok := alt[kid]; ok {
				return key, tokenIssuer, nil
			}
		} else {
			v.logger.WarnContext(ctx, "token issuer key set unavailable",
				slog.String("issuer", tokenIssuer),
				slog.String("error", err.Error()),
			)
		}
	}

	if defaultErr != nil {
		return nil, "", defaultErr
	}
	return nil, "", newError(KindKeyNotFound, fmt.Errorf("kid %q not found", kid))
}

func (v *Validator) trusts(issuer string) bool {
	if v.trusted == nil {
		return true
	}
	_, ok := v.trusted[issuer]
	return ok
}

// verify checks signature, algorithm, issuer and expiry, then the verified token_use.
func (v *Validator) verify(tokenString string, key any, issuer, tokenUse string) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(*jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, newError(KindInvalidSignature, errors.New("token not valid"))
	}
	claims := Claims(mapClaims)
	if claims.TokenUse() != tokenUse {
		return nil, newError(KindUnsupportedTokenUse, fmt.Errorf("verified token_use %q, expected %q", claims.TokenUse(), tokenUse))
	}
	return claims, nil
}

// classify maps jwt library errors onto failure kinds. Expiry is checked
// first since claim errors are joined and an expired token must always be
// reported as expired.
func classify(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return newError(KindExpiredToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return newError(KindInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return newError(KindInvalidAudience, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return newError(KindInvalidIssuer, err)
	default:
		// Malformed encodings, missing exp, nbf in the future.
		return newError(KindMalformedToken, err)
	}
}

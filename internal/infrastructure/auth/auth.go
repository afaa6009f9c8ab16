package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"jan-server/services/support-chat-api/internal/config"
)

const (
	// AccountIDKey holds the authenticated account id in the gin context.
	AccountIDKey = "account_id"
	// TokenKey holds the parsed token in the gin context.
	TokenKey = "auth_token"
)

// Validator validates JWTs using JWKS.
type Validator struct {
	cfg     *config.Config
	log     zerolog.Logger
	jwks    *keyfunc.JWKS
	keyfunc jwt.Keyfunc
}

// NewValidator initializes JWKS fetching when auth is enabled.
func NewValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Validator, error) {
	log = log.With().Str("component", "auth").Logger()
	if !cfg.AuthEnabled {
		if !cfg.IsDevelopment() {
			log.Warn().Str("environment", cfg.Environment).Msg("auth disabled: admin routes accept unauthenticated requests")
		}
		return &Validator{cfg: cfg, log: log}, nil
	}

	jwks, err := keyfunc.Get(cfg.AuthJWKSURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Error().Err(err).Msg("jwks refresh error")
		},
	})
	if err != nil {
		return nil, err
	}

	return &Validator{cfg: cfg, log: log, jwks: jwks, keyfunc: jwks.Keyfunc}, nil
}

// NewValidatorWithKeyfunc builds an enabled validator around a fixed key source.
func NewValidatorWithKeyfunc(cfg *config.Config, kf jwt.Keyfunc, log zerolog.Logger) *Validator {
	return &Validator{cfg: cfg, log: log, keyfunc: kf}
}

// Optional authenticates the caller when a token is presented. Visitors
// without a token continue anonymously; a presented but invalid token is
// rejected.
func (v *Validator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !v.enabled() {
			c.Next()
			return
		}
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.Next()
			return
		}
		if !v.authenticate(c, tokenString) {
			return
		}
		c.Next()
	}
}

// Required enforces JWT auth when enabled.
func (v *Validator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !v.enabled() {
			c.Next()
			return
		}
		tokenString := bearerToken(c)
		if tokenString == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		if !v.authenticate(c, tokenString) {
			return
		}
		c.Next()
	}
}

// Ready indicates if the validator is prepared.
func (v *Validator) Ready() bool {
	if !v.enabled() {
		return true
	}
	return v.keyfunc != nil
}

// Close stops the background JWKS refresh.
func (v *Validator) Close() {
	if v != nil && v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// AccountID returns the authenticated account id of the request, if any.
func AccountID(c *gin.Context) (string, bool) {
	id := c.GetString(AccountIDKey)
	return id, id != ""
}

func (v *Validator) enabled() bool {
	return v != nil && v.cfg.AuthEnabled
}

func (v *Validator) authenticate(c *gin.Context, tokenString string) bool {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithExpirationRequired(),
	}
	if issuer := strings.TrimSpace(v.cfg.AuthIssuer); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(v.cfg.AuthAudience); audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	token, err := jwt.Parse(tokenString, v.keyfunc, opts...)
	if err != nil || !token.Valid {
		v.log.Debug().Err(err).Msg("rejected bearer token")
		abortUnauthorized(c, "invalid token")
		return false
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		abortUnauthorized(c, "token has no subject")
		return false
	}

	c.Set(TokenKey, token)
	c.Set(AccountIDKey, subject)
	return true
}

// bearerToken reads the Authorization header, or the access_token query
// parameter used by browser websocket clients that cannot set headers.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return strings.TrimSpace(c.Query("access_token"))
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":  "auth-unauthorized-001",
		"error": message,
	})
}

package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JonMunkholm/payimport/internal/config"
	"github.com/JonMunkholm/payimport/internal/core"
)

// Authentication failures. Both map to AUTH002 in the error catalogue.
var (
	ErrMissingCredentials = errors.New("unauthorized: missing API key or operator token")
	ErrInvalidAPIKey      = errors.New("unauthorized: invalid API key")
	ErrInvalidToken       = errors.New("invalid token")
)

// OperatorClaims are the claims of an operator token. The subject is the
// numeric operator ID recorded as author of created catalog items.
type OperatorClaims struct {
	Name      string `json:"name,omitempty"`
	CanImport bool   `json:"can_import"`
	jwt.RegisteredClaims
}

// Operator converts verified claims to the importing operator.
func (c *OperatorClaims) Operator() (core.Operator, error) {
	op := core.Operator{Name: c.Name, CanImport: c.CanImport}
	if c.Subject == "" {
		return op, nil
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return core.Operator{}, fmt.Errorf("%w: subject %q is not an operator id", ErrInvalidToken, c.Subject)
	}
	op.ID = id
	return op, nil
}

// OperatorAuth identifies the operator of each request and stores it with
// core.ContextWithOperator. A Bearer token is verified as an HS256 JWT
// signed with JWTSecret; an X-API-Key header must match one of APIKeys and
// grants import rights. Requests without credentials are rejected when
// RequireAuth is set and otherwise run as an anonymous importer.
func OperatorAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	parser := jwt.NewParser(tokenParserOptions(cfg)...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, err := authenticate(r, cfg, parser)
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, ErrInvalidAPIKey) {
					status = http.StatusForbidden
				}
				slog.Warn("auth: request rejected",
					"path", r.URL.Path,
					"method", r.Method,
					"ip", ClientIP(r),
					"error", err,
				)
				writeError(w, status, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(core.ContextWithOperator(r.Context(), op)))
		})
	}
}

func tokenParserOptions(cfg *config.SecurityConfig) []jwt.ParserOption {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	return opts
}

func authenticate(r *http.Request, cfg *config.SecurityConfig, parser *jwt.Parser) (core.Operator, error) {
	if raw, ok := bearerToken(r); ok {
		if cfg.JWTSecret == "" {
			return core.Operator{}, fmt.Errorf("%w: operator tokens are not enabled", ErrInvalidToken)
		}
		return parseOperatorToken(parser, raw, []byte(cfg.JWTSecret))
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		if !isValidAPIKey(key, cfg.APIKeys) {
			return core.Operator{}, ErrInvalidAPIKey
		}
		return core.Operator{Name: "api-key", CanImport: true}, nil
	}

	if cfg.RequireAuth {
		return core.Operator{}, ErrMissingCredentials
	}
	return core.Operator{Name: "anonymous", CanImport: true}, nil
}

func parseOperatorToken(parser *jwt.Parser, raw string, secret []byte) (core.Operator, error) {
	claims := &OperatorClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return core.Operator{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.Operator()
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// isValidAPIKey compares against every key in constant time.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}

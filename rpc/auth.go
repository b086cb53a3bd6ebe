package rpc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const codeUnauthorized = -32001

// AuthConfig guards escrow_submitCall with an HS256 bearer token. Reads stay
// anonymous. An empty Secret disables the check.
type AuthConfig struct {
	Secret    string
	Issuer    string
	ClockSkew time.Duration
}

type bearerAuth struct {
	secret []byte
	issuer string
	leeway time.Duration
}

func newBearerAuth(cfg AuthConfig) *bearerAuth {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil
	}
	leeway := cfg.ClockSkew
	if leeway <= 0 {
		leeway = 2 * time.Minute
	}
	return &bearerAuth{secret: []byte(secret), issuer: strings.TrimSpace(cfg.Issuer), leeway: leeway}
}

// authenticate accepts any request when auth is disabled.
func (a *bearerAuth) authenticate(r *http.Request) error {
	if a == nil {
		return nil
	}
	raw := extractBearer(r.Header.Get("Authorization"))
	if raw == "" {
		return errors.New("missing bearer token")
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.leeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("token invalid")
	}
	return nil
}

func extractBearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

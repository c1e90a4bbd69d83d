package security

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"mchat/tools/errs"
)

// Options control signing and TTL.
type Options struct {
	Secret []byte        // HMAC key
	Alg    string        // HS256/HS384/HS512, default HS256
	TTL    time.Duration // token lifetime, default 2h
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 2 * time.Hour}
}

// Generate issues a token with the user identity as subject.
func Generate(opts Options, userID string) (token string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	claims := jwtlib.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}

	signed, err := jwtlib.NewWithClaims(method, claims).SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify validates the token and returns the user identity it carries.
// Every failure maps to ErrUnauthenticated; callers refuse the connection.
func Verify(opts Options, token string) (string, error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", errs.ErrUnauthenticated.WrapMsg("empty token")
	}
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// pinned to the configured method, not just the HMAC family
		if t.Method.Alg() != method.Alg() {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	})
	if err != nil {
		return "", errs.ErrUnauthenticated.WrapMsg(err.Error())
	}
	if !parsed.Valid {
		return "", errs.ErrUnauthenticated.Wrap()
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", errs.ErrUnauthenticated.WrapMsg("claims type mismatch")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errs.ErrUnauthenticated.WrapMsg("missing subject")
	}
	return sub, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}

package identity

import (
	"crypto/rsa"
	"errors"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks access tokens issued by the hosted identity provider.
type Verifier struct {
	pub *rsa.PublicKey
}

// NewVerifier loads the provider's RS256 public key. An empty path leaves
// verification off, for local development against a stub provider.
func NewVerifier(pubKeyPath string) (*Verifier, error) {
	if pubKeyPath == "" {
		return &Verifier{pub: nil}, nil
	}
	b, err := os.ReadFile(pubKeyPath)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}
	return &Verifier{pub: pub}, nil
}

// Verify validates the token and returns its subject (the user id).
func (v *Verifier) Verify(tokenStr string) (string, error) {
	var token *jwt.Token
	var err error
	if v.pub != nil {
		token, err = jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return v.pub, nil
		})
	} else {
		token, _, err = new(jwt.Parser).ParseUnverified(tokenStr, jwt.MapClaims{})
	}
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing subject")
	}
	return sub, nil
}

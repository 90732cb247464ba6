package box

import (
	cryptorand "crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrEmpty = errors.New("sealed box carries no blob ID")

// Manager seals blob IDs into tokens that only this process can open,
// which keeps object handles unforgeable. Tokens carry no expiry: a handle
// stays valid until its blob is revoked.
type Manager struct {
	key []byte
}

type Box struct {
	BlobID string `json:"bid,omitempty"`
}

type claims struct {
	Box

	jwt.RegisteredClaims
}

func NewManager() (*Manager, error) {
	key := make([]byte, 32)

	_, err := cryptorand.Read(key)
	if err != nil {
		return nil, err
	}

	return &Manager{
		key: key,
	}, nil
}

func (manager *Manager) Seal(box Box) (string, error) {
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Box: box,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	})

	return jwtToken.SignedString(manager.key)
}

func (manager *Manager) Unseal(sealedBox string) (Box, error) {
	var claims claims

	validMethods := []string{
		jwt.SigningMethodHS256.Alg(),
	}

	_, err := jwt.ParseWithClaims(sealedBox, &claims, manager.keyFunc, jwt.WithValidMethods(validMethods))
	if err != nil {
		return Box{}, err
	}

	if claims.BlobID == "" {
		return Box{}, ErrEmpty
	}

	return claims.Box, nil
}

func (manager *Manager) keyFunc(_ *jwt.Token) (interface{}, error) {
	return manager.key, nil
}

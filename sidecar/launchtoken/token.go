package launchtoken

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long a launch token stays valid.
const DefaultTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid launch token")

// LaunchClaims identifies one backend launch: the host presents the token to
// the backend, which checks it against the secret it received at spawn.
type LaunchClaims struct {
	LaunchID string `json:"launch_id"`
	Port     int    `json:"port"`
	Expiry   int64  `json:"exp"`
	IssuedAt int64  `json:"iat"`
}

func (c LaunchClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Expiry, 0)), nil
}

func (c LaunchClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c LaunchClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c LaunchClaims) GetIssuer() (string, error) {
	return "", nil
}

func (c LaunchClaims) GetSubject() (string, error) {
	return c.LaunchID, nil
}

func (c LaunchClaims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}

// Issuer signs and verifies HS256 launch tokens.
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer creates an Issuer. A non-positive ttl selects DefaultTTL.
func NewIssuer(key []byte, ttl time.Duration) (*Issuer, error) {
	if len(key) == 0 {
		return nil, errors.New("launch token secret key is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue mints a token for the given launch.
func (i *Issuer) Issue(launchID string, port int) (string, error) {
	now := i.now().UTC()
	claims := jwt.MapClaims{
		"launch_id": launchID,
		"port":      port,
		"exp":       now.Add(i.ttl).Unix(),
		"iat":       now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign launch token: %w", err)
	}
	return tokenString, nil
}

// Verify parses tokenString and returns its claims if the signature and
// expiry check out.
func (i *Issuer) Verify(tokenString string) (*LaunchClaims, error) {
	var claims LaunchClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.LaunchID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// SecretHex returns the signing key hex-encoded, as handed to the backend.
func (i *Issuer) SecretHex() string {
	return hex.EncodeToString(i.key)
}

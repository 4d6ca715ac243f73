package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"storefront/internal/model"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// Code is a six digit one-time code. Stored and supplied codes are compared
// as Codes, never as a string against a number.
type Code string

// ParseCode validates user input as a six digit code.
func ParseCode(s string) (Code, error) {
	if len(s) != 6 {
		return "", model.ErrMalformedCode
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", model.ErrMalformedCode
		}
	}
	if s[0] == '0' {
		return "", model.ErrMalformedCode
	}
	return Code(s), nil
}

// Equal compares codes in constant time.
func (c Code) Equal(other Code) bool {
	return subtle.ConstantTimeCompare([]byte(c), []byte(other)) == 1
}

func (c Code) String() string {
	return string(c)
}

// Generate returns a uniformly random code in [100000, 999999].
func Generate() (Code, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return Code(fmt.Sprintf("%06d", n.Int64()+codeMin)), nil
}

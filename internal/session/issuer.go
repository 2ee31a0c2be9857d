package session

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	TokenLength   = 10
)

// Issuer generates opaque session tokens. It does not check uniqueness;
// stores reject collisions on Open.
type Issuer struct {
	random io.Reader
	length int
}

// NewIssuer returns an issuer backed by crypto/rand.
func NewIssuer() *Issuer {
	return &Issuer{random: rand.Reader, length: TokenLength}
}

// Generate returns a token of lowercase letters and digits drawn uniformly.
func (i *Issuer) Generate() (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	out := make([]byte, i.length)
	for n := range out {
		idx, err := rand.Int(i.random, max)
		if err != nil {
			return "", fmt.Errorf("generate session token: %w", err)
		}
		out[n] = tokenAlphabet[idx.Int64()]
	}
	return string(out), nil
}

package sharing

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	tokenAlphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
	tokenSegmentLen = 13
)

// TokenGenerator produces opaque link tokens.
type TokenGenerator interface {
	Generate() (string, error)
}

// RandomTokens draws two base-36 segments of 13 characters from a
// cryptographically secure source, about 134 bits in total.
type RandomTokens struct {
	// Source defaults to crypto/rand.Reader.
	Source io.Reader
}

func (g RandomTokens) Generate() (string, error) {
	src := g.Source
	if src == nil {
		src = rand.Reader
	}

	first, err := segment(src)
	if err != nil {
		return "", err
	}
	second, err := segment(src)
	if err != nil {
		return "", err
	}
	return first + second, nil
}

func segment(src io.Reader) (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	buf := make([]byte, tokenSegmentLen)
	for i := range buf {
		n, err := rand.Int(src, max)
		if err != nil {
			return "", fmt.Errorf("failed to read token entropy: %w", err)
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}

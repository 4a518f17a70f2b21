package password

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// Alphabet is the fixed 70-character set Generate draws from.
const Alphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!@#$%^&*"

// DefaultGenerateLength is used when Generate is called with length <= 0.
const DefaultGenerateLength = 16

// maxStrongAttempts bounds GenerateStrong's redraw loop.
const maxStrongAttempts = 64

// Generate returns length characters drawn uniformly from Alphabet using crypto/rand.
//
// The result is not checked against ValidateStrength: a draw without an
// uppercase letter, digit or special character is possible. Use GenerateStrong
// when the output must pass the strength rules.
func Generate(length int) (string, error) {
	return GenerateFrom(rand.Reader, length)
}

// GenerateFrom is Generate with an explicit randomness source.
func GenerateFrom(r io.Reader, length int) (string, error) {
	if length <= 0 {
		length = DefaultGenerateLength
	}

	max := big.NewInt(int64(len(Alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(r, max)
		if err != nil {
			return "", fmt.Errorf("generate: %w", err)
		}
		out[i] = Alphabet[n.Int64()]
	}
	return string(out), nil
}

// GenerateStrong redraws until the result passes ValidateStrength.
// Its running time therefore varies slightly between calls. Lengths outside
// [MinLength..MaxLength] can never pass and return ErrGenerateExhausted at once.
func GenerateStrong(length int) (string, error) {
	if length <= 0 {
		length = DefaultGenerateLength
	}
	if length < MinLength || length > MaxLength {
		return "", ErrGenerateExhausted
	}

	for i := 0; i < maxStrongAttempts; i++ {
		s, err := Generate(length)
		if err != nil {
			return "", err
		}
		if ValidateStrength(s).IsValid {
			return s, nil
		}
	}
	return "", ErrGenerateExhausted
}

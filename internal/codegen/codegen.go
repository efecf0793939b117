// Package codegen mints the short verification codes printed on tickets.
package codegen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// Alphabet leaves out the digits 0 and 1.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ23456789"
	// Length of every code.
	Length = 7
	// MaxAttempts bounds the uniqueness probe.
	MaxAttempts = 5
)

// ErrExhausted is returned when no free code was found within MaxAttempts.
var ErrExhausted = errors.New("could not generate a unique verification code")

// largest multiple of len(Alphabet) that fits in a byte
var acceptBelow = byte(256 - 256%len(Alphabet))

// ExistsFunc reports whether a code is already assigned.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator draws codes from a random source.
type Generator struct {
	rand io.Reader
}

// New returns a Generator backed by crypto/rand.
func New() *Generator {
	return &Generator{rand: rand.Reader}
}

// NewWithReader is used by tests to make the sequence deterministic.
func NewWithReader(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// Generate returns a uniformly distributed code.
func (g *Generator) Generate() (string, error) {
	var sb strings.Builder
	sb.Grow(Length)

	buf := make([]byte, Length*2)
	for sb.Len() < Length {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= acceptBelow {
				continue
			}
			sb.WriteByte(Alphabet[int(b)%len(Alphabet)])
			if sb.Len() == Length {
				break
			}
		}
	}
	return sb.String(), nil
}

// Unique generates codes until exists reports a free one.
func (g *Generator) Unique(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := g.Generate()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check verification code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrExhausted
}

// Normalize upper-cases and trims a code typed or scanned at the gate.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code has the shape of an issued code.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// Package shortcode generates the compact identifiers used as store keys
// and redirect path segments.
package shortcode

import (
	"context"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/gearzhan/shortURL/internal/storage"
)

const (
	// Alphabet is the symbol set codes are drawn from: 36^6 possible codes.
	Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// Length is the fixed code length.
	Length = 6

	maxAttempts = 10
)

// Generator produces random short codes and resolves collisions against
// the store.
type Generator struct{}

// New creates a short code generator.
func New() *Generator {
	return &Generator{}
}

// Generate creates one random lowercase-alphanumeric code.
func (g *Generator) Generate() (string, error) {
	const op = "shortcode.Generator.Generate"

	code, err := gonanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate code: %w", op, err)
	}

	return code, nil
}

// Allocate generates a code that is absent from the store, retrying on
// collision up to a fixed bound. If every attempt collides, the last code
// is returned anyway: with ~2.2 billion possible codes the residual
// collision risk is accepted rather than failing the request.
func (g *Generator) Allocate(ctx context.Context, store storage.Store) (string, error) {
	const op = "shortcode.Generator.Allocate"

	var code string
	for i := 0; i < maxAttempts; i++ {
		var err error
		code, err = g.Generate()
		if err != nil {
			return "", err
		}

		_, err = store.Get(ctx, code)
		if errors.Is(err, storage.ErrKeyNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("%s: failed to check code: %w", op, err)
		}
	}

	return code, nil
}

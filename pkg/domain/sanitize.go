package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTextSize bounds the product id and name of an item, in bytes.
const MaxTextSize = 256

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitize returns a copy of the input with text fields cleaned by SanitizeText.
func (in ItemInput) Sanitize() (ItemInput, error) {
	productID, err := SanitizeText(in.ProductID)
	if err != nil {
		return ItemInput{}, fmt.Errorf("productId: %w", err)
	}
	name, err := SanitizeText(in.Name)
	if err != nil {
		return ItemInput{}, fmt.Errorf("name: %w", err)
	}
	in.ProductID = productID
	in.Name = name
	return in, nil
}

// SanitizeText enforces MaxTextSize, validates UTF-8 and strips control characters.
// Oversized input is rejected rather than truncated.
func SanitizeText(input string) (string, error) {
	if len(input) > MaxTextSize {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), MaxTextSize)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// Fast path: nothing to strip.
	if strings.IndexFunc(input, unicode.IsControl) < 0 {
		return strings.TrimSpace(input), nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

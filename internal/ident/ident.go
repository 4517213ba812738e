// Package ident converts object identities to and from their compact text
// forms.
package ident

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// TokenLength is the length of an encoded identity token.
const TokenLength = 22

const urnPrefix = "urn:uuid:"

// ErrInvalid is returned when a token, URI or integer cannot be decoded into
// an identity.
var ErrInvalid = errors.New("invalid identity")

var maxIdentity = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// New mints a fresh random identity.
func New() uuid.UUID {
	return uuid.New()
}

// Encode packs the identity most-significant byte first and encodes it as
// unpadded URL-safe base64.
func Encode(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// Decode reverses Encode.
func Decode(token string) (uuid.UUID, error) {
	if len(token) != TokenLength {
		return uuid.Nil, fmt.Errorf("token %q: %w", token, ErrInvalid)
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token %q: %w: %w", token, ErrInvalid, err)
	}

	var id uuid.UUID
	copy(id[:], raw)
	return id, nil
}

// URI returns the identity as a urn:uuid: URI.
func URI(id uuid.UUID) string {
	return urnPrefix + id.String()
}

// ParseURI parses a urn:uuid: URI produced by URI.
func ParseURI(uri string) (uuid.UUID, error) {
	rest, ok := strings.CutPrefix(uri, urnPrefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("uri %q: %w", uri, ErrInvalid)
	}

	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, fmt.Errorf("uri %q: %w: %w", uri, ErrInvalid, err)
	}
	return id, nil
}

// ToBigInt returns the identity as an unsigned 128-bit integer.
func ToBigInt(id uuid.UUID) *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// FromBigInt converts an unsigned 128-bit integer back into an identity.
// Values outside [0, 2^128) are rejected.
func FromBigInt(n *big.Int) (uuid.UUID, error) {
	if n == nil || n.Sign() < 0 || n.Cmp(maxIdentity) > 0 {
		return uuid.Nil, fmt.Errorf("integer %v: %w", n, ErrInvalid)
	}

	var id uuid.UUID
	n.FillBytes(id[:])
	return id, nil
}

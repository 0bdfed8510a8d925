// Package pagination holds page-size limits and the opaque cursors handed to
// API clients. Cursors are base64url encoded JSON.
package pagination

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 500
)

var errMalformed = errors.New("invalid cursor format")

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points after a (timestamp, id) keyset position, newest first.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// OffsetCursor points into an immutable result set identified by Version.
type OffsetCursor struct {
	Version int64
	Offset  int
}

type keysetWire struct {
	At *time.Time `json:"t"`
	ID *uuid.UUID `json:"id"`
}

type offsetWire struct {
	Version *int64 `json:"v"`
	Offset  *int   `json:"o"`
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalized limit plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

func EncodeCursor(c Cursor) string {
	at := c.CreatedAt.UTC()
	return encode(keysetWire{At: &at, ID: &c.ID})
}

// ParseCursor decodes a keyset cursor; blank input yields nil.
func ParseCursor(value string) (*Cursor, error) {
	var w keysetWire
	if ok, err := decode(value, &w); !ok || err != nil {
		return nil, err
	}
	if w.At == nil || w.ID == nil {
		return nil, errMalformed
	}
	return &Cursor{CreatedAt: *w.At, ID: *w.ID}, nil
}

func EncodeOffsetCursor(c OffsetCursor) string {
	return encode(offsetWire{Version: &c.Version, Offset: &c.Offset})
}

// ParseOffsetCursor decodes an offset cursor; blank input yields nil.
func ParseOffsetCursor(value string) (*OffsetCursor, error) {
	var w offsetWire
	if ok, err := decode(value, &w); !ok || err != nil {
		return nil, err
	}
	if w.Version == nil || w.Offset == nil {
		return nil, errMalformed
	}
	if *w.Offset < 0 {
		return nil, fmt.Errorf("invalid cursor offset %d", *w.Offset)
	}
	return &OffsetCursor{Version: *w.Version, Offset: *w.Offset}, nil
}

func encode(v any) string {
	raw, _ := json.Marshal(v)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decode reports false with a nil error for blank input.
func decode(value string, dest any) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return false, fmt.Errorf("decode cursor: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return false, errMalformed
	}
	return true, nil
}

// Package feed turns relay queries into the typed, deduplicated,
// cursor-paginated collections the site renders.
package feed

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const cursorPrefix = "until:"

// EncodeCursor serializes an until timestamp into the opaque cursor handed
// to clients. Zero encodes to the empty cursor (first page).
func EncodeCursor(until int64) string {
	if until <= 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(cursorPrefix + strconv.FormatInt(until, 10)))
}

// DecodeCursor parses an opaque cursor. The empty cursor means first page.
func DecodeCursor(encoded string) (int64, error) {
	if encoded == "" {
		return 0, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor encoding: %w", err)
	}
	rest, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid cursor format")
	}
	until, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || until <= 0 {
		return 0, fmt.Errorf("invalid cursor timestamp")
	}
	return until, nil
}

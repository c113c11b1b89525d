package memory

import (
	"fmt"
	"strconv"
	"strings"
)

const cursorPrefix = "offset:"

// Cursor is a decoded pagination token. The zero value starts at the first
// entry. On the wire a cursor is the string "offset:<N>".
type Cursor struct {
	Offset int
}

// ParseCursor decodes a wire token. The empty string yields the zero cursor.
func ParseCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	raw, ok := strings.CutPrefix(token, cursorPrefix)
	if !ok {
		return Cursor{}, fmt.Errorf("%w: %q", ErrInvalidCursor, token)
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return Cursor{}, fmt.Errorf("%w: %q", ErrInvalidCursor, token)
	}

	return Cursor{Offset: n}, nil
}

// String encodes c as a wire token.
func (c Cursor) String() string {
	return cursorPrefix + strconv.Itoa(c.Offset)
}

// Package fourcc holds the four-byte chunk type tag shared by IFF-family
// formats.
package fourcc

import (
	"fmt"
	"strings"
)

type FourCC [4]byte

// New pads or truncates s to four bytes. Short tags are space padded, as in
// "CAT ".
func New(s string) FourCC {
	var id FourCC
	copy(id[:], s+strings.Repeat(" ", 4))
	return id
}

// Parse is New that rejects anything but exactly four printable bytes.
func Parse(s string) (FourCC, error) {
	if len(s) != 4 {
		return FourCC{}, fmt.Errorf("fourcc: %q is %d bytes, want 4", s, len(s))
	}
	id := New(s)
	if !id.IsPrintable() {
		return FourCC{}, fmt.Errorf("fourcc: %q is not printable ascii", s)
	}
	return id, nil
}

func (id FourCC) String() string {
	if id.IsPrintable() {
		return string(id[:])
	}
	return fmt.Sprintf("0x%02x%02x%02x%02x", id[0], id[1], id[2], id[3])
}

func (id FourCC) IsPrintable() bool {
	for _, b := range id {
		if b < 0x20 || b > 0x7e {
			return false
		}
	}
	return true
}

// Match reports whether id equals any of ids.
func (id FourCC) Match(ids ...FourCC) bool {
	for _, other := range ids {
		if id == other {
			return true
		}
	}
	return false
}

// MarshalText lets FourCC render as its tag in JSON and logs.
func (id FourCC) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

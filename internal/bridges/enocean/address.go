package enocean

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Address is a 4-byte EnOcean sender ID.
//
// Textual form is four upper-case hex pairs separated by dashes,
// e.g. "FF-AA-80-00". Base IDs of Eltako FAM/FGW gateways live in the
// FF-80-00-00 to FF-FF-FF-80 range; sensor chip IDs use the rest.
type Address [4]byte

// addressByteCount is the number of bytes in an EnOcean ID.
const addressByteCount = 4

// ParseAddress parses a dashed hex device address.
//
// Accepts formats:
//   - "FF-AA-80-00" (canonical)
//   - "ff-aa-80-00" (case-insensitive)
//   - "FF-AA-80-00 left" (trailing discriminator, ignored)
//
// Parameters:
//   - s: Address string from configuration
//
// Returns:
//   - Address: Parsed address
//   - error: ErrInvalidAddress if parsing fails
func ParseAddress(s string) (Address, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Address{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	parts := strings.Split(fields[0], "-")
	if len(parts) != addressByteCount {
		return Address{}, fmt.Errorf("%w: expected 4 dash-separated bytes, got %q", ErrInvalidAddress, s)
	}

	var addr Address
	for i, p := range parts {
		if len(p) != 2 { //nolint:mnd // two hex digits per byte
			return Address{}, fmt.Errorf("%w: byte %d of %q is not two hex digits", ErrInvalidAddress, i, s)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return Address{}, fmt.Errorf("%w: byte %d of %q: %w", ErrInvalidAddress, i, s, err)
		}
		addr[i] = byte(v)
	}
	return addr, nil
}

// AddressFromBytes builds an Address from the first four bytes of b.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) < addressByteCount {
		return Address{}, fmt.Errorf("%w: need 4 bytes, got %d", ErrInvalidAddress, len(b))
	}
	var addr Address
	copy(addr[:], b[:addressByteCount])
	return addr, nil
}

// String returns the canonical dashed form, e.g. "FF-AA-80-00".
func (a Address) String() string {
	return fmt.Sprintf("%02X-%02X-%02X-%02X", a[0], a[1], a[2], a[3])
}

// Hex returns the lower-case compact form used in unique IDs, e.g. "ffaa8000".
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether the address is 00-00-00-00.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}


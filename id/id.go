// Package id defines TypeID-based identities for streams and the capability
// tokens that authorize operations on them.
//
// Stream identities are generated centrally here and are K-sortable
// (UUIDv7-based) and URL-safe. Tokens
// carry their own prefixed identity; a token authorizes only when its
// identity matches the one recorded at mint time.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity kind encoded in a TypeID.
type Prefix string

// Prefixes for every streampay entity kind.
const (
	PrefixStream     Prefix = "strm" // Payment stream
	PrefixPayerToken Prefix = "ptok" // Payer capability (pause/resume/cancel)
	PrefixPayeeToken Prefix = "rtok" // Payee capability (withdraw)
	PrefixAdminToken Prefix = "atok" // Registry administration capability
)

// ID is a prefix-qualified, globally unique identifier in the format
// "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a fresh ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string such as "strm_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and rejects it unless it carries the expected prefix.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// StreamID identifies a payment stream (prefix: "strm").
type StreamID = ID

// PayerTokenID identifies a payer capability (prefix: "ptok").
type PayerTokenID = ID

// PayeeTokenID identifies a payee capability (prefix: "rtok").
type PayeeTokenID = ID

// AdminTokenID identifies the registry admin capability (prefix: "atok").
type AdminTokenID = ID

// NewStreamID generates a new stream identity.
func NewStreamID() ID { return New(PrefixStream) }

// NewPayerTokenID generates a new payer token identity.
func NewPayerTokenID() ID { return New(PrefixPayerToken) }

// NewPayeeTokenID generates a new payee token identity.
func NewPayeeTokenID() ID { return New(PrefixPayeeToken) }

// NewAdminTokenID generates a new admin token identity.
func NewAdminTokenID() ID { return New(PrefixAdminToken) }

// ParseStreamID parses s and validates the "strm" prefix.
func ParseStreamID(s string) (ID, error) { return ParseWithPrefix(s, PrefixStream) }

// ParsePayerTokenID parses s and validates the "ptok" prefix.
func ParsePayerTokenID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPayerToken) }

// ParsePayeeTokenID parses s and validates the "rtok" prefix.
func ParsePayeeTokenID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPayeeToken) }

// ParseAdminTokenID parses s and validates the "atok" prefix.
func ParseAdminTokenID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAdminToken) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// Equal reports whether both IDs are set and identical. Two Nil IDs are
// not equal, so an unset reference never matches anything.
func (i ID) Equal(other ID) bool {
	return i.valid && other.valid && i.inner.String() == other.inner.String()
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

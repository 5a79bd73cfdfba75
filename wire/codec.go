// Package wire implements the runtime's message framing and encoding: a
// binary, protobuf-wire-compatible codec built directly on
// google.golang.org/protobuf/encoding/protowire (since no build step here
// can run protoc to generate full message types), and a JSON codec for the
// HTTP fallback transport, built on encoding/json. EscapeString separately
// offers protobuf-compatible string escaping via
// github.com/joeycumines/go-utilpkg/jsonenc.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is implemented by every request/response payload type in this
// package.
type Message interface {
	Marshal() []byte
	Unmarshal([]byte) error
}

// Marshaler is the narrower interface Pack actually needs: every payload
// type's Marshal is declared on the value receiver, but Unmarshal is a
// pointer-receiver method, so a value literal like StoreValue{...} passed
// straight to Pack satisfies this but not Message.
type Marshaler interface {
	Marshal() []byte
}

// appendUint64Field, appendStringField etc. are thin wrappers kept local so call
// sites read as "append this field" rather than juggling wire types and
// field numbers inline.

func appendUint64Field(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt64Field(b []byte, num protowire.Number, v int64) []byte {
	return appendUint64Field(b, num, uint64(v))
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendMessageField(b []byte, num protowire.Number, m Marshaler) []byte {
	if m == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.Marshal())
}

// fieldVisitor is called by unmarshalFields once per field, with the
// field's number and wire type and b holding everything after its tag. It
// returns the number of bytes of b that the field's value occupies, which
// unmarshalFields then skips.
type fieldVisitor func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error)

// unmarshalFields parses b as a sequence of protobuf wire-format fields,
// calling visit for each one. It is the single parsing loop every
// Message.Unmarshal implementation in this package delegates to.
func unmarshalFields(b []byte, visit fieldVisitor) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("wire: consume tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		n, err := visit(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 || n > len(b) {
			return fmt.Errorf("wire: field %d: visitor consumed invalid length", num)
		}
		b = b[n:]
	}
	return nil
}

func consumeVarintValue(b []byte) (uint64, int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("wire: consume varint: %w", protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeBytesValue(b []byte) ([]byte, int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, fmt.Errorf("wire: consume bytes: %w", protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeStringValue(b []byte) (string, int, error) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return "", 0, fmt.Errorf("wire: consume string: %w", protowire.ParseError(n))
	}
	return v, n, nil
}

// skipValue consumes and discards a field's value given its wire type, for
// forward compatibility with fields this build does not recognize.
func skipValue(typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(0, typ, b)
	if n < 0 {
		return 0, fmt.Errorf("wire: skip field: %w", protowire.ParseError(n))
	}
	return n, nil
}

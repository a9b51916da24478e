// Package protocol implements the protobuf wire codecs for the VSSS feeds:
// FIRASim environment and command packets, VSSReferee commands and the
// SSL-Vision wrapper packet.
//
// The messages are encoded and decoded directly against the protobuf wire
// format, field numbers follow the upstream .proto files.
package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is wrapped by every decode failure.
var ErrMalformed = errors.New("malformed protobuf payload")

// fieldTypes lists every field number a message defines with its wire type.
type fieldTypes map[protowire.Number]protowire.Type

// fieldFunc decodes the value of a known field from b and returns the number
// of bytes consumed. Returning 0 with a nil error skips the field.
type fieldFunc func(num protowire.Number, b []byte) (int, error)

// decodeFields walks the fields of one message. Field numbers missing from
// known are skipped; a known field carrying another wire type fails the
// whole message.
func decodeFields(b []byte, known fieldTypes, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		m := 0
		if want, ok := known[num]; ok {
			if typ != want {
				return fmt.Errorf("%w: field %d: invalid wire type %d, want %d", ErrMalformed, num, typ, want)
			}
			var err error
			if m, err = fn(num, b); err != nil {
				return err
			}
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func consumeDouble(b []byte, dst *float64) int {
	v, n := protowire.ConsumeFixed64(b)
	if n >= 0 {
		*dst = math.Float64frombits(v)
	}
	return n
}

func consumeFloat(b []byte, dst *float32) int {
	v, n := protowire.ConsumeFixed32(b)
	if n >= 0 {
		*dst = math.Float32frombits(v)
	}
	return n
}

func consumeUint32(b []byte, dst *uint32) int {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = uint32(v)
	}
	return n
}

func consumeInt32(b []byte, dst *int32) int {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = int32(v)
	}
	return n
}

func consumeBool(b []byte, dst *bool) int {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = protowire.DecodeBool(v)
	}
	return n
}

// consumeMessage reads a length-delimited sub-message and hands its bytes to
// decode.
func consumeMessage(b []byte, decode func([]byte) error) (int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	if err := decode(v); err != nil {
		return 0, err
	}
	return n, nil
}

// --- encoding helpers; proto3 semantics skip zero values ---

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	return appendDoubleAlways(b, num, v)
}

func appendDoubleAlways(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendFloatAlways(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendUint32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	return appendUint32Always(b, num, v)
}

func appendUint32Always(b []byte, num protowire.Number, v uint32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendEnum(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

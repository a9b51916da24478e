package relay

import (
	"errors"
	"fmt"
	"time"

	fbrelay "github.com/fbot-vsss/client/pkg/flatbuffers/vsss/relay"
	flatbuffers "github.com/google/flatbuffers/go"
)

// ErrInvalidEnvelope is returned when bytes cannot be read as an Envelope.
var ErrInvalidEnvelope = errors.New("invalid relay envelope")

// Message is the decoded form of an Envelope.
type Message struct {
	Feed        string
	Timestamp   time.Time
	ContentType fbrelay.ContentType
	Payload     []byte
}

// EncodeEnvelope wraps payload in a finished Envelope flatbuffer.
func EncodeEnvelope(m Message) []byte {
	builder := flatbuffers.NewBuilder(len(m.Payload) + 64)
	feedOffset := builder.CreateString(m.Feed)
	payloadOffset := builder.CreateByteVector(m.Payload)

	fbrelay.EnvelopeStart(builder)
	fbrelay.EnvelopeAddFeed(builder, feedOffset)
	fbrelay.EnvelopeAddTimestampNs(builder, m.Timestamp.UnixNano())
	fbrelay.EnvelopeAddContentType(builder, m.ContentType)
	fbrelay.EnvelopeAddPayload(builder, payloadOffset)
	envelopeOffset := fbrelay.EnvelopeEnd(builder)

	fbrelay.FinishEnvelopeBuffer(builder, envelopeOffset)
	return builder.FinishedBytes()
}

// DecodeEnvelope reads an Envelope produced by EncodeEnvelope. The
// flatbuffers accessors panic on truncated input; that is reported as
// ErrInvalidEnvelope.
func DecodeEnvelope(b []byte) (m Message, err error) {
	if len(b) < flatbuffers.SizeUOffsetT {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrInvalidEnvelope, len(b))
	}

	defer func() {
		if r := recover(); r != nil {
			m, err = Message{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, r)
		}
	}()

	env := fbrelay.GetRootAsEnvelope(b, 0)
	m = Message{
		Feed:        string(env.Feed()),
		Timestamp:   time.Unix(0, env.TimestampNs()),
		ContentType: env.ContentType(),
		Payload:     append([]byte(nil), env.PayloadBytes()...),
	}
	return m, nil
}

// Package codec frames websocket traffic. Both directions are binary
// google.protobuf.Struct messages; server frames use the same envelope as
// replay tapes so a client can render either.
package codec

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"parley-lite/replay"
)

// Client message types.
const (
	TypeOpen     = "open"
	TypeSpeak    = "speak"
	TypeListen   = "listen"
	TypeLeave    = "leave"
	TypeSnapshot = "snapshot"
	TypePersonas = "personas"
)

// Server frame types beyond the replay event types.
const (
	FrameWelcome  = "welcome"
	FramePersonas = "personas"
	FrameError    = "error"
	FrameAutoplay = "autoplay"
)

var ErrInvalidFrame = errors.New("invalid frame")

// ClientMessage is a decoded client frame:
// {type, requestId, persona, style, seed, cards}.
type ClientMessage struct {
	Type      string   `json:"type"`
	RequestID string   `json:"requestId,omitempty"`
	Persona   string   `json:"persona,omitempty"`
	Style     string   `json:"style,omitempty"`
	Seed      int64    `json:"seed,omitempty"`
	Cards     []uint64 `json:"cards,omitempty"`
}

func (m *ClientMessage) validate() error {
	m.Type = strings.ToLower(strings.TrimSpace(m.Type))
	switch m.Type {
	case TypeOpen:
		if strings.TrimSpace(m.Persona) == "" {
			return fmt.Errorf("%w: open needs a persona", ErrInvalidFrame)
		}
	case TypeSpeak:
		if len(m.Cards) == 0 {
			return fmt.Errorf("%w: speak needs at least one card", ErrInvalidFrame)
		}
	case TypeListen, TypeLeave, TypeSnapshot, TypePersonas:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidFrame, m.Type)
	}
	return nil
}

// DecodeClient parses a binary client frame.
func DecodeClient(data []byte) (*ClientMessage, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	var msg ClientMessage
	if err := replay.FromStruct(&s, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeClient builds a client frame. The server never sends these; clients
// written in Go and tests do.
func EncodeClient(msg ClientMessage) ([]byte, error) {
	s, err := replay.ToStruct(msg)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// ServerFrame is a decoded server envelope.
type ServerFrame struct {
	Type           string
	Seq            uint64
	ConversationID string
	TsMs           int64
	Payload        *structpb.Struct
}

// Decode unmarshals the payload into dst.
func (f *ServerFrame) Decode(dst any) error {
	return replay.FromStruct(f.Payload, dst)
}

// EncodeServer wraps payload in the shared envelope.
func EncodeServer(conversationID string, seq uint64, tsMs int64, frameType string, payload any) ([]byte, error) {
	var value *structpb.Struct
	if payload != nil {
		var err error
		if value, err = replay.ToStruct(payload); err != nil {
			return nil, fmt.Errorf("encode %s: %w", frameType, err)
		}
	}
	return replay.MarshalEnvelope(replay.Envelope(frameType, seq, conversationID, tsMs, value))
}

func DecodeServer(data []byte) (*ServerFrame, error) {
	var env structpb.Struct
	if err := proto.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	fields := env.GetFields()
	frame := &ServerFrame{
		Type:           fields["type"].GetStringValue(),
		Seq:            uint64(fields["seq"].GetNumberValue()),
		ConversationID: fields["conversationId"].GetStringValue(),
		TsMs:           int64(fields["tsMs"].GetNumberValue()),
		Payload:        fields["payload"].GetStructValue(),
	}
	if frame.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidFrame)
	}
	return frame, nil
}

// ErrorPayload is the body of an error frame.
type ErrorPayload struct {
	RequestID string `json:"requestId,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

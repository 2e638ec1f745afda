package codec

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"parley-lite/replay"
)

func TestClientRoundTrip(t *testing.T) {
	data, err := EncodeClient(ClientMessage{Type: "SPEAK", RequestID: "r1", Cards: []uint64{3, 7}})
	if err != nil {
		t.Fatalf("EncodeClient err: %v", err)
	}
	msg, err := DecodeClient(data)
	if err != nil {
		t.Fatalf("DecodeClient err: %v", err)
	}
	if msg.Type != TypeSpeak || msg.RequestID != "r1" || len(msg.Cards) != 2 || msg.Cards[1] != 7 {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestDecodeClientRejects(t *testing.T) {
	cases := []ClientMessage{
		{Type: "dance"},
		{Type: "open"},
		{Type: "speak"},
	}
	for _, c := range cases {
		data, err := EncodeClient(c)
		if err != nil {
			t.Fatalf("EncodeClient err: %v", err)
		}
		if _, err := DecodeClient(data); !errors.Is(err, ErrInvalidFrame) {
			t.Fatalf("%+v: expected ErrInvalidFrame, got %v", c, err)
		}
	}
	if _, err := DecodeClient([]byte{0xff, 0xff, 0xff}); !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("garbage should be ErrInvalidFrame, got %v", err)
	}
}

func TestServerFrameRoundTrip(t *testing.T) {
	data, err := EncodeServer("conv_1", 4, 1234, FrameError, ErrorPayload{Code: "bad", Message: "nope"})
	if err != nil {
		t.Fatalf("EncodeServer err: %v", err)
	}
	frame, err := DecodeServer(data)
	if err != nil {
		t.Fatalf("DecodeServer err: %v", err)
	}
	if frame.Type != FrameError || frame.Seq != 4 || frame.ConversationID != "conv_1" || frame.TsMs != 1234 {
		t.Fatalf("unexpected frame %+v", frame)
	}
	var body ErrorPayload
	if err := frame.Decode(&body); err != nil {
		t.Fatalf("Decode err: %v", err)
	}
	if body.Code != "bad" || body.Message != "nope" {
		t.Fatalf("unexpected body %+v", body)
	}

	// same bytes as a replay envelope
	value, err := replay.ToStruct(ErrorPayload{Code: "bad", Message: "nope"})
	if err != nil {
		t.Fatalf("ToStruct err: %v", err)
	}
	want, err := replay.MarshalEnvelope(replay.Envelope(FrameError, 4, "conv_1", 1234, value))
	if err != nil {
		t.Fatalf("MarshalEnvelope err: %v", err)
	}
	if !proto.Equal(mustStruct(t, want), mustStruct(t, data)) {
		t.Fatalf("server frame should match the replay envelope")
	}
}

func mustStruct(t *testing.T, data []byte) *structpb.Struct {
	t.Helper()
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &s
}

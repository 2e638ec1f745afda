package replay

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"parley-lite/conversation"
	"parley-lite/emotion"
)

// Payloads are the wire shapes carried inside structpb envelopes. The server
// codec sends the same shapes to live clients.

type CardView struct {
	UID            uint64 `json:"uid"`
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Persistence    string `json:"persistence"`
	Difficulty     string `json:"difficulty"`
	Focus          int    `json:"focus"`
	SuccessPercent int    `json:"successPercent"`
	Playable       bool   `json:"playable"`
}

type SnapshotPayload struct {
	ConversationID    string     `json:"conversationId"`
	NPCID             string     `json:"npcId"`
	Turn              int        `json:"turn"`
	Flow              int        `json:"flow"`
	FlowDisplay       string     `json:"flowDisplay"`
	State             string     `json:"state"`
	Warning           string     `json:"warning,omitempty"`
	Atmosphere        string     `json:"atmosphere"`
	AtmosphereEffects string     `json:"atmosphereEffects,omitempty"`
	NextSpeakFree     bool       `json:"nextSpeakFree,omitempty"`
	Patience          int        `json:"patience"`
	Focus             int        `json:"focus"`
	FocusCapacity     int        `json:"focusCapacity"`
	Hand              []CardView `json:"hand"`
	DrawCount         int        `json:"drawCount"`
	DiscardCount      int        `json:"discardCount"`
	ExhaustCount      int        `json:"exhaustCount"`
	TotalRapport      int        `json:"totalRapport"`
	Ended             bool       `json:"ended"`
}

type EffectPayload struct {
	Kind             string   `json:"kind"`
	CardID           string   `json:"cardId"`
	Magnitude        int      `json:"magnitude"`
	RapportChange    int      `json:"rapportChange,omitempty"`
	CardsToDraw      int      `json:"cardsToDraw,omitempty"`
	FocusAdded       int      `json:"focusAdded,omitempty"`
	PatienceAdded    int      `json:"patienceAdded,omitempty"`
	FlowReset        bool     `json:"flowReset,omitempty"`
	Atmosphere       string   `json:"atmosphere,omitempty"`
	Discarded        int      `json:"discarded,omitempty"`
	Markers          []string `json:"markers,omitempty"`
	EndsConversation bool     `json:"endsConversation,omitempty"`
	Description      string   `json:"description,omitempty"`
}

type PlayPayload struct {
	CardUID   uint64        `json:"cardUid"`
	CardID    string        `json:"cardId"`
	Percent   int           `json:"percent"`
	Roll      int           `json:"roll"`
	Succeeded bool          `json:"succeeded"`
	Effect    EffectPayload `json:"effect"`
}

type FlowPayload struct {
	AppliedDelta     int    `json:"appliedDelta"`
	PreviousState    string `json:"previousState"`
	NewState         string `json:"newState"`
	StateChanged     bool   `json:"stateChanged,omitempty"`
	ConversationEnds bool   `json:"conversationEnds,omitempty"`
}

type TurnPayload struct {
	Turn          int             `json:"turn"`
	Action        string          `json:"action"`
	Plays         []PlayPayload   `json:"plays,omitempty"`
	FocusSpent    int             `json:"focusSpent"`
	FreeSpeak     bool            `json:"freeSpeak,omitempty"`
	Swept         []string        `json:"swept,omitempty"`
	Exhaust       []EffectPayload `json:"exhaust,omitempty"`
	Drawn         []string        `json:"drawn,omitempty"`
	Flow          []FlowPayload   `json:"flow,omitempty"`
	PatienceSpent int             `json:"patienceSpent"`
	Ended         bool            `json:"ended"`
}

type OutcomePayload struct {
	Kind         string   `json:"kind"`
	Reason       string   `json:"reason"`
	TotalRapport int      `json:"totalRapport"`
	Markers      []string `json:"markers,omitempty"`
	FinalState   string   `json:"finalState"`
	FinalFlow    int      `json:"finalFlow"`
	Turns        int      `json:"turns"`
	GoalCardID   string   `json:"goalCardId,omitempty"`
}

type StateChangePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type AtmospherePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func CardViewOf(c conversation.CardSnapshot) CardView {
	return CardView{
		UID:            c.UID,
		ID:             c.ID,
		Name:           c.Name,
		Type:           c.Type.String(),
		Persistence:    c.Persistence.String(),
		Difficulty:     c.Difficulty.String(),
		Focus:          c.Focus,
		SuccessPercent: c.SuccessPercent,
		Playable:       c.Playable,
	}
}

func SnapshotPayloadOf(snap conversation.Snapshot) SnapshotPayload {
	out := SnapshotPayload{
		ConversationID:    snap.ID,
		NPCID:             snap.NPCID,
		Turn:              snap.Turn,
		Flow:              snap.Flow,
		FlowDisplay:       snap.FlowDisplay,
		State:             snap.State.String(),
		Warning:           snap.Warning,
		Atmosphere:        snap.Atmosphere.String(),
		AtmosphereEffects: snap.AtmosphereEffects,
		NextSpeakFree:     snap.NextSpeakFree,
		Patience:          snap.Patience,
		Focus:             snap.Focus,
		FocusCapacity:     snap.FocusCapacity,
		Hand:              make([]CardView, 0, len(snap.Hand)),
		DrawCount:         snap.DrawCount,
		DiscardCount:      snap.DiscardCount,
		ExhaustCount:      snap.ExhaustCount,
		TotalRapport:      snap.TotalRapport,
		Ended:             snap.Ended,
	}
	for _, c := range snap.Hand {
		out.Hand = append(out.Hand, CardViewOf(c))
	}
	return out
}

func EffectPayloadOf(e conversation.EffectResult) EffectPayload {
	out := EffectPayload{
		Kind:             e.Kind.String(),
		CardID:           e.CardID,
		Magnitude:        e.Magnitude,
		RapportChange:    e.RapportChange,
		CardsToDraw:      e.CardsToDraw,
		FocusAdded:       e.FocusAdded,
		PatienceAdded:    e.PatienceAdded,
		FlowReset:        e.FlowReset,
		Discarded:        len(e.Discard),
		EndsConversation: e.EndsConversation,
		Description:      e.Description,
	}
	if e.SetsAtmosphere {
		out.Atmosphere = e.Atmosphere.String()
	}
	for _, m := range e.Markers {
		out.Markers = append(out.Markers, m.String())
	}
	return out
}

func FlowPayloadOf(f emotion.FlowResult) FlowPayload {
	return FlowPayload{
		AppliedDelta:     f.AppliedDelta,
		PreviousState:    f.PreviousState.String(),
		NewState:         f.NewState.String(),
		StateChanged:     f.StateChanged,
		ConversationEnds: f.ConversationEnds,
	}
}

func TurnPayloadOf(tr *conversation.TurnResult) TurnPayload {
	out := TurnPayload{
		Turn:          tr.Turn,
		Action:        tr.Action.String(),
		FocusSpent:    tr.FocusSpent,
		FreeSpeak:     tr.FreeSpeak,
		PatienceSpent: tr.PatienceSpent,
		Ended:         tr.Ended,
	}
	for _, p := range tr.Plays {
		out.Plays = append(out.Plays, PlayPayload{
			CardUID:   p.Card.UID,
			CardID:    p.Card.ID,
			Percent:   p.Percent,
			Roll:      p.Roll,
			Succeeded: p.Succeeded,
			Effect:    EffectPayloadOf(p.Effect),
		})
	}
	for _, in := range tr.Swept {
		out.Swept = append(out.Swept, in.ID)
	}
	for _, e := range tr.Exhaust {
		out.Exhaust = append(out.Exhaust, EffectPayloadOf(e))
	}
	for _, in := range tr.Drawn {
		out.Drawn = append(out.Drawn, in.ID)
	}
	for _, f := range tr.Flow {
		out.Flow = append(out.Flow, FlowPayloadOf(f))
	}
	return out
}

func OutcomePayloadOf(o *conversation.Outcome) OutcomePayload {
	if o == nil {
		return OutcomePayload{Kind: conversation.OutcomeNone.String()}
	}
	out := OutcomePayload{
		Kind:         o.Kind.String(),
		Reason:       o.Reason,
		TotalRapport: o.TotalRapport,
		FinalState:   o.FinalState.String(),
		FinalFlow:    o.FinalFlow,
		Turns:        o.Turns,
		GoalCardID:   o.GoalCardID,
	}
	for _, m := range o.Markers {
		out.Markers = append(out.Markers, m.String())
	}
	return out
}

// ToStruct converts a payload to a structpb.Struct by way of its JSON form.
func ToStruct(payload any) (*structpb.Struct, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}
	return structpb.NewStruct(m)
}

// FromStruct decodes s into dst, the inverse of ToStruct.
func FromStruct(s *structpb.Struct, dst any) error {
	if s == nil {
		return fmt.Errorf("nil struct")
	}
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// Envelope wraps a payload in {type, seq, conversationId, tsMs, payload}.
// Live frames and replay tapes share this shape.
func Envelope(eventType string, seq uint64, conversationID string, tsMs int64, value *structpb.Struct) *structpb.Struct {
	if value == nil {
		value = &structpb.Struct{Fields: map[string]*structpb.Value{}}
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"type":           structpb.NewStringValue(eventType),
		"seq":            structpb.NewNumberValue(float64(seq)),
		"conversationId": structpb.NewStringValue(conversationID),
		"tsMs":           structpb.NewNumberValue(float64(tsMs)),
		"payload":        structpb.NewStructValue(value),
	}}
}

// MarshalEnvelope encodes env with deterministic map order.
func MarshalEnvelope(env *structpb.Struct) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(env)
}

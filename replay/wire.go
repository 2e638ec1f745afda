package replay

type WireReplayTape struct {
	TapeVersion    int               `json:"tapeVersion"`
	ConversationID string            `json:"conversationId"`
	NPCID          string            `json:"npcId"`
	Events         []WireReplayEvent `json:"events"`
}

type WireReplayEvent struct {
	Type        string `json:"type"`
	Seq         uint64 `json:"seq"`
	EnvelopeB64 string `json:"envelopeB64"`
}

func ToWireReplayTape(tape *ReplayTape) *WireReplayTape {
	if tape == nil {
		return nil
	}
	out := &WireReplayTape{
		TapeVersion:    tape.TapeVersion,
		ConversationID: tape.ConversationID,
		NPCID:          tape.NPCID,
		Events:         make([]WireReplayEvent, 0, len(tape.Events)),
	}
	for _, e := range tape.Events {
		out.Events = append(out.Events, WireReplayEvent{
			Type:        e.Type,
			Seq:         e.Seq,
			EnvelopeB64: e.EnvelopeB64,
		})
	}
	return out
}

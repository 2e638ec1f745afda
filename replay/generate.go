package replay

import (
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"parley-lite/conversation"
)

const defaultConversationID = "replay_local"

const tapeVersion = 1

// GenerateReplayTape runs spec against a fresh session and records every
// server-visible event.
func GenerateReplayTape(spec ConversationSpec) (*ReplayTape, error) {
	ns, err := normalizeSpec(spec)
	if err != nil {
		return nil, err
	}

	sess, err := conversation.NewSession(conversation.Config{
		NPCID:         ns.npcID,
		InitialState:  ns.initialState,
		Atmosphere:    ns.atmosphere,
		Patience:      ns.patience,
		FocusCapacity: ns.focus,
		OpeningHand:   ns.openingHand,
		Seed:          ns.seed,
	})
	if err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "engine_init_failed", Message: err.Error()}
	}

	builder := newTapeBuilder(defaultConversationID)
	opening, err := sess.Begin(ns.deck)
	if err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "begin_failed", Message: err.Error()}
	}
	for i, seed := range ns.seeded {
		if _, err := sess.AddExternalCard(seed.Card, seed.ToHand); err != nil {
			return nil, &ReplayError{StepIndex: -1, Reason: "seed_failed", Message: fmt.Sprintf("seeded[%d]: %v", i, err)}
		}
	}

	ids := make([]string, 0, len(opening))
	for _, in := range opening {
		ids = append(ids, in.ID)
	}
	if err := builder.add("openingHand", map[string]any{"cards": ids}); err != nil {
		return nil, err
	}
	if err := builder.addSnapshot(sess.Snapshot()); err != nil {
		return nil, err
	}

	for stepIdx, action := range ns.actions {
		before := sess.Snapshot()
		if before.Ended {
			return nil, &ReplayError{
				StepIndex: int32(stepIdx),
				Reason:    "conversation_ended",
				Message:   "conversation is already over; no further actions are allowed",
			}
		}

		var tr *conversation.TurnResult
		switch action.action {
		case conversation.ActionSpeak:
			uids, err := resolveHandCards(before.Hand, action.cards)
			if err != nil {
				return nil, &ReplayError{
					StepIndex: int32(stepIdx),
					Reason:    "card_not_in_hand",
					Message:   err.Error(),
					Expected:  expectedStateOf(before),
				}
			}
			tr, err = sess.ExecuteSpeak(uids...)
			if err != nil {
				return nil, actionError(stepIdx, err, before)
			}
		case conversation.ActionListen:
			tr, err = sess.ExecuteListen()
			if err != nil {
				return nil, actionError(stepIdx, err, before)
			}
		case conversation.ActionLeave:
			if _, err := sess.Leave(); err != nil {
				return nil, actionError(stepIdx, err, before)
			}
		}

		after := sess.Snapshot()
		if tr != nil {
			if err := builder.add("turn", TurnPayloadOf(tr)); err != nil {
				return nil, err
			}
		}
		if before.State != after.State {
			if err := builder.add("stateChange", StateChangePayload{From: before.State.String(), To: after.State.String()}); err != nil {
				return nil, err
			}
		}
		if before.Atmosphere != after.Atmosphere {
			if err := builder.add("atmosphere", AtmospherePayload{From: before.Atmosphere.String(), To: after.Atmosphere.String()}); err != nil {
				return nil, err
			}
		}
		if err := builder.addSnapshot(after); err != nil {
			return nil, err
		}
		if after.Ended {
			if err := builder.add("conversationEnd", OutcomePayloadOf(after.Outcome)); err != nil {
				return nil, err
			}
		}
	}

	return &ReplayTape{
		TapeVersion:    tapeVersion,
		ConversationID: builder.conversationID,
		NPCID:          ns.npcID,
		Events:         builder.events,
	}, nil
}

func actionError(stepIdx int, err error, before conversation.Snapshot) *ReplayError {
	reason := "action_apply_failed"
	switch {
	case errors.Is(err, conversation.ErrInsufficientFocus):
		reason = "insufficient_focus"
	case errors.Is(err, conversation.ErrConversationEnded):
		reason = "conversation_ended"
	case errors.Is(err, conversation.ErrCardNotInHand):
		reason = "card_not_in_hand"
	}
	return &ReplayError{
		StepIndex: int32(stepIdx),
		Reason:    reason,
		Message:   err.Error(),
		Expected:  expectedStateOf(before),
	}
}

func expectedStateOf(snap conversation.Snapshot) *ExpectedState {
	hand := make([]string, 0, len(snap.Hand))
	for _, c := range snap.Hand {
		hand = append(hand, c.ID)
	}
	return &ExpectedState{
		Hand:          hand,
		Focus:         snap.Focus,
		Patience:      snap.Patience,
		NextSpeakFree: snap.NextSpeakFree,
		State:         snap.State.String(),
	}
}

type tapeBuilder struct {
	conversationID string
	seq            uint64
	events         []ReplayEvent
}

func newTapeBuilder(conversationID string) *tapeBuilder {
	return &tapeBuilder{
		conversationID: conversationID,
		events:         make([]ReplayEvent, 0, 64),
	}
}

func (b *tapeBuilder) addSnapshot(snap conversation.Snapshot) error {
	payload := SnapshotPayloadOf(snap)
	payload.ConversationID = b.conversationID
	return b.add("snapshot", payload)
}

func (b *tapeBuilder) add(eventType string, payload any) error {
	value, err := ToStruct(payload)
	if err != nil {
		return &ReplayError{StepIndex: -1, Reason: "encode_failed", Message: fmt.Sprintf("%s: %v", eventType, err)}
	}
	return b.pushEnvelope(eventType, value)
}

func (b *tapeBuilder) pushEnvelope(eventType string, value *structpb.Struct) error {
	b.seq++
	// tsMs follows seq so two runs of one script encode identically
	bin, err := MarshalEnvelope(Envelope(eventType, b.seq, b.conversationID, int64(b.seq), value))
	if err != nil {
		return &ReplayError{StepIndex: -1, Reason: "encode_failed", Message: err.Error()}
	}
	b.events = append(b.events, ReplayEvent{
		Type:        eventType,
		Seq:         b.seq,
		Value:       value,
		EnvelopeB64: base64.StdEncoding.EncodeToString(bin),
	})
	return nil
}

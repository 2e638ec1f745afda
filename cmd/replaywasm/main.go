//go:build js && wasm

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"syscall/js"

	"parley-lite/content"
	"parley-lite/conversation/npc"
	"parley-lite/replay"
)

// initRequest carries a ConversationSpec or a persona id; with a persona the
// starting position and deck come from the embedded content.
type initRequest struct {
	Spec    replay.ConversationSpec `json:"spec"`
	Persona string                  `json:"persona,omitempty"`
}

type initResponse struct {
	OK    bool                   `json:"ok"`
	Tape  *replay.WireReplayTape `json:"tape,omitempty"`
	Error *replay.ReplayError    `json:"error,omitempty"`
}

func main() {
	js.Global().Set("__conversationReplay", js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) < 1 {
			return mustJSON(initResponse{
				OK:    false,
				Error: &replay.ReplayError{StepIndex: -1, Reason: "invalid_request", Message: "missing request payload"},
			})
		}
		return mustJSON(handleInit(args[0].String()))
	}))

	select {}
}

func handleInit(raw string) initResponse {
	var req initRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return initResponse{
			OK:    false,
			Error: &replay.ReplayError{StepIndex: -1, Reason: "invalid_json", Message: err.Error()},
		}
	}
	if req.Persona != "" {
		if err := fillFromPersona(&req.Spec, req.Persona); err != nil {
			return initResponse{
				OK:    false,
				Error: &replay.ReplayError{StepIndex: -1, Reason: "invalid_persona", Message: err.Error()},
			}
		}
	}

	tape, err := replay.GenerateReplayTape(req.Spec)
	if err != nil {
		var replayErr *replay.ReplayError
		if errors.As(err, &replayErr) {
			return initResponse{OK: false, Error: replayErr}
		}
		return initResponse{
			OK:    false,
			Error: &replay.ReplayError{StepIndex: -1, Reason: "replay_generation_failed", Message: err.Error()},
		}
	}
	return initResponse{
		OK:   true,
		Tape: replay.ToWireReplayTape(tape),
	}
}

func fillFromPersona(spec *replay.ConversationSpec, id string) error {
	reg := npc.NewRegistry()
	if err := reg.LoadFromJSON(content.PersonasJSON()); err != nil {
		return err
	}
	catalog, err := content.Catalog("")
	if err != nil {
		return err
	}
	p := reg.Get(id)
	if p == nil {
		return fmt.Errorf("unknown persona %q", id)
	}
	deck, err := catalog.Resolve(p.CardIDs())
	if err != nil {
		return err
	}
	spec.NPCID = p.ID
	spec.InitialState = p.InitialState.String()
	spec.Atmosphere = p.Atmosphere.String()
	spec.Patience = p.Patience
	spec.FocusCapacity = p.FocusCapacity
	if len(spec.Deck) == 0 {
		spec.Deck = deck
	}
	return nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		fallback := initResponse{
			OK:    false,
			Error: &replay.ReplayError{StepIndex: -1, Reason: "marshal_failed", Message: err.Error()},
		}
		b2, _ := json.Marshal(fallback)
		return string(b2)
	}
	return string(b)
}

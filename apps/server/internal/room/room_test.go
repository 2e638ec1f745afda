package room

import (
	"errors"
	"testing"
	"time"

	"parley-lite/apps/server/internal/codec"
	"parley-lite/content"
	"parley-lite/conversation/npc"
	"parley-lite/replay"
)

type recorder struct {
	frames []*codec.ServerFrame
}

func (rec *recorder) send(t *testing.T) func([]byte) {
	return func(data []byte) {
		frame, err := codec.DecodeServer(data)
		if err != nil {
			t.Errorf("DecodeServer err: %v", err)
			return
		}
		rec.frames = append(rec.frames, frame)
	}
}

func (rec *recorder) types() []string {
	out := make([]string, 0, len(rec.frames))
	for _, f := range rec.frames {
		out = append(out, f.Type)
	}
	return out
}

func (rec *recorder) last() *codec.ServerFrame {
	return rec.frames[len(rec.frames)-1]
}

func newTestRoom(t *testing.T, cfg Config, hooks ...EndHook) (*Room, *recorder) {
	t.Helper()
	reg := npc.NewRegistry()
	if err := reg.LoadFromJSON(content.PersonasJSON()); err != nil {
		t.Fatalf("load personas: %v", err)
	}
	catalog, err := content.Catalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	mgr := npc.NewManager(reg, catalog, nil)
	conv, err := mgr.Open("vera", npc.OpenOptions{Seed: 11})
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	rec := &recorder{}
	r := newRoom("room_test", 42, conv, mgr, cfg, rec.send(t), hooks...)
	r.mu.Lock()
	r.openLocked(time.Now())
	r.mu.Unlock()
	return r, rec
}

func TestOpenSendsOpeningFrames(t *testing.T) {
	r, rec := newTestRoom(t, Config{})
	got := rec.types()
	if len(got) != 2 || got[0] != "openingHand" || got[1] != "snapshot" {
		t.Fatalf("unexpected opening frames %v", got)
	}
	for i, f := range rec.frames {
		if f.Seq != uint64(i+1) || f.ConversationID != r.ConversationID() {
			t.Fatalf("frame %d: seq=%d conv=%s", i, f.Seq, f.ConversationID)
		}
	}
	var snap replay.SnapshotPayload
	if err := rec.last().Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.NPCID != "vera" || len(snap.Hand) == 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestMovesEmitTurnAndSnapshot(t *testing.T) {
	r, rec := newTestRoom(t, Config{})
	if err := r.handleEvent(Event{Type: EventListen}); err != nil {
		t.Fatalf("listen err: %v", err)
	}
	types := rec.types()
	if types[2] != "turn" || rec.last().Type != "snapshot" {
		t.Fatalf("unexpected frames after listen %v", types)
	}

	n := len(rec.frames)
	if err := r.handleEvent(Event{Type: EventSpeak, Cards: []uint64{999999}}); err == nil {
		t.Fatalf("expected error for a card not in hand")
	}
	if len(rec.frames) != n {
		t.Fatalf("rejected move must not emit frames")
	}

	if err := r.handleEvent(Event{Type: EventSnapshot}); err != nil {
		t.Fatalf("snapshot err: %v", err)
	}
	if rec.last().Type != "snapshot" {
		t.Fatalf("expected snapshot frame")
	}
}

func TestLeaveSettlesAndRunsHooks(t *testing.T) {
	ended := make(chan EndInfo, 1)
	r, rec := newTestRoom(t, Config{}, func(info EndInfo) { ended <- info })

	if err := r.handleEvent(Event{Type: EventLeave}); err != nil {
		t.Fatalf("leave err: %v", err)
	}
	if rec.last().Type != "conversationEnd" {
		t.Fatalf("expected conversationEnd last, got %v", rec.types())
	}
	var outcome replay.OutcomePayload
	if err := rec.last().Decode(&outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Kind != "abandoned" {
		t.Fatalf("expected abandoned, got %s", outcome.Kind)
	}
	if !r.IsClosed() {
		t.Fatalf("room should close once the conversation ends")
	}
	if err := r.handleEvent(Event{Type: EventListen}); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}

	select {
	case info := <-ended:
		if info.PlayerID != 42 || info.NPCID != "vera" || info.Outcome == nil {
			t.Fatalf("unexpected end info %+v", info)
		}
		if len(info.Tape) != len(rec.frames) || info.Tape[len(info.Tape)-1].EventType != "conversationEnd" {
			t.Fatalf("tape should mirror the sent frames")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("end hook not called")
	}
}

func TestIdlePlayerIsAutoplayed(t *testing.T) {
	r, rec := newTestRoom(t, Config{ActionTimeout: time.Second})
	n := len(rec.frames)

	r.tick(time.Now())
	if len(rec.frames) != n {
		t.Fatalf("tick before the deadline must not act")
	}
	r.tick(time.Now().Add(2 * time.Second))
	if len(rec.frames) <= n || rec.frames[n].Type != codec.FrameAutoplay {
		t.Fatalf("expected an autoplay frame, got %v", rec.types())
	}
	if r.Snapshot().Turn == 0 {
		t.Fatalf("autoplay should have taken a turn")
	}
}

func TestOfflinePlayerAbandons(t *testing.T) {
	r, rec := newTestRoom(t, Config{ActionTimeout: time.Second, OfflineTTL: time.Minute})
	lost := time.Now()
	if err := r.handleEvent(Event{Type: EventConnLost, Timestamp: lost}); err != nil {
		t.Fatalf("conn lost err: %v", err)
	}
	n := len(rec.frames)

	// offline players are not autoplayed
	r.tick(lost.Add(10 * time.Second))
	if len(rec.frames) != n || r.IsClosed() {
		t.Fatalf("offline player should wait out the ttl")
	}

	r.tick(lost.Add(2 * time.Minute))
	if !r.IsClosed() {
		t.Fatalf("room should close after the offline ttl")
	}
	if len(rec.frames) != n {
		t.Fatalf("frames must not be sent while offline")
	}
	if out := r.Snapshot().Outcome; out == nil || out.Kind.String() != "abandoned" {
		t.Fatalf("expected abandoned outcome, got %+v", out)
	}
}

func TestResumeSwapsSender(t *testing.T) {
	r, _ := newTestRoom(t, Config{})
	if err := r.handleEvent(Event{Type: EventConnLost}); err != nil {
		t.Fatalf("conn lost err: %v", err)
	}
	fresh := &recorder{}
	if err := r.handleEvent(Event{Type: EventConnResume, Send: fresh.send(t)}); err != nil {
		t.Fatalf("resume err: %v", err)
	}
	if len(fresh.frames) != 1 || fresh.frames[0].Type != "snapshot" {
		t.Fatalf("resume should resend a snapshot, got %v", fresh.types())
	}
}

func TestSubmitEventThroughActor(t *testing.T) {
	r, _ := newTestRoom(t, Config{})
	go r.run()
	defer r.Stop()

	if err := r.SubmitEvent(Event{Type: EventListen}); err != nil {
		t.Fatalf("SubmitEvent err: %v", err)
	}
	if err := r.SubmitEvent(Event{Type: EventClose}); err != nil {
		t.Fatalf("close err: %v", err)
	}
	if err := r.SubmitEvent(Event{Type: EventListen}); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
}

func TestFinalMoveIsAnsweredBeforeActorStops(t *testing.T) {
	for i := 0; i < 50; i++ {
		r, _ := newTestRoom(t, Config{})
		go r.run()

		if err := r.SubmitEvent(Event{Type: EventLeave}); err != nil {
			t.Fatalf("run %d: leave err: %v", i, err)
		}
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("run %d: actor did not stop after the conversation ended", i)
		}
		if err := r.SubmitEvent(Event{Type: EventListen}); !errors.Is(err, ErrRoomClosed) {
			t.Fatalf("run %d: expected ErrRoomClosed, got %v", i, err)
		}
	}
}

// Package room runs one live conversation as an actor: client moves arrive on
// an event queue, a heartbeat drives idle autoplay and offline abandonment,
// and every state change goes out as an envelope frame.
package room

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"parley-lite/apps/server/internal/codec"
	"parley-lite/apps/server/internal/ledger"
	"parley-lite/conversation"
	"parley-lite/conversation/npc"
	"parley-lite/replay"
)

// Room is a single player's conversation with one NPC.
type Room struct {
	ID       string
	PlayerID uint64
	Config   Config

	mu       sync.RWMutex
	conv     *npc.Conversation
	manager  *npc.Manager
	closed   bool
	stopOnce sync.Once
	finished bool

	events chan Event
	done   chan struct{}

	serverSeq uint64
	tape      []ledger.EventItem
	startedAt time.Time

	// 玩家行动截止时间, 超时由 brain 代打
	actionDeadline time.Time
	online         bool
	lastSeen       time.Time

	send     func(data []byte)
	endHooks []EndHook
}

type Config struct {
	ActionTimeout time.Duration // 0 disables idle autoplay
	OfflineTTL    time.Duration
}

type EventType int

const (
	EventSpeak EventType = iota
	EventListen
	EventLeave
	EventSnapshot
	EventConnLost
	EventConnResume
	EventClose
)

// Event is a message to the room actor.
type Event struct {
	Type      EventType
	Cards     []uint64
	Send      func(data []byte) // EventConnResume only
	Timestamp time.Time
	Response  chan error
}

// EndInfo is emitted once when the conversation reaches an outcome.
type EndInfo struct {
	RoomID         string
	PlayerID       uint64
	NPCID          string
	ConversationID string
	StartedAt      time.Time
	EndedAt        time.Time
	Snapshot       conversation.Snapshot
	Outcome        *conversation.Outcome
	Tape           []ledger.EventItem
}

type EndHook func(info EndInfo)

var ErrRoomClosed = errors.New("room closed")

const heartbeat = 500 * time.Millisecond

// New starts the actor for an opened conversation and sends the opening
// frames. manager may be nil; when set the conversation is untracked on stop.
func New(id string, playerID uint64, conv *npc.Conversation, manager *npc.Manager, cfg Config, send func(data []byte), hooks ...EndHook) *Room {
	r := newRoom(id, playerID, conv, manager, cfg, send, hooks...)
	r.mu.Lock()
	r.openLocked(time.Now())
	r.mu.Unlock()
	go r.run()
	return r
}

func newRoom(id string, playerID uint64, conv *npc.Conversation, manager *npc.Manager, cfg Config, send func(data []byte), hooks ...EndHook) *Room {
	if send == nil {
		send = func([]byte) {}
	}
	now := time.Now()
	return &Room{
		ID:        id,
		PlayerID:  playerID,
		Config:    cfg,
		conv:      conv,
		manager:   manager,
		events:    make(chan Event, 64),
		done:      make(chan struct{}),
		tape:      make([]ledger.EventItem, 0, 64),
		startedAt: now,
		online:    true,
		lastSeen:  now,
		send:      send,
		endHooks:  hooks,
	}
}

func (r *Room) run() {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case event := <-r.events:
			err := r.handleEvent(event)
			if event.Response != nil {
				event.Response <- err
			}
			if r.IsClosed() {
				r.shutdown()
			}
		case now := <-ticker.C:
			r.tick(now)
			if r.IsClosed() {
				r.shutdown()
			}
		case <-r.done:
			log.Printf("[Room %s] Actor stopped", r.ID)
			return
		}
	}
}

func (r *Room) handleEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed && e.Type != EventClose {
		return ErrRoomClosed
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	switch e.Type {
	case EventSpeak:
		return r.handleMove(conversation.ActionSpeak, e.Cards, e.Timestamp)
	case EventListen:
		return r.handleMove(conversation.ActionListen, nil, e.Timestamp)
	case EventLeave:
		return r.handleMove(conversation.ActionLeave, nil, e.Timestamp)
	case EventSnapshot:
		r.emitLocked("snapshot", r.snapshotPayloadLocked())
		return nil
	case EventConnLost:
		r.online = false
		r.lastSeen = e.Timestamp
		log.Printf("[Room %s] Player %d offline", r.ID, r.PlayerID)
		return nil
	case EventConnResume:
		r.online = true
		r.lastSeen = e.Timestamp
		if e.Send != nil {
			r.send = e.Send
		}
		r.actionDeadline = r.deadlineFrom(e.Timestamp)
		r.emitLocked("snapshot", r.snapshotPayloadLocked())
		return nil
	case EventClose:
		r.closeLocked()
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

func (r *Room) openLocked(now time.Time) {
	ids := make([]string, 0, len(r.conv.Opening))
	for _, inst := range r.conv.Opening {
		ids = append(ids, inst.Card.ID)
	}
	r.emitLocked("openingHand", map[string]any{"cards": ids})
	r.emitLocked("snapshot", r.snapshotPayloadLocked())
	r.actionDeadline = r.deadlineFrom(now)
}

func (r *Room) handleMove(action conversation.ActionType, cards []uint64, now time.Time) error {
	sess := r.conv.Session
	before := sess.Snapshot()

	var (
		tr  *conversation.TurnResult
		err error
	)
	switch action {
	case conversation.ActionSpeak:
		tr, err = sess.ExecuteSpeak(cards...)
	case conversation.ActionListen:
		tr, err = sess.ExecuteListen()
	case conversation.ActionLeave:
		_, err = sess.Leave()
	}
	if err != nil {
		return err
	}
	r.lastSeen = now
	r.afterMoveLocked(before, tr, now)
	return nil
}

// afterMoveLocked sends the frames for one executed move and settles the
// conversation if it ended.
func (r *Room) afterMoveLocked(before conversation.Snapshot, tr *conversation.TurnResult, now time.Time) {
	after := r.conv.Session.Snapshot()
	if tr != nil {
		r.emitLocked("turn", replay.TurnPayloadOf(tr))
	}
	if before.State != after.State {
		r.emitLocked("stateChange", replay.StateChangePayload{From: before.State.String(), To: after.State.String()})
	}
	if before.Atmosphere != after.Atmosphere {
		r.emitLocked("atmosphere", replay.AtmospherePayload{From: before.Atmosphere.String(), To: after.Atmosphere.String()})
	}
	r.emitLocked("snapshot", replay.SnapshotPayloadOf(after))
	if after.Ended {
		r.emitLocked("conversationEnd", replay.OutcomePayloadOf(after.Outcome))
		r.finishLocked(after, now)
		return
	}
	r.actionDeadline = r.deadlineFrom(now)
}

func (r *Room) tick(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.finished {
		return
	}
	if !r.online {
		if r.Config.OfflineTTL > 0 && now.Sub(r.lastSeen) >= r.Config.OfflineTTL {
			log.Printf("[Room %s] Player %d offline for %s, leaving", r.ID, r.PlayerID, r.Config.OfflineTTL)
			if err := r.handleMove(conversation.ActionLeave, nil, now); err != nil {
				log.Printf("[Room %s] offline leave failed: %v", r.ID, err)
				r.closeLocked()
			}
		}
		return
	}
	if r.actionDeadline.IsZero() || now.Before(r.actionDeadline) {
		return
	}
	r.autoplayLocked(now)
}

func (r *Room) autoplayLocked(now time.Time) {
	before := r.conv.Session.Snapshot()
	decision, tr, err := npc.Autoplay(r.conv.Session, r.conv.Brain)
	if err != nil {
		log.Printf("[Room %s] autoplay failed: %v", r.ID, err)
		r.actionDeadline = r.deadlineFrom(now)
		return
	}
	log.Printf("[Room %s] Player %d idle, %s played %s", r.ID, r.PlayerID, r.conv.Brain.Name(), decision.Action)
	r.emitLocked(codec.FrameAutoplay, map[string]any{
		"action": decision.Action.String(),
		"cards":  decision.Cards,
		"brain":  r.conv.Brain.Name(),
	})
	r.afterMoveLocked(before, tr, now)
}

func (r *Room) finishLocked(snap conversation.Snapshot, now time.Time) {
	if r.finished {
		return
	}
	r.finished = true
	r.actionDeadline = time.Time{}
	log.Printf("[Room %s] Conversation with %s ended: %s", r.ID, snap.NPCID, snap.Outcome.Kind)

	info := EndInfo{
		RoomID:         r.ID,
		PlayerID:       r.PlayerID,
		NPCID:          snap.NPCID,
		ConversationID: snap.ID,
		StartedAt:      r.startedAt,
		EndedAt:        now.UTC(),
		Snapshot:       snap,
		Outcome:        snap.Outcome,
		Tape:           append([]ledger.EventItem(nil), r.tape...),
	}
	for _, hook := range r.endHooks {
		if hook == nil {
			continue
		}
		go func(cb EndHook) {
			defer func() {
				if p := recover(); p != nil {
					log.Printf("[Room %s] end hook panic: %v", r.ID, p)
				}
			}()
			cb(info)
		}(hook)
	}
	r.closeLocked()
}

func (r *Room) emitLocked(frameType string, payload any) {
	r.serverSeq++
	data, err := codec.EncodeServer(r.conv.Session.ID(), r.serverSeq, time.Now().UnixMilli(), frameType, payload)
	if err != nil {
		log.Printf("[Room %s] encode %s failed: %v", r.ID, frameType, err)
		return
	}
	r.tape = append(r.tape, ledger.EventItem{
		Seq:         r.serverSeq,
		EventType:   frameType,
		EnvelopeB64: base64.StdEncoding.EncodeToString(data),
	})
	if r.online {
		r.send(data)
	}
}

func (r *Room) snapshotPayloadLocked() replay.SnapshotPayload {
	return replay.SnapshotPayloadOf(r.conv.Session.Snapshot())
}

func (r *Room) deadlineFrom(now time.Time) time.Time {
	if r.Config.ActionTimeout <= 0 {
		return time.Time{}
	}
	return now.Add(r.Config.ActionTimeout)
}

// SubmitEvent queues e and waits for the actor to handle it.
func (r *Room) SubmitEvent(e Event) error {
	e.Timestamp = time.Now()
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrRoomClosed
	}

	select {
	case r.events <- e:
	case <-r.done:
		return ErrRoomClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-r.done:
		return ErrRoomClosed
	}
}

// Stop shuts down the room actor.
func (r *Room) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Room) stopLocked() {
	r.closeLocked()
	r.shutdown()
}

// closeLocked rejects further events. Inside the actor done stays open
// until run has answered the current event.
func (r *Room) closeLocked() {
	r.closed = true
	r.actionDeadline = time.Time{}
}

func (r *Room) shutdown() {
	r.stopOnce.Do(func() {
		close(r.done)
		if r.manager != nil {
			r.manager.Close(r.conv.Session.ID())
		}
	})
}

func (r *Room) IsClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Snapshot returns the conversation state (thread-safe).
func (r *Room) Snapshot() conversation.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conv.Session.Snapshot()
}

func (r *Room) NPCID() string {
	return r.conv.Persona.ID
}

// ConversationID is the session id carried in every frame.
func (r *Room) ConversationID() string {
	return r.conv.Session.ID()
}

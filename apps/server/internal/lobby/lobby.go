package lobby

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"parley-lite/apps/server/internal/ledger"
	"parley-lite/apps/server/internal/room"
	"parley-lite/apps/server/internal/standing"
	"parley-lite/conversation"
	"parley-lite/conversation/npc"
)

var ErrUnknownPersona = errors.New("unknown persona")

type Config struct {
	ActionTimeout time.Duration
	OfflineTTL    time.Duration
	AutoplayStyle string
}

// Lobby manages the live rooms, one per player.
type Lobby struct {
	mu       sync.RWMutex
	rooms    map[uint64]*room.Room // playerID -> active room
	nextID   uint64
	cfg      Config
	manager  *npc.Manager
	ledger   ledger.Service
	standing standing.Service
}

// New creates a lobby. ledgerService and standingService may be nil.
func New(manager *npc.Manager, ledgerService ledger.Service, standingService standing.Service, cfg Config) *Lobby {
	return &Lobby{
		rooms:    make(map[uint64]*room.Room),
		cfg:      cfg,
		manager:  manager,
		ledger:   ledgerService,
		standing: standingService,
	}
}

// PersonaInfo is a persona as listed to one player.
type PersonaInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Tagline       string `json:"tagline"`
	Tier          int    `json:"tier"`
	Locked        bool   `json:"locked"`
	Trust         int    `json:"trust"`
	Conversations int    `json:"conversations"`
}

type OpenRequest struct {
	Persona string
	Style   string
	Seed    int64
}

func (l *Lobby) standings(ctx context.Context, playerID uint64) ([]standing.Standing, error) {
	if l.standing == nil {
		return nil, nil
	}
	return l.standing.List(ctx, playerID)
}

// Personas lists every persona with the player's standing.
func (l *Lobby) Personas(ctx context.Context, playerID uint64) ([]PersonaInfo, error) {
	list, err := l.standings(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("load standing: %w", err)
	}
	byNPC := make(map[string]standing.Standing, len(list))
	for _, s := range list {
		byNPC[s.NPCID] = s
	}
	personas := l.manager.Registry().All()
	out := make([]PersonaInfo, 0, len(personas))
	for _, p := range personas {
		s := byNPC[p.ID]
		out = append(out, PersonaInfo{
			ID:            p.ID,
			Name:          p.Name,
			Tagline:       p.Tagline,
			Tier:          p.Tier,
			Locked:        !standing.Unlocked(list, p.Tier),
			Trust:         s.Trust,
			Conversations: s.Conversations,
		})
	}
	return out, nil
}

// Open starts a conversation for playerID. A conversation the player already
// has running is abandoned first.
func (l *Lobby) Open(ctx context.Context, playerID uint64, req OpenRequest, send func(data []byte)) (*room.Room, error) {
	persona := l.manager.Registry().Get(strings.TrimSpace(req.Persona))
	if persona == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPersona, req.Persona)
	}
	list, err := l.standings(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("load standing: %w", err)
	}
	if !standing.Unlocked(list, persona.Tier) {
		return nil, fmt.Errorf("%w: %s", standing.ErrPersonaLocked, persona.Name)
	}
	mood := 0
	for _, s := range list {
		if s.NPCID == persona.ID {
			mood = standing.Mood(s.Trust)
		}
	}

	styleName := req.Style
	if styleName == "" {
		styleName = l.cfg.AutoplayStyle
	}
	style, ok := npc.Styles[styleName]
	if !ok {
		style = npc.CautiousStyle
	}

	if prev := l.Room(playerID); prev != nil {
		log.Printf("[Lobby] Player %d opened %s, abandoning %s", playerID, persona.ID, prev.ID)
		if err := prev.SubmitEvent(room.Event{Type: room.EventLeave}); err != nil && !errors.Is(err, room.ErrRoomClosed) {
			prev.Stop()
		}
	}

	conv, err := l.manager.Open(persona.ID, npc.OpenOptions{Seed: req.Seed, Style: style, Mood: mood})
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.nextID++
	roomID := fmt.Sprintf("room_%d", l.nextID)
	r := room.New(roomID, playerID, conv, l.manager, room.Config{
		ActionTimeout: l.cfg.ActionTimeout,
		OfflineTTL:    l.cfg.OfflineTTL,
	}, send, l.recordEnd)
	l.rooms[playerID] = r
	l.mu.Unlock()

	log.Printf("[Lobby] Player %d talking to %s in %s (mood %+d)", playerID, persona.Name, roomID, mood)
	return r, nil
}

// Room returns the player's running room, or nil.
func (l *Lobby) Room(playerID uint64) *room.Room {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r := l.rooms[playerID]
	if r == nil || r.IsClosed() {
		return nil
	}
	return r
}

// Disconnect marks the player's room offline.
func (l *Lobby) Disconnect(playerID uint64) {
	if r := l.Room(playerID); r != nil {
		_ = r.SubmitEvent(room.Event{Type: room.EventConnLost})
	}
}

// Resume reattaches a returning connection. Reports whether a room was found.
func (l *Lobby) Resume(playerID uint64, send func(data []byte)) bool {
	r := l.Room(playerID)
	if r == nil {
		return false
	}
	return r.SubmitEvent(room.Event{Type: room.EventConnResume, Send: send}) == nil
}

// Sweep drops closed rooms and returns how many were removed.
func (l *Lobby) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for playerID, r := range l.rooms {
		if r.IsClosed() {
			delete(l.rooms, playerID)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until ctx is done.
func (l *Lobby) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				log.Printf("[Lobby] Swept %d closed rooms", n)
			}
		}
	}
}

// Close stops every room.
func (l *Lobby) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for playerID, r := range l.rooms {
		r.Stop()
		delete(l.rooms, playerID)
	}
}

func (l *Lobby) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, r := range l.rooms {
		if !r.IsClosed() {
			n++
		}
	}
	return n
}

// recordEnd files a finished conversation in the ledger and the player's
// standing.
func (l *Lobby) recordEnd(info room.EndInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if l.ledger != nil {
		err := l.ledger.Record(ctx, ledger.Record{
			PlayerID:       info.PlayerID,
			ConversationID: info.ConversationID,
			Source:         ledger.SourceLive,
			NPCID:          info.NPCID,
			PlayedAt:       info.EndedAt,
			Summary:        summaryOf(info),
			Events:         info.Tape,
		})
		if err != nil {
			log.Printf("[Lobby] record %s failed: %v", info.ConversationID, err)
		}
	}
	if l.standing != nil {
		if _, err := l.standing.Apply(ctx, info.PlayerID, info.NPCID, info.Outcome); err != nil {
			log.Printf("[Lobby] standing for %d/%s failed: %v", info.PlayerID, info.NPCID, err)
		}
	}
}

func summaryOf(info room.EndInfo) map[string]any {
	out := info.Outcome
	if out == nil {
		out = &conversation.Outcome{}
	}
	return map[string]any{
		"outcome":       out.Kind.String(),
		"reason":        out.Reason,
		"turns":         out.Turns,
		"total_rapport": out.TotalRapport,
		"final_state":   out.FinalState.String(),
		"goal":          out.GoalCardID,
		"duration_ms":   info.EndedAt.Sub(info.StartedAt).Milliseconds(),
		"event_count":   len(info.Tape),
	}
}

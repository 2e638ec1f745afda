package npc

import (
	"fmt"
	"log"
	"sync"

	"parley-lite/card"
	"parley-lite/conversation"
)

// Conversation is an open session with a persona.
type Conversation struct {
	Session *conversation.Session
	Persona *Persona
	Brain   Decider
	Opening []*card.Instance
}

// OpenOptions tune a single conversation.
type OpenOptions struct {
	Seed  int64
	Style PlayStyle
	// Extra cards seeded into the draw pile by the caller (deliveries,
	// observations).
	Extra []card.Card
	// Mood shifts the persona's initial state by whole steps; positive is
	// warmer. Clamped at Desperate and Connected.
	Mood int
}

// Manager opens conversations from personas and tracks the live ones.
type Manager struct {
	registry *PersonaRegistry
	catalog  *card.Catalog
	rules    *conversation.Ruleset

	mu   sync.RWMutex
	open map[string]*Conversation // keyed by session ID
}

// NewManager creates an NPC manager. rules may be nil.
func NewManager(registry *PersonaRegistry, catalog *card.Catalog, rules *conversation.Ruleset) *Manager {
	if rules == nil {
		rules = conversation.DefaultRuleset()
	}
	return &Manager{
		registry: registry,
		catalog:  catalog,
		rules:    rules,
		open:     make(map[string]*Conversation),
	}
}

// Registry returns the underlying PersonaRegistry.
func (m *Manager) Registry() *PersonaRegistry {
	return m.registry
}

func (m *Manager) Catalog() *card.Catalog {
	return m.catalog
}

// Open builds a session for personaID, deals the opening hand and tracks it.
func (m *Manager) Open(personaID string, opts OpenOptions) (*Conversation, error) {
	persona := m.registry.Get(personaID)
	if persona == nil {
		return nil, fmt.Errorf("unknown persona %q", personaID)
	}
	deck, err := m.catalog.Resolve(persona.CardIDs())
	if err != nil {
		return nil, fmt.Errorf("persona %s: %w", persona.ID, err)
	}
	deck = append(deck, opts.Extra...)

	seed := opts.Seed
	if seed == 0 {
		if seed, err = conversation.NewSeed(); err != nil {
			return nil, err
		}
	}
	state := persona.InitialState
	for i := 0; i < opts.Mood; i++ {
		state = state.Up()
	}
	for i := 0; i > opts.Mood; i-- {
		state = state.Down()
	}
	sess, err := conversation.NewSession(conversation.Config{
		NPCID:         persona.ID,
		InitialState:  state,
		Atmosphere:    persona.Atmosphere,
		Patience:      persona.Patience,
		FocusCapacity: persona.FocusCapacity,
		Rules:         m.rules,
		Seed:          seed,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", persona.Name, err)
	}
	opening, err := sess.Begin(deck)
	if err != nil {
		return nil, err
	}

	style := opts.Style
	if style.Name == "" {
		style = CautiousStyle
	}
	conv := &Conversation{
		Session: sess,
		Persona: persona,
		Brain:   NewRuleBrain(style, seed^0x5eed),
		Opening: opening,
	}

	m.mu.Lock()
	m.open[sess.ID()] = conv
	m.mu.Unlock()

	log.Printf("[NPC] Opened conversation %s with %s (seed=%d, deck=%d)", sess.ID(), persona.Name, seed, len(deck))
	return conv, nil
}

// Get returns the open conversation for a session ID, or nil.
func (m *Manager) Get(sessionID string) *Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.open[sessionID]
}

// Autoplay asks the conversation's brain for a move and executes it.
func (m *Manager) Autoplay(sessionID string) (Decision, *conversation.TurnResult, error) {
	conv := m.Get(sessionID)
	if conv == nil {
		return Decision{}, nil, fmt.Errorf("unknown conversation %s", sessionID)
	}
	return Autoplay(conv.Session, conv.Brain)
}

// Autoplay runs one Decider move against s. An unplayable SPEAK falls back to
// LISTEN.
func Autoplay(s *conversation.Session, brain Decider) (Decision, *conversation.TurnResult, error) {
	d := brain.Decide(ViewOf(s.Snapshot()))
	if d.Action == conversation.ActionSpeak && len(d.Cards) > 0 {
		tr, err := s.ExecuteSpeak(d.Cards...)
		if err == nil {
			return d, tr, nil
		}
		log.Printf("[NPC] %s speak rejected (%v), listening instead", brain.Name(), err)
	}
	d = Decision{Action: conversation.ActionListen}
	tr, err := s.ExecuteListen()
	return d, tr, err
}

// Close stops tracking a conversation.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	conv := m.open[sessionID]
	delete(m.open, sessionID)
	m.mu.Unlock()

	if conv != nil {
		log.Printf("[NPC] Closed conversation %s with %s", sessionID, conv.Persona.Name)
	}
}

// OpenCount returns the number of tracked conversations.
func (m *Manager) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.open)
}

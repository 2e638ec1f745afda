package auth

import (
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// MemoryStore keeps players and sessions in process. Used for STORE_MODE=memory
// and tests.
type MemoryStore struct {
	mu sync.Mutex

	nextPlayerID uint64
	sessionTTL   time.Duration
	now          func() time.Time

	sessions map[string]memorySession // token -> session
	players  map[uint64]memoryPlayer
	byName   map[string]uint64 // normalized username -> player
}

type memorySession struct {
	PlayerID  uint64
	ExpiresAt time.Time
}

type memoryPlayer struct {
	ID           uint64
	Username     string
	PasswordHash []byte
	Guest        bool
	LastLogin    time.Time
}

func NewMemoryStore(sessionTTL time.Duration) *MemoryStore {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &MemoryStore{
		nextPlayerID: 100000,
		sessionTTL:   sessionTTL,
		now:          time.Now,
		sessions:     make(map[string]memorySession),
		players:      make(map[uint64]memoryPlayer),
		byName:       make(map[string]uint64),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Register(username, password string) (uint64, string, error) {
	if err := validateUsername(username); err != nil {
		return 0, "", err
	}
	if err := validatePassword(password); err != nil {
		return 0, "", err
	}
	normalized := normalizeUsername(username)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byName[normalized]; taken {
		return 0, "", ErrUsernameTaken
	}
	now := m.now()
	id := m.addPlayerLocked(memoryPlayer{Username: normalized, PasswordHash: hash, LastLogin: now})
	return id, m.issueLocked(id, now), nil
}

func (m *MemoryStore) Login(username, password string) (uint64, string, error) {
	normalized := normalizeUsername(username)
	if normalized == "" || password == "" {
		return 0, "", ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[normalized]
	if !ok {
		return 0, "", ErrInvalidCredentials
	}
	p := m.players[id]
	if p.Guest || len(p.PasswordHash) == 0 {
		return 0, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(password)) != nil {
		return 0, "", ErrInvalidCredentials
	}
	now := m.now()
	p.LastLogin = now
	m.players[id] = p
	return id, m.issueLocked(id, now), nil
}

func (m *MemoryStore) ResolveSession(token string) (uint64, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveLocked(token, m.now())
}

func (m *MemoryStore) Guest(token string) (uint64, string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if id, _, ok := m.resolveLocked(token, now); ok {
		return id, token, true, nil
	}
	id := m.addPlayerLocked(memoryPlayer{Username: guestName(), Guest: true, LastLogin: now})
	return id, m.issueLocked(id, now), false, nil
}

func (m *MemoryStore) Logout(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *MemoryStore) addPlayerLocked(p memoryPlayer) uint64 {
	m.nextPlayerID++
	p.ID = m.nextPlayerID
	m.players[p.ID] = p
	m.byName[p.Username] = p.ID
	return p.ID
}

func (m *MemoryStore) issueLocked(playerID uint64, now time.Time) string {
	token := mustToken()
	m.sessions[token] = memorySession{PlayerID: playerID, ExpiresAt: now.Add(m.sessionTTL)}
	return token
}

// resolveLocked slides the expiry forward on every hit.
func (m *MemoryStore) resolveLocked(token string, now time.Time) (uint64, string, bool) {
	if token == "" {
		return 0, "", false
	}
	s, ok := m.sessions[token]
	if !ok {
		return 0, "", false
	}
	if !now.Before(s.ExpiresAt) {
		delete(m.sessions, token)
		return 0, "", false
	}
	s.ExpiresAt = now.Add(m.sessionTTL)
	m.sessions[token] = s
	return s.PlayerID, m.players[s.PlayerID].Username, true
}

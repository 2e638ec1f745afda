package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"parley-lite/apps/server/internal/auth"
	"parley-lite/apps/server/internal/codec"
	"parley-lite/apps/server/internal/lobby"
	"parley-lite/apps/server/internal/room"
	"parley-lite/apps/server/internal/standing"
	"parley-lite/conversation"
)

const (
	readLimit    = 65536
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict to the web client's origin once it has a fixed host
	},
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID       string
	PlayerID uint64
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway

	closeOnce sync.Once
	closed    chan struct{}
	seq       atomic.Uint64 // for frames outside a conversation
}

// Gateway manages WebSocket connections
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	playerConns map[uint64]*Connection
	nextConnID  uint64
	lobby       *lobby.Lobby
	auth        auth.Service
}

func New(lby *lobby.Lobby, authService auth.Service) *Gateway {
	return &Gateway{
		connections: make(map[string]*Connection),
		playerConns: make(map[uint64]*Connection),
		lobby:       lby,
		auth:        authService,
	}
}

type welcomePayload struct {
	PlayerID     uint64 `json:"playerId"`
	SessionToken string `json:"sessionToken"`
	Reused       bool   `json:"reused"`
	Resumed      bool   `json:"resumed"`
}

// HandleWebSocket authenticates by ?token= or a bearer header and upgrades.
// A missing or stale token gets a fresh guest session.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = auth.BearerToken(r.Header.Get("Authorization"))
	}
	playerID, sessionToken, reused, err := g.auth.Guest(token)
	if err != nil {
		log.Printf("[Gateway] Session error: %v", err)
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:       fmt.Sprintf("conn_%d", g.nextConnID),
		PlayerID: playerID,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		Gateway:  g,
		closed:   make(chan struct{}),
	}
	prev := g.playerConns[playerID]
	g.connections[c.ID] = c
	g.playerConns[playerID] = c
	total := len(g.connections)
	g.mu.Unlock()

	if prev != nil {
		log.Printf("[Gateway] Player %d reconnected, closing %s", playerID, prev.ID)
		prev.close()
	}
	log.Printf("[Gateway] Client connected: %s (player=%d), total: %d", c.ID, playerID, total)

	go c.writePump()
	resumed := g.lobby.Resume(playerID, c.enqueue)
	c.sendFrame(codec.FrameWelcome, welcomePayload{
		PlayerID:     playerID,
		SessionToken: sessionToken,
		Reused:       reused,
		Resumed:      resumed,
	})
	go c.readPump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}
		if messageType == websocket.BinaryMessage {
			c.handleMessage(message)
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	msg, err := codec.DecodeClient(data)
	if err != nil {
		c.sendError("", err)
		return
	}

	switch msg.Type {
	case codec.TypeOpen:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err = c.Gateway.lobby.Open(ctx, c.PlayerID, lobby.OpenRequest{
			Persona: msg.Persona,
			Style:   msg.Style,
			Seed:    msg.Seed,
		}, c.enqueue)
	case codec.TypePersonas:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var list []lobby.PersonaInfo
		if list, err = c.Gateway.lobby.Personas(ctx, c.PlayerID); err == nil {
			c.sendFrame(codec.FramePersonas, map[string]any{"requestId": msg.RequestID, "personas": list})
		}
	case codec.TypeSpeak:
		err = c.submit(room.Event{Type: room.EventSpeak, Cards: msg.Cards})
	case codec.TypeListen:
		err = c.submit(room.Event{Type: room.EventListen})
	case codec.TypeLeave:
		err = c.submit(room.Event{Type: room.EventLeave})
	case codec.TypeSnapshot:
		err = c.submit(room.Event{Type: room.EventSnapshot})
	}
	if err != nil {
		c.sendError(msg.RequestID, err)
	}
}

var errNoConversation = errors.New("no conversation in progress")

func (c *Connection) submit(e room.Event) error {
	r := c.Gateway.lobby.Room(c.PlayerID)
	if r == nil {
		return errNoConversation
	}
	return r.SubmitEvent(e)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, codec.ErrInvalidFrame):
		return "invalid_frame"
	case errors.Is(err, errNoConversation):
		return "no_conversation"
	case errors.Is(err, conversation.ErrInsufficientFocus):
		return "insufficient_focus"
	case errors.Is(err, conversation.ErrCardNotInHand):
		return "card_not_in_hand"
	case errors.Is(err, conversation.ErrConversationEnded), errors.Is(err, room.ErrRoomClosed):
		return "conversation_ended"
	case errors.Is(err, standing.ErrPersonaLocked):
		return "persona_locked"
	case errors.Is(err, lobby.ErrUnknownPersona):
		return "unknown_persona"
	default:
		return "internal"
	}
}

func (c *Connection) sendError(requestID string, err error) {
	c.sendFrame(codec.FrameError, codec.ErrorPayload{
		RequestID: requestID,
		Code:      errorCode(err),
		Message:   err.Error(),
	})
}

func (c *Connection) sendFrame(frameType string, payload any) {
	data, err := codec.EncodeServer("", c.seq.Add(1), time.Now().UnixMilli(), frameType, payload)
	if err != nil {
		log.Printf("[Gateway] encode %s failed: %v", frameType, err)
		return
	}
	c.enqueue(data)
}

// enqueue drops the frame if the client is not keeping up.
func (c *Connection) enqueue(data []byte) {
	select {
	case <-c.closed:
	case c.Send <- data:
	default:
		log.Printf("[Gateway] %s send buffer full, dropping frame", c.ID)
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.Conn.Close()
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.ID)
	current := g.playerConns[c.PlayerID] == c
	if current {
		delete(g.playerConns, c.PlayerID)
	}
	total := len(g.connections)
	g.mu.Unlock()

	// a replaced connection must not mark the player offline
	if current {
		g.lobby.Disconnect(c.PlayerID)
	}
	log.Printf("[Gateway] Client disconnected: %s, total: %d", c.ID, total)
}

// ConnectionCount returns the number of open connections.
func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}

// Package notifications holds the websocket session registry and client pumps.
package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"campuschat/internal/models"
	"campuschat/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	// ErrUnknownSession is returned when a connection id is not registered.
	ErrUnknownSession = errors.New("unknown websocket session")
	// ErrConnLimit is returned when a connection limit would be exceeded.
	ErrConnLimit = errors.New("connection limit reached")
)

var wsLog = observability.NewWSLogger("chat")

// session is the registry entry for one connection.
type session struct {
	client  *Client
	faculty string
	rooms   map[models.Room]struct{}
}

// ChatHub is the session registry: it maps connections to identities and room
// subscriptions, and fans frames out to rooms. Fan-out never blocks on a
// slow client.
type ChatHub struct {
	mu sync.RWMutex

	// connID -> session
	sessions map[string]*session

	// room -> connID -> session
	rooms map[models.Room]map[string]*session

	// userID -> number of open connections
	perUser map[uint]int
}

// Name returns a human-readable identifier for this hub.
func (h *ChatHub) Name() string { return "chat hub" }

// NewChatHub creates an empty hub.
func NewChatHub() *ChatHub {
	return &ChatHub{
		sessions: make(map[string]*session),
		rooms:    make(map[models.Room]map[string]*session),
		perUser:  make(map[uint]int),
	}
}

// Register creates a client for conn and adds it to the registry with no room memberships.
func (h *ChatHub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	client := NewClient(h, conn, userID)
	if err := h.RegisterClient(client); err != nil {
		return nil, err
	}
	return client, nil
}

// RegisterClient adds an already built client.
func (h *ChatHub) RegisterClient(client *Client) error {
	h.mu.Lock()
	if len(h.sessions) >= maxTotalConns || h.perUser[client.UserID] >= maxConnsPerUser {
		h.mu.Unlock()
		return ErrConnLimit
	}
	h.sessions[client.ConnID] = &session{client: client, rooms: make(map[models.Room]struct{})}
	h.perUser[client.UserID]++
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	wsLog.LogConnect(context.Background(), client.UserID, client.ConnID)
	return nil
}

// UnregisterClient removes the client's session; see Leave.
func (h *ChatHub) UnregisterClient(client *Client) {
	h.Leave(client.ConnID)
}

// Leave removes the session and every room subscription it holds, then closes
// its outbound channel. Unknown ids are ignored.
func (h *ChatHub) Leave(connID string) {
	h.mu.Lock()
	s, ok := h.sessions[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	for room := range s.rooms {
		h.unsubscribeLocked(connID, room)
	}
	delete(h.sessions, connID)

	uid := s.client.UserID
	if h.perUser[uid]--; h.perUser[uid] <= 0 {
		delete(h.perUser, uid)
	}
	h.mu.Unlock()

	s.client.close()
	observability.WebSocketConnectionsTotal.Dec()
	wsLog.LogDisconnect(context.Background(), uid, connID, "leave")
}

// BindFaculty records the session's faculty and subscribes it to the faculty
// room, replacing any previous faculty subscription.
func (h *ChatHub) BindFaculty(connID string, userID uint, faculty string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok || s.client.UserID != userID {
		return ErrUnknownSession
	}
	if s.faculty != "" && s.faculty != faculty {
		h.unsubscribeLocked(connID, models.FacultyRoom(s.faculty))
	}
	s.faculty = faculty
	h.subscribeLocked(s, models.FacultyRoom(faculty))
	return nil
}

// Subscribe adds the session to room. Subscribing twice is a no-op.
func (h *ChatHub) Subscribe(connID string, room models.Room) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok {
		return ErrUnknownSession
	}
	h.subscribeLocked(s, room)
	return nil
}

func (h *ChatHub) subscribeLocked(s *session, room models.Room) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*session)
		h.rooms[room] = members
	}
	members[s.client.ConnID] = s
	s.rooms[room] = struct{}{}
}

func (h *ChatHub) unsubscribeLocked(connID string, room models.Room) {
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if s, ok := h.sessions[connID]; ok {
		delete(s.rooms, room)
	}
}

// Publish queues payload to every session in room whose user is not skipped.
// skip may be nil. It returns the number of sessions the frame was queued to.
func (h *ChatHub) Publish(room models.Room, payload []byte, skip func(userID uint) bool) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, s := range h.rooms[room] {
		if skip != nil && skip(s.client.UserID) {
			continue
		}
		if s.client.TrySend(payload) {
			n++
		}
	}
	return n
}

// PublishExcept queues payload to every session in room other than exceptConnID.
func (h *ChatHub) PublishExcept(room models.Room, payload []byte, exceptConnID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for connID, s := range h.rooms[room] {
		if connID == exceptConnID {
			continue
		}
		if s.client.TrySend(payload) {
			n++
		}
	}
	return n
}

// SendTo queues payload to a single session.
func (h *ChatHub) SendTo(connID string, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[connID]
	if !ok {
		return false
	}
	return s.client.TrySend(payload)
}

// DisconnectUser queues notice to every session of userID and then removes
// them. notice may be nil. It returns the number of sessions removed.
func (h *ChatHub) DisconnectUser(userID uint, notice []byte) int {
	h.mu.RLock()
	var connIDs []string
	for connID, s := range h.sessions {
		if s.client.UserID == userID {
			if notice != nil {
				s.client.TrySend(notice)
			}
			connIDs = append(connIDs, connID)
		}
	}
	h.mu.RUnlock()

	for _, connID := range connIDs {
		h.Leave(connID)
	}
	return len(connIDs)
}

// SessionCount returns the number of registered sessions.
func (h *ChatHub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown tells every client the server is going away and closes their
// outbound channels. Queued frames are still flushed by the write pumps.
func (h *ChatHub) Shutdown(ctx context.Context) error {
	notice, err := models.EncodeEvent(models.EventServerShutdown, map[string]string{"message": "Server is shutting down"})
	if err != nil {
		return err
	}

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.sessions))
	for _, s := range h.sessions {
		clients = append(clients, s.client)
	}
	h.sessions = make(map[string]*session)
	h.rooms = make(map[models.Room]map[string]*session)
	h.perUser = make(map[uint]int)
	h.mu.Unlock()

	for _, c := range clients {
		c.TrySend(notice)
		c.close()
	}
	observability.WebSocketConnectionsTotal.Sub(float64(len(clients)))
	wsLog.LogLifecycle(ctx, "shutdown", slog.Int("sessions", len(clients)))
	return nil
}

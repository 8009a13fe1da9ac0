package directory

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
)

// Conn is the transport handle the directory hands out. *websocket.Conn
// satisfies it; tests substitute fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Entry ties a live transport to its connection id and, once joined, the
// game it belongs to.
type Entry struct {
	ID     string
	Conn   Conn
	GameID string
}

// Directory maps unguessable connection ids to transports. It never touches
// game state; seat assignment lives with the session registry.
type Directory struct {
	mu    sync.RWMutex
	conns map[string]*Entry
}

func New() *Directory {
	return &Directory{
		conns: make(map[string]*Entry),
	}
}

// Register stores a transport under a fresh connection id with no game
// assigned and returns the id.
func (that *Directory) Register(conn Conn) string {
	id := newConnectionID()

	that.mu.Lock()
	defer that.mu.Unlock()

	that.conns[id] = &Entry{ID: id, Conn: conn}

	return id
}

// Unregister drops the entry. Releasing any seat the connection held is the
// caller's responsibility.
func (that *Directory) Unregister(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.conns, id)
}

// Get returns a snapshot of the entry for id.
func (that *Directory) Get(id string) (Entry, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	entry, ok := that.conns[id]
	if !ok {
		return Entry{}, false
	}

	return *entry, true
}

// BindGame records the game a connection has joined.
func (that *Directory) BindGame(id, gameID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if entry, ok := that.conns[id]; ok {
		entry.GameID = gameID
	}
}

// newConnectionID generates a cryptographically unguessable connection id.
func newConnectionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Errorf("failed to read random bytes: %w", err))
	}

	return base64.RawURLEncoding.EncodeToString(b)
}

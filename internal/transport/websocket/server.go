package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/xtremettt/backend/internal/directory"
	"github.com/xtremettt/backend/internal/dispatcher"
	"github.com/xtremettt/backend/internal/entity"
)

const (
	firstMessageTimeout = 30 * time.Second
	shutdownTimeout     = 5 * time.Second
)

type gameManager interface {
	CreateGame(ctx context.Context, connID string) (*entity.Session, string, error)
	JoinGame(ctx context.Context, gameID, connID string) (*entity.Session, string, error)
	JoinGameByToken(ctx context.Context, connID, encryptedGameID string) (*entity.Session, string, error)
	LeaveGame(ctx context.Context, gameID, connID string) (*entity.Session, bool, error)
	MakeMove(ctx context.Context, gameID, connID string, big, small int) (*entity.Session, error)
	ResumeGame(ctx context.Context, connID, savedGame string) (*entity.Session, string, error)
}

type Server struct {
	logger  *slog.Logger
	manager gameManager
	dir     *directory.Directory
	events  *dispatcher.Dispatcher

	upgrader websocket.Upgrader
}

func New(logger *slog.Logger, manager gameManager, dir *directory.Directory, events *dispatcher.Dispatcher) *Server {
	return &Server{
		logger:  logger,
		manager: manager,
		dir:     dir,
		events:  events,

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Start - starts the WebSocket server and blocks until ctx is canceled or
// the listener fails.
func (that *Server) Start(ctx context.Context, addr, port string) error {
	router := mux.NewRouter()
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.handleUpgrade(ctx, w, r)
	})

	srv := &http.Server{
		Addr:    net.JoinHostPort(addr, port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down websocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// handleUpgrade - upgrades the connection to WebSocket and runs its loop.
func (that *Server) handleUpgrade(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleUpgrade")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	log.Info("WebSocket connection established")

	that.handleConnection(ctx, &safeConn{conn: conn})
}

// safeConn serializes writes: the dispatcher may write to one transport from
// several connection goroutines, which gorilla connections do not allow.
type safeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (that *safeConn) WriteJSON(v any) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.conn.WriteJSON(v)
}

func (that *safeConn) ReadJSON(v any) error {
	return that.conn.ReadJSON(v)
}

func (that *safeConn) SetReadDeadline(t time.Time) error {
	return that.conn.SetReadDeadline(t)
}

func (that *safeConn) Close() error {
	return that.conn.Close()
}

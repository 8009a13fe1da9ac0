package websocket

import (
	"context"
	"time"

	"github.com/xtremettt/backend/internal/apperror"
	"github.com/xtremettt/backend/internal/entity"
)

const (
	messageTypeConnect = "connect"
	messageTypeMove    = "move"
)

// clientMessage is the shape of every client-to-server message. Index fields
// are pointers so a missing index is distinguishable from index 0.
type clientMessage struct {
	Type            string `json:"type"`
	GameID          string `json:"game_id,omitempty"`
	EncryptedGameID string `json:"encrypted_game_id,omitempty"`
	SavedGame       string `json:"saved_game,omitempty"`
	BigIndex        *int   `json:"big_index,omitempty"`
	SmallIndex      *int   `json:"small_index,omitempty"`
}

// handleConnection owns one transport from registration to cleanup. Seat
// release and directory removal run on every exit path.
func (that *Server) handleConnection(ctx context.Context, conn *safeConn) {
	connID := that.dir.Register(conn)

	defer that.cleanup(ctx, connID, conn)

	session, err := that.handleConnect(ctx, connID, conn)
	if err != nil {
		// first-message failure: report and drop the connection
		that.events.SendError(connID, err)
		return
	}

	that.readLoop(ctx, connID, session.GameID, conn)
}

// handleConnect consumes the mandatory first message and routes it: join by
// game id (plain or encrypted), resume by saved-game token, or start a new
// game.
func (that *Server) handleConnect(ctx context.Context, connID string, conn *safeConn) (*entity.Session, error) {
	log := that.logger.With("method", "handleConnect", "connID", connID)

	_ = conn.SetReadDeadline(time.Now().Add(firstMessageTimeout))

	var message clientMessage
	if err := conn.ReadJSON(&message); err != nil {
		return nil, apperror.ErrInvalidType
	}

	_ = conn.SetReadDeadline(time.Time{})

	if message.Type != messageTypeConnect {
		return nil, apperror.ErrInvalidType
	}

	var (
		session *entity.Session
		mark    string
		err     error
	)

	switch {
	case message.GameID != "":
		session, mark, err = that.manager.JoinGame(ctx, message.GameID, connID)
	case message.SavedGame != "":
		session, mark, err = that.manager.ResumeGame(ctx, connID, message.SavedGame)
	case message.EncryptedGameID != "":
		session, mark, err = that.manager.JoinGameByToken(ctx, connID, message.EncryptedGameID)
	default:
		session, mark, err = that.manager.CreateGame(ctx, connID)
	}

	if err != nil {
		log.Error("failed to connect", "error", err)
		return nil, err
	}

	that.dir.BindGame(connID, session.GameID)

	that.events.SendGameID(connID, session)
	that.events.SendPlayerAssign(connID, mark)
	that.events.BroadcastPlayerStatus(session)
	that.events.BroadcastState(session)

	log.Info("player connected", "gameID", session.GameID, "player", mark)

	return session, nil
}

// readLoop processes move messages until the transport closes. Rejections
// are reported to the offending connection only; the loop keeps going.
func (that *Server) readLoop(ctx context.Context, connID, gameID string, conn *safeConn) {
	log := that.logger.With("method", "readLoop", "connID", connID, "gameID", gameID)

	for {
		var message clientMessage
		if err := conn.ReadJSON(&message); err != nil {
			log.Info("connection closed", "error", err)
			return
		}

		if message.Type != messageTypeMove || message.BigIndex == nil || message.SmallIndex == nil {
			that.events.SendError(connID, apperror.ErrInvalidType)
			continue
		}

		session, err := that.manager.MakeMove(ctx, gameID, connID, *message.BigIndex, *message.SmallIndex)
		if err != nil {
			that.events.SendError(connID, err)
			continue
		}

		that.events.BroadcastState(session)
	}
}

// cleanup releases the seat, tells the remaining player, and removes the
// connection. It must not fail: a session deleted concurrently is a no-op.
func (that *Server) cleanup(ctx context.Context, connID string, conn *safeConn) {
	log := that.logger.With("method", "cleanup", "connID", connID)

	if entry, ok := that.dir.Get(connID); ok && entry.GameID != "" {
		session, deleted, err := that.manager.LeaveGame(ctx, entry.GameID, connID)
		if err != nil {
			log.Error("failed to leave game", "gameID", entry.GameID, "error", err)
		}

		if session != nil && !deleted {
			that.events.BroadcastPlayerStatus(session)
		}
	}

	that.dir.Unregister(connID)

	if err := conn.Close(); err != nil {
		log.Debug("failed to close connection", "error", err)
	}

	log.Info("connection closed and cleaned up")
}

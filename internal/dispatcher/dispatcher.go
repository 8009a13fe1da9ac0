package dispatcher

import (
	"log/slog"

	"github.com/xtremettt/backend/internal/apperror"
	"github.com/xtremettt/backend/internal/directory"
	"github.com/xtremettt/backend/internal/entity"
)

const (
	typeGameID       = "game_id"
	typePlayerAssign = "player_assign"
	typePlayerStatus = "player_status"
	typeState        = "state"
	typeError        = "error"

	statusConnected    = "Connected"
	statusDisconnected = "Disconnected"
)

type GameIDMessage struct {
	Type            string `json:"type"`
	GameID          string `json:"game_id"`
	EncryptedGameID string `json:"encrypted_game_id"`
}

type PlayerAssignMessage struct {
	Type   string `json:"type"`
	Player string `json:"player"`
}

type PlayerStatusMessage struct {
	Type    string `json:"type"`
	PlayerX string `json:"player_x"`
	PlayerO string `json:"player_o"`
}

type StateMessage struct {
	Type           string        `json:"type"`
	State          *entity.State `json:"state"`
	EncryptedState string        `json:"encrypted_state"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type stateCodec interface {
	EncodeSavedGame(gameID, player string, state *entity.State) (string, error)
	EncryptGameID(gameID string) (string, error)
}

// Dispatcher turns session transitions into outbound messages. It is the
// only component that writes to transports; sends are fire-and-forget and
// failures never reach game state.
type Dispatcher struct {
	logger *slog.Logger
	dir    *directory.Directory
	codec  stateCodec
}

func New(logger *slog.Logger, dir *directory.Directory, codec stateCodec) *Dispatcher {
	return &Dispatcher{
		logger: logger,
		dir:    dir,
		codec:  codec,
	}
}

// SendGameID tells one connection its game id in plain and encrypted form.
func (that *Dispatcher) SendGameID(connID string, session *entity.Session) {
	encrypted, err := that.codec.EncryptGameID(session.GameID)
	if err != nil {
		that.logger.Error("failed to encrypt game id", "gameID", session.GameID, "error", err)
	}

	that.send(connID, GameIDMessage{
		Type:            typeGameID,
		GameID:          session.GameID,
		EncryptedGameID: encrypted,
	})
}

// SendPlayerAssign tells one connection which seat it holds.
func (that *Dispatcher) SendPlayerAssign(connID, mark string) {
	that.send(connID, PlayerAssignMessage{
		Type:   typePlayerAssign,
		Player: mark,
	})
}

// BroadcastPlayerStatus reports both seats' connectivity to every seated
// connection.
func (that *Dispatcher) BroadcastPlayerStatus(session *entity.Session) {
	message := PlayerStatusMessage{
		Type:    typePlayerStatus,
		PlayerX: seatStatus(session.PlayerX),
		PlayerO: seatStatus(session.PlayerO),
	}

	for _, connID := range seatedConns(session) {
		that.send(connID, message)
	}
}

// BroadcastState sends the current state to every seated connection, each
// with a resumable token bound to its own seat.
func (that *Dispatcher) BroadcastState(session *entity.Session) {
	for _, connID := range seatedConns(session) {
		mark, ok := session.SeatOf(connID)
		if !ok {
			continue
		}

		encrypted, err := that.codec.EncodeSavedGame(session.GameID, mark, session.State)
		if err != nil {
			that.logger.Error("failed to encode saved game", "gameID", session.GameID, "error", err)
		}

		that.send(connID, StateMessage{
			Type:           typeState,
			State:          session.State,
			EncryptedState: encrypted,
		})
	}
}

// SendError reports a recoverable failure to the offending connection only.
func (that *Dispatcher) SendError(connID string, err error) {
	that.send(connID, ErrorMessage{
		Type:  typeError,
		Error: apperror.Message(err),
	})
}

func (that *Dispatcher) send(connID string, message any) {
	entry, ok := that.dir.Get(connID)
	if !ok {
		return
	}

	if err := entry.Conn.WriteJSON(message); err != nil {
		that.logger.Error("failed to send message", "connID", connID, "error", err)
	}
}

func seatStatus(connID string) string {
	if connID == "" {
		return statusDisconnected
	}
	return statusConnected
}

func seatedConns(session *entity.Session) []string {
	conns := make([]string, 0, 2)
	if session.PlayerX != "" {
		conns = append(conns, session.PlayerX)
	}
	if session.PlayerO != "" {
		conns = append(conns, session.PlayerO)
	}

	return conns
}

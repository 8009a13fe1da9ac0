package entity

import "math/rand"

// Session pairs two connections over one game. Seats hold connection ids;
// an empty string means the seat is free.
type Session struct {
	GameID  string `json:"game_id"`
	PlayerX string `json:"player_x,omitempty"`
	PlayerO string `json:"player_o,omitempty"`
	State   *State `json:"state"`
}

func NewSession(gameID string) *Session {
	return &Session{
		GameID: gameID,
		State:  NewState(),
	}
}

// Clone returns a deep copy that shares no state with the receiver.
func (that *Session) Clone() *Session {
	clone := *that
	if that.State != nil {
		clone.State = that.State.Clone()
	}

	return &clone
}

// SeatOf returns the mark of the seat held by connID, if any.
func (that *Session) SeatOf(connID string) (string, bool) {
	switch {
	case connID != "" && that.PlayerX == connID:
		return PlayerX, true
	case connID != "" && that.PlayerO == connID:
		return PlayerO, true
	default:
		return "", false
	}
}

// Seat assigns connID to the seat with the given mark.
func (that *Session) Seat(mark, connID string) {
	if mark == PlayerO {
		that.PlayerO = connID
		return
	}
	that.PlayerX = connID
}

// SeatHolder returns the connection id seated at mark.
func (that *Session) SeatHolder(mark string) string {
	if mark == PlayerO {
		return that.PlayerO
	}
	return that.PlayerX
}

// FillSeat places connID into a free seat, preferring X, and returns the
// assigned mark. It reports false when both seats are taken.
func (that *Session) FillSeat(connID string) (string, bool) {
	if that.PlayerX == "" {
		that.PlayerX = connID
		return PlayerX, true
	}

	if that.PlayerO == "" {
		that.PlayerO = connID
		return PlayerO, true
	}

	return "", false
}

// ClearSeat frees whichever seat connID holds.
func (that *Session) ClearSeat(connID string) {
	if connID == "" {
		return
	}

	if that.PlayerX == connID {
		that.PlayerX = ""
	}

	if that.PlayerO == connID {
		that.PlayerO = ""
	}
}

// IsEmpty reports whether both seats are free.
func (that *Session) IsEmpty() bool {
	return that.PlayerX == "" && that.PlayerO == ""
}

// RandomMark picks X or O with equal probability, used to seat the creator
// of a new game.
func RandomMark() string {
	if rand.Intn(2) == 0 { //nolint: gosec // seat assignment needs no crypto randomness
		return PlayerX
	}
	return PlayerO
}

package entity

import (
	"time"

	"github.com/xtremettt/backend/internal/apperror"
)

const (
	PlayerX   = "X"
	PlayerO   = "O"
	PlayerTie = "-"

	EmptyCell = ""

	boardSize = 9
)

// WinCombos are the 8 winning lines of a 3x3 grid, shared by sub-boards and
// the meta-board.
var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board is a single 3x3 grid in row-major order. Cells hold EmptyCell,
// PlayerX or PlayerO.
type Board [boardSize]string

// Winner returns the mark that completed a line, or EmptyCell if none.
func (that Board) Winner() string {
	for _, combo := range WinCombos {
		a, b, c := that[combo[0]], that[combo[1]], that[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	return EmptyCell
}

// IsFull reports whether no cell is empty.
func (that Board) IsFull() bool {
	for _, cell := range that {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

// State is the authoritative state of one session: nine sub-boards, their
// resolved outcomes, the active-board constraint and the player to move.
type State struct {
	Boards      [boardSize]Board  `json:"board"`
	SubWins     [boardSize]string `json:"small_wins"`
	ActiveBoard *int              `json:"active_board"`
	Turn        string            `json:"current_player"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewState returns a fresh state: every cell empty, every sub-board
// undecided, no active-board constraint, X to move.
func NewState() *State {
	return &State{
		Turn:      PlayerX,
		UpdatedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy that shares nothing with the receiver.
func (that *State) Clone() *State {
	clone := *that
	if that.ActiveBoard != nil {
		active := *that.ActiveBoard
		clone.ActiveBoard = &active
	}

	return &clone
}

// ApplyMove validates and applies one move for player at cell small of
// sub-board big. Preconditions are checked in a fixed order and the first
// failure wins; on any failure the state is left untouched.
func (that *State) ApplyMove(player string, big, small int) error {
	if big < 0 || big >= boardSize || small < 0 || small >= boardSize {
		return apperror.ErrInvalidCell
	}

	if that.Turn != player {
		return apperror.ErrNotYourTurn
	}

	if that.SubWins[big] != EmptyCell {
		return apperror.ErrBoardDecided
	}

	if that.Boards[big][small] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	if that.ActiveBoard != nil && *that.ActiveBoard != big {
		return apperror.ErrWrongBoard
	}

	if that.Winner() != EmptyCell {
		return apperror.ErrGameFinished
	}

	that.Boards[big][small] = player
	that.resolveSubBoard(big)
	that.Turn = toggleMark(player)
	that.setActiveBoard(small)
	that.UpdatedAt = time.Now().UTC()

	return nil
}

// resolveSubBoard freezes the outcome of sub-board big once it is won or
// fully drawn. A decided outcome is never recomputed.
func (that *State) resolveSubBoard(big int) {
	if that.SubWins[big] != EmptyCell {
		return
	}

	if winner := that.Boards[big].Winner(); winner != EmptyCell {
		that.SubWins[big] = winner
		return
	}

	if that.Boards[big].IsFull() {
		that.SubWins[big] = PlayerTie
	}
}

// setActiveBoard constrains the next move to sub-board small, unless that
// sub-board is decided or full, in which case any sub-board is playable.
func (that *State) setActiveBoard(small int) {
	if that.SubWins[small] != EmptyCell || that.Boards[small].IsFull() {
		that.ActiveBoard = nil
		return
	}

	active := small
	that.ActiveBoard = &active
}

// Winner derives the overall outcome from the sub-board outcomes: the mark
// that completed a meta-line, PlayerTie when all nine sub-boards are decided
// without a line, or EmptyCell while the game is in progress.
func (that *State) Winner() string {
	for _, combo := range WinCombos {
		a, b, c := that.SubWins[combo[0]], that.SubWins[combo[1]], that.SubWins[combo[2]]
		if (a == PlayerX || a == PlayerO) && a == b && b == c {
			return a
		}
	}

	for _, outcome := range that.SubWins {
		if outcome == EmptyCell {
			return EmptyCell
		}
	}

	return PlayerTie
}

// IsFinished reports whether the game has an overall winner or is drawn.
func (that *State) IsFinished() bool {
	return that.Winner() != EmptyCell
}

func toggleMark(currentMark string) string {
	if currentMark == PlayerX {
		return PlayerO
	}
	return PlayerX
}

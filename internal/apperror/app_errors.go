package apperror

import "errors"

var (
	ErrGameNotFound     = errors.New("game not found")
	ErrGameFull         = errors.New("game is already full")
	ErrInvalidType      = errors.New("invalid message type")
	ErrInvalidSavedGame = errors.New("invalid saved game")

	ErrGameFinished = errors.New("game is already finished")
	ErrNotYourTurn  = errors.New("it's not your turn")
	ErrCellOccupied = errors.New("cell is already occupied")
	ErrBoardDecided = errors.New("sub-board is already decided")
	ErrWrongBoard   = errors.New("move must target the active sub-board")
	ErrInvalidCell  = errors.New("invalid cell index")
	ErrNotInGame    = errors.New("connection is not seated in this game")
)

// Message renders an error into the human-readable string sent to clients.
// Every move-legality failure collapses into "Invalid move"; anything outside
// the closed set is reported as an invalid message so internals never leak.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return "Game not found"
	case errors.Is(err, ErrGameFull):
		return "Invalid game ID"
	case errors.Is(err, ErrInvalidSavedGame):
		return "Invalid saved game"
	case errors.Is(err, ErrGameFinished),
		errors.Is(err, ErrNotYourTurn),
		errors.Is(err, ErrCellOccupied),
		errors.Is(err, ErrBoardDecided),
		errors.Is(err, ErrWrongBoard),
		errors.Is(err, ErrInvalidCell),
		errors.Is(err, ErrNotInGame):
		return "Invalid move"
	default:
		return "Invalid message type"
	}
}

package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xtremettt/backend/internal/apperror"
	"github.com/xtremettt/backend/internal/entity"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

var ErrInvalidKeySize = errors.New("token key must be 32 bytes")

// Associated data separates the two token kinds so a game-id token can never
// be replayed as a saved game and vice versa.
var (
	savedGameContext = []byte("saved_game")
	gameIDContext    = []byte("game_id")
)

// SavedGame is the canonical payload of a resumable-state token: the game it
// belongs to, the seat the holder claims, and the full state snapshot.
type SavedGame struct {
	GameID string        `json:"game_id"`
	Player string        `json:"player"`
	State  *entity.State `json:"state"`
}

// Codec seals game state into tamper-evident, url-safe tokens under a
// server-held symmetric key.
type Codec struct {
	aead cipher.AEAD
}

func New(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// GenerateKey returns a fresh random key. Tokens sealed under a generated
// key do not survive a restart; production deployments configure the key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	return key, nil
}

// EncodeSavedGame seals a state snapshot for the given seat into a token.
func (that *Codec) EncodeSavedGame(gameID, player string, state *entity.State) (string, error) {
	payload, err := json.Marshal(SavedGame{
		GameID: gameID,
		Player: player,
		State:  state,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal saved game: %w", err)
	}

	return that.seal(payload, savedGameContext)
}

// DecodeSavedGame opens and validates a saved-game token. It fails closed:
// any authentication failure, malformed payload, or semantically inconsistent
// state yields apperror.ErrInvalidSavedGame.
func (that *Codec) DecodeSavedGame(token string) (*SavedGame, error) {
	payload, err := that.open(token, savedGameContext)
	if err != nil {
		return nil, apperror.ErrInvalidSavedGame
	}

	var saved SavedGame
	if err = json.Unmarshal(payload, &saved); err != nil {
		return nil, apperror.ErrInvalidSavedGame
	}

	if err = validateSavedGame(&saved); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidSavedGame, err)
	}

	return &saved, nil
}

// EncryptGameID seals a game id into an opaque token.
func (that *Codec) EncryptGameID(gameID string) (string, error) {
	return that.seal([]byte(gameID), gameIDContext)
}

// DecryptGameID opens a game-id token. Failures are reported as an invalid
// saved game since the token is client-held resumption material.
func (that *Codec) DecryptGameID(token string) (string, error) {
	payload, err := that.open(token, gameIDContext)
	if err != nil {
		return "", apperror.ErrInvalidSavedGame
	}

	return string(payload), nil
}

func (that *Codec) seal(payload, context []byte) (string, error) {
	nonce := make([]byte, that.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := that.aead.Seal(nonce, nonce, payload, context)

	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (that *Codec) open(token string, context []byte) ([]byte, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	nonceSize := that.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.New("token too short")
	}

	payload, err := that.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], context)
	if err != nil {
		return nil, fmt.Errorf("failed to open token: %w", err)
	}

	return payload, nil
}

// validateSavedGame rejects payloads that decrypt cleanly but describe a
// state no legal move sequence could produce.
func validateSavedGame(saved *SavedGame) error {
	if saved.GameID == "" {
		return errors.New("missing game id")
	}

	if saved.Player != entity.PlayerX && saved.Player != entity.PlayerO {
		return errors.New("unknown player mark")
	}

	state := saved.State
	if state == nil {
		return errors.New("missing state")
	}

	if state.Turn != entity.PlayerX && state.Turn != entity.PlayerO {
		return errors.New("unknown turn mark")
	}

	countX, countO := 0, 0
	for i := range state.Boards {
		for _, cell := range state.Boards[i] {
			switch cell {
			case entity.PlayerX:
				countX++
			case entity.PlayerO:
				countO++
			case entity.EmptyCell:
			default:
				return errors.New("unknown cell mark")
			}
		}
	}

	// X always opens, so the mark counts pin down whose turn it is.
	switch {
	case countX == countO && state.Turn != entity.PlayerX:
		return errors.New("turn does not match mark counts")
	case countX == countO+1 && state.Turn != entity.PlayerO:
		return errors.New("turn does not match mark counts")
	case countX != countO && countX != countO+1:
		return errors.New("impossible mark counts")
	}

	// Sub-board outcomes must be exactly what the cells imply: once decided
	// a sub-board takes no further moves, so recomputing reproduces it.
	for i := range state.Boards {
		expected := entity.EmptyCell
		if winner := state.Boards[i].Winner(); winner != entity.EmptyCell {
			expected = winner
		} else if state.Boards[i].IsFull() {
			expected = entity.PlayerTie
		}

		if state.SubWins[i] != expected {
			return errors.New("sub-board outcome contradicts cells")
		}
	}

	if active := state.ActiveBoard; active != nil {
		if *active < 0 || *active > 8 {
			return errors.New("active board out of range")
		}

		if state.SubWins[*active] != entity.EmptyCell || state.Boards[*active].IsFull() {
			return errors.New("active board points at an unplayable sub-board")
		}
	}

	return nil
}

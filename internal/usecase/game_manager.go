package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/xtremettt/backend/internal/apperror"
	"github.com/xtremettt/backend/internal/entity"
	"github.com/xtremettt/backend/internal/repository"
	"github.com/xtremettt/backend/internal/token"
)

type sessionRepo interface {
	Save(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

type savedGameCodec interface {
	DecodeSavedGame(tok string) (*token.SavedGame, error)
	DecryptGameID(tok string) (string, error)
}

// GameManager is the session registry: it owns all mutation of session state
// and serializes mutations per game id. Cross-game operations run in
// parallel.
type GameManager struct {
	logger   *slog.Logger
	sessions sessionRepo
	codec    savedGameCodec

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGameManager(logger *slog.Logger, sessions sessionRepo, codec savedGameCodec) *GameManager {
	return &GameManager{
		logger:   logger,
		sessions: sessions,
		codec:    codec,

		locks: make(map[string]*sync.Mutex),
	}
}

// CreateGame starts a new session with the creating connection in a
// uniformly random seat and the other seat empty.
func (that *GameManager) CreateGame(ctx context.Context, connID string) (*entity.Session, string, error) {
	session := entity.NewSession(uuid.NewString())
	mark := entity.RandomMark()
	session.Seat(mark, connID)

	if err := that.sessions.Save(ctx, session); err != nil {
		return nil, "", fmt.Errorf("failed to save session: %w", err)
	}

	that.logger.Info("started game", "gameID", session.GameID)

	return session, mark, nil
}

// JoinGame seats the connection into the remaining free seat.
func (that *GameManager) JoinGame(ctx context.Context, gameID, connID string) (*entity.Session, string, error) {
	unlock := that.lockGame(gameID)
	defer unlock()

	session, err := that.getSession(ctx, gameID)
	if err != nil {
		return nil, "", err
	}

	if mark, ok := session.SeatOf(connID); ok {
		return session, mark, nil
	}

	mark, ok := session.FillSeat(connID)
	if !ok {
		return nil, "", apperror.ErrGameFull
	}

	if err = that.sessions.Save(ctx, session); err != nil {
		return nil, "", fmt.Errorf("failed to save session: %w", err)
	}

	return session, mark, nil
}

// JoinGameByToken seats the connection into the game named by an encrypted
// game-id token, as handed out alongside the plain id on connect.
func (that *GameManager) JoinGameByToken(ctx context.Context, connID, encryptedGameID string) (*entity.Session, string, error) {
	gameID, err := that.codec.DecryptGameID(encryptedGameID)
	if err != nil {
		return nil, "", err
	}

	return that.JoinGame(ctx, gameID, connID)
}

// LeaveGame frees the seat held by connID. When both seats end up empty the
// session is deleted and the second return value is true. Cleanup is best
// effort: a session already gone is a no-op.
func (that *GameManager) LeaveGame(ctx context.Context, gameID, connID string) (*entity.Session, bool, error) {
	unlock := that.lockGame(gameID)
	defer unlock()

	session, err := that.sessions.GetByID(ctx, gameID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to get session: %w", err)
	}

	session.ClearSeat(connID)

	if session.IsEmpty() {
		if err = that.sessions.DeleteByID(ctx, gameID); err != nil {
			return nil, false, fmt.Errorf("failed to delete session: %w", err)
		}

		that.forgetLock(gameID)
		that.logger.Info("ended game", "gameID", gameID)

		return nil, true, nil
	}

	if err = that.sessions.Save(ctx, session); err != nil {
		return nil, false, fmt.Errorf("failed to save session: %w", err)
	}

	return session, false, nil
}

// MakeMove applies one move for the seat held by connID. Validation runs on
// a copy of the state; the copy is installed only on acceptance, so a
// rejected move leaves the stored state untouched.
func (that *GameManager) MakeMove(ctx context.Context, gameID, connID string, big, small int) (*entity.Session, error) {
	unlock := that.lockGame(gameID)
	defer unlock()

	session, err := that.getSession(ctx, gameID)
	if err != nil {
		return nil, err
	}

	mark, ok := session.SeatOf(connID)
	if !ok {
		return nil, apperror.ErrNotInGame
	}

	next := session.State.Clone()
	if err = next.ApplyMove(mark, big, small); err != nil {
		return nil, err
	}

	session.State = next
	if err = that.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// ResumeGame re-seats a connection from a saved-game token. When the session
// still exists the token holder takes their claimed seat if it is free; the
// live state stays authoritative. When the session is gone it is
// reconstructed from the token snapshot under its original game id.
func (that *GameManager) ResumeGame(ctx context.Context, connID, savedGame string) (*entity.Session, string, error) {
	saved, err := that.codec.DecodeSavedGame(savedGame)
	if err != nil {
		return nil, "", err
	}

	unlock := that.lockGame(saved.GameID)
	defer unlock()

	session, err := that.sessions.GetByID(ctx, saved.GameID)

	if errors.Is(err, repository.ErrSessionNotFound) {
		session = &entity.Session{
			GameID: saved.GameID,
			State:  saved.State.Clone(),
		}
		session.Seat(saved.Player, connID)

		if err = that.sessions.Save(ctx, session); err != nil {
			return nil, "", fmt.Errorf("failed to save session: %w", err)
		}

		that.logger.Info("restored game from saved state", "gameID", session.GameID)

		return session, saved.Player, nil
	}

	if err != nil {
		return nil, "", fmt.Errorf("failed to get session: %w", err)
	}

	if holder := session.SeatHolder(saved.Player); holder != "" && holder != connID {
		return nil, "", apperror.ErrGameFull
	}

	session.Seat(saved.Player, connID)

	if err = that.sessions.Save(ctx, session); err != nil {
		return nil, "", fmt.Errorf("failed to save session: %w", err)
	}

	return session, saved.Player, nil
}

// GetGame returns the current session for observers such as the dispatcher.
func (that *GameManager) GetGame(ctx context.Context, gameID string) (*entity.Session, error) {
	return that.getSession(ctx, gameID)
}

func (that *GameManager) getSession(ctx context.Context, gameID string) (*entity.Session, error) {
	session, err := that.sessions.GetByID(ctx, gameID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, apperror.ErrGameNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// lockGame serializes mutations for one game id and returns the unlock.
func (that *GameManager) lockGame(gameID string) func() {
	that.mu.Lock()
	lock, ok := that.locks[gameID]
	if !ok {
		lock = &sync.Mutex{}
		that.locks[gameID] = lock
	}
	that.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}

func (that *GameManager) forgetLock(gameID string) {
	that.mu.Lock()
	delete(that.locks, gameID)
	that.mu.Unlock()
}

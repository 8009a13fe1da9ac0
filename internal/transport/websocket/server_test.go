package websocket

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtremettt/backend/internal/directory"
	"github.com/xtremettt/backend/internal/dispatcher"
	"github.com/xtremettt/backend/internal/entity"
	"github.com/xtremettt/backend/internal/repository"
	"github.com/xtremettt/backend/internal/token"
	"github.com/xtremettt/backend/internal/usecase"
)

const readTimeout = 5 * time.Second

// serverMessage is a catch-all envelope for every server-to-client message.
type serverMessage struct {
	Type            string        `json:"type"`
	GameID          string        `json:"game_id"`
	EncryptedGameID string        `json:"encrypted_game_id"`
	Player          string        `json:"player"`
	PlayerX         string        `json:"player_x"`
	PlayerO         string        `json:"player_o"`
	State           *entity.State `json:"state"`
	EncryptedState  string        `json:"encrypted_state"`
	Error           string        `json:"error"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	key, err := token.GenerateKey()
	require.NoError(t, err)

	codec, err := token.New(key)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := directory.New()
	events := dispatcher.New(logger, dir, codec)
	manager := usecase.NewGameManager(logger, repository.NewMemorySessionRepository(), codec)
	server := New(logger, manager, dir, events)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.handleUpgrade(context.Background(), w, r)
	}))
	t.Cleanup(ts.Close)

	return ts
}

func dial(t *testing.T, ts *httptest.Server) *gws.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, resp, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readMessage(t *testing.T, conn *gws.Conn) serverMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))

	var message serverMessage
	require.NoError(t, conn.ReadJSON(&message))

	return message
}

// readUntil drains messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *gws.Conn, messageType string) serverMessage {
	t.Helper()

	for i := 0; i < 10; i++ {
		message := readMessage(t, conn)
		if message.Type == messageType {
			return message
		}
	}

	t.Fatalf("no %q message received", messageType)
	return serverMessage{}
}

// connect performs the initial handshake for a new game and returns the
// assigned game id and mark.
func connectNew(t *testing.T, conn *gws.Conn) (string, string) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "connect"}))

	gameIDMessage := readUntil(t, conn, "game_id")
	assignMessage := readUntil(t, conn, "player_assign")

	return gameIDMessage.GameID, assignMessage.Player
}

func TestServer_EndToEnd(t *testing.T) {
	ts := newTestServer(t)

	// Given: a creator connected to a new game
	connA := dial(t, ts)
	gameIDStr, markAStr := connectNew(t, connA)
	require.NotEmpty(t, gameIDStr)
	require.Contains(t, []string{"X", "O"}, markAStr)

	// Then: the creator also receives status and initial state
	statusMessage := readUntil(t, connA, "player_status")
	require.Contains(t, []string{"Connected", "Disconnected"}, statusMessage.PlayerX)
	stateMessage := readUntil(t, connA, "state")
	require.NotNil(t, stateMessage.State)
	require.Equal(t, "X", stateMessage.State.Turn)

	// When: a second client joins by game id
	connB := dial(t, ts)
	require.NoError(t, connB.WriteJSON(map[string]any{"type": "connect", "game_id": gameIDStr}))

	joinGameID := readUntil(t, connB, "game_id")
	require.Equal(t, gameIDStr, joinGameID.GameID)
	markB := readUntil(t, connB, "player_assign").Player

	// Then: the seats are exactly X and O in some order
	require.NotEqual(t, markAStr, markB)
	require.Contains(t, []string{"X", "O"}, markB)

	// Then: both players see both seats connected
	joinStatus := readUntil(t, connB, "player_status")
	require.Equal(t, "Connected", joinStatus.PlayerX)
	require.Equal(t, "Connected", joinStatus.PlayerO)
	readUntil(t, connB, "state")

	creatorStatus := readUntil(t, connA, "player_status")
	require.Equal(t, "Connected", creatorStatus.PlayerX)
	require.Equal(t, "Connected", creatorStatus.PlayerO)
	readUntil(t, connA, "state")

	// When: X plays (big=4, small=0)
	connX, connO := connA, connB
	if markAStr == "O" {
		connX, connO = connB, connA
	}

	require.NoError(t, connX.WriteJSON(map[string]any{"type": "move", "big_index": 4, "small_index": 0}))

	// Then: both clients receive the updated state
	for _, conn := range []*gws.Conn{connX, connO} {
		update := readUntil(t, conn, "state")
		require.NotNil(t, update.State)
		require.Equal(t, "X", update.State.Boards[4][0])
		require.Equal(t, "O", update.State.Turn)
		require.NotNil(t, update.State.ActiveBoard)
		require.Equal(t, 0, *update.State.ActiveBoard)
		require.NotEmpty(t, update.EncryptedState)
	}

	// When: O ignores the active-board constraint
	require.NoError(t, connO.WriteJSON(map[string]any{"type": "move", "big_index": 5, "small_index": 5}))

	// Then: only the offender receives an error
	errorMessage := readUntil(t, connO, "error")
	assert.Equal(t, "Invalid move", errorMessage.Error)
}

func TestServer_JoinUnknownGame(t *testing.T) {
	ts := newTestServer(t)

	conn := dial(t, ts)

	// When: connecting with an unknown game id
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "connect", "game_id": "no-such-game"}))

	// Then: the server reports the error and closes the connection
	message := readUntil(t, conn, "error")
	require.Equal(t, "Game not found", message.Error)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	var next serverMessage
	assert.Error(t, conn.ReadJSON(&next))
}

func TestServer_FirstMessageMustBeConnect(t *testing.T) {
	ts := newTestServer(t)

	conn := dial(t, ts)

	// When: the first message is not a connect
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "move", "big_index": 0, "small_index": 0}))

	// Then: the server reports an invalid type and closes
	message := readUntil(t, conn, "error")
	assert.Equal(t, "Invalid message type", message.Error)
}

func TestServer_InvalidTypeMidGameKeepsConnection(t *testing.T) {
	ts := newTestServer(t)

	conn := dial(t, ts)
	connectNew(t, conn)
	readUntil(t, conn, "state")

	// When: sending an unknown message type mid-game
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "chat"}))

	// Then: an error arrives but the connection still accepts moves
	message := readUntil(t, conn, "error")
	require.Equal(t, "Invalid message type", message.Error)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "move", "big_index": 4, "small_index": 4}))

	// A move from whichever seat we hold either lands or is rejected as out
	// of turn; the connection stays open either way.
	next := readMessage(t, conn)
	assert.Contains(t, []string{"state", "error"}, next.Type)
}

func TestServer_DisconnectNotifiesRemainingSeat(t *testing.T) {
	ts := newTestServer(t)

	connA := dial(t, ts)
	gameID, _ := connectNew(t, connA)
	readUntil(t, connA, "state")

	connB := dial(t, ts)
	require.NoError(t, connB.WriteJSON(map[string]any{"type": "connect", "game_id": gameID}))
	readUntil(t, connB, "state")
	readUntil(t, connA, "state")

	// When: the second client disconnects
	require.NoError(t, connB.Close())

	// Then: the remaining player sees one seat drop to Disconnected
	status := readUntil(t, connA, "player_status")
	seats := []string{status.PlayerX, status.PlayerO}
	assert.Contains(t, seats, "Disconnected")
	assert.Contains(t, seats, "Connected")
}

func TestServer_JoinByEncryptedGameID(t *testing.T) {
	ts := newTestServer(t)

	// Given: a creator holding the encrypted form of its game id
	connA := dial(t, ts)
	require.NoError(t, connA.WriteJSON(map[string]any{"type": "connect"}))
	created := readUntil(t, connA, "game_id")
	require.NotEmpty(t, created.EncryptedGameID)

	// When: a second client joins with the encrypted id only
	connB := dial(t, ts)
	require.NoError(t, connB.WriteJSON(map[string]any{"type": "connect", "encrypted_game_id": created.EncryptedGameID}))

	// Then: it lands in the same game
	joined := readUntil(t, connB, "game_id")
	assert.Equal(t, created.GameID, joined.GameID)
}

func TestServer_ResumeBySavedGame(t *testing.T) {
	ts := newTestServer(t)

	// Given: a player with a saved-game token from a live game
	connA := dial(t, ts)
	connectNew(t, connA)
	saved := readUntil(t, connA, "state").EncryptedState
	require.NotEmpty(t, saved)

	// When: the player drops and reconnects with the token
	require.NoError(t, connA.Close())

	// give the server a moment to run the disconnect cleanup
	time.Sleep(100 * time.Millisecond)

	connA2 := dial(t, ts)
	require.NoError(t, connA2.WriteJSON(map[string]any{"type": "connect", "saved_game": saved}))

	// Then: the session is restored with a fresh state broadcast
	restored := readUntil(t, connA2, "state")
	require.NotNil(t, restored.State)
	assert.Equal(t, "X", restored.State.Turn)
}

func TestServer_ResumeWithGarbageToken(t *testing.T) {
	ts := newTestServer(t)

	conn := dial(t, ts)
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "connect", "saved_game": "garbage"}))

	message := readUntil(t, conn, "error")
	assert.Equal(t, "Invalid saved game", message.Error)
}

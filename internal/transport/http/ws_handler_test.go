package http_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
	transport "quiz-room-service/internal/transport/http"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	sets := memory.NewQuestionSetRepository(memory.NewStaticQuestionSetLoader(map[string]domain.QuestionSet{
		"set-1": {ID: "set-1", Questions: []domain.Question{
			{ID: "q1", Prompt: "pick one", Options: []string{"a", "b"}, CorrectAnswer: "a"},
		}},
	}), 5*time.Minute)
	service := app.NewGameServiceWithClock(memory.NewRoomRegistry(), sets, clockwork.NewFakeClock())
	handler := transport.NewWSHandler(service)

	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(envelope{Type: msgType, Payload: raw}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil skips unrelated broadcasts until a message of the wanted type
// arrives or the deadline hits.
func readUntil(t *testing.T, conn *websocket.Conn, want string) envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		if msg.Type == want {
			return msg
		}
	}
}

func TestCreateAndJoinOverWebsocket(t *testing.T) {
	server := newTestServer(t)

	host := dial(t, server)
	send(t, host, "createRoom", map[string]string{"roomId": "room-1", "username": "host"})
	created := readUntil(t, host, "roomCreated")
	var roomID string
	if err := json.Unmarshal(created.Payload, &roomID); err != nil || roomID != "room-1" {
		t.Fatalf("unexpected roomCreated payload: %s", created.Payload)
	}

	player := dial(t, server)
	send(t, player, "joinRoom", map[string]string{"roomId": "room-1", "username": "alice"})
	joined := readUntil(t, player, "joined")
	var roster []domain.Player
	if err := json.Unmarshal(joined.Payload, &roster); err != nil {
		t.Fatalf("unmarshal roster: %v", err)
	}
	if len(roster) != 1 || roster[0].Username != "alice" {
		t.Fatalf("unexpected roster: %+v", roster)
	}

	// Host sees the roster broadcast for the join.
	readUntil(t, host, "roster")
}

func TestJoinUnknownRoomReturnsJoinError(t *testing.T) {
	server := newTestServer(t)

	conn := dial(t, server)
	send(t, conn, "joinRoom", map[string]string{"roomId": "nope", "username": "alice"})
	msg := readUntil(t, conn, "joinError")
	var p struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Message == "" {
		t.Fatalf("unexpected joinError payload: %s", msg.Payload)
	}
}

func TestAnswerFlowBroadcasts(t *testing.T) {
	server := newTestServer(t)

	host := dial(t, server)
	send(t, host, "createRoom", map[string]string{"roomId": "room-1", "username": "host"})
	readUntil(t, host, "roomCreated")

	player := dial(t, server)
	send(t, player, "joinRoom", map[string]string{"roomId": "room-1", "username": "alice"})
	readUntil(t, player, "joined")

	send(t, host, "startGame", map[string]any{
		"roomId": "room-1",
		"questions": []domain.Question{
			{ID: "q1", Prompt: "pick one", Options: []string{"a", "b"}, CorrectAnswer: "a"},
		},
		"timeLimit": 30,
	})

	send(t, player, "submitAnswer", map[string]any{
		"roomId":   "room-1",
		"username": "alice",
		"answer":   "a",
		"factor":   30,
	})

	// Everyone answered, so the submission broadcast is followed by results.
	readUntil(t, host, "answerSubmitted")
	readUntil(t, host, "showResults")
	readUntil(t, player, "showResults")

	send(t, player, "requestLeaderboard", map[string]string{"roomId": "room-1"})
	msg := readUntil(t, player, "leaderboard")
	var leaderboard domain.Leaderboard
	if err := json.Unmarshal(msg.Payload, &leaderboard); err != nil {
		t.Fatalf("unmarshal leaderboard: %v", err)
	}
	if len(leaderboard.Entries) != 1 || leaderboard.Entries[0].Score != 100 {
		t.Fatalf("unexpected leaderboard: %+v", leaderboard.Entries)
	}
}

func TestStartGameViaSetID(t *testing.T) {
	server := newTestServer(t)

	host := dial(t, server)
	send(t, host, "createRoom", map[string]string{"roomId": "room-1", "username": "host"})
	readUntil(t, host, "roomCreated")

	send(t, host, "startGame", map[string]any{"roomId": "room-1", "setId": "set-1", "timeLimit": 30})
	send(t, host, "requestQuestion", map[string]string{"roomId": "room-1", "username": "host"})
	msg := readUntil(t, host, "question")
	var view domain.QuestionView
	if err := json.Unmarshal(msg.Payload, &view); err != nil {
		t.Fatalf("unmarshal question: %v", err)
	}
	if view.Question.ID != "q1" {
		t.Fatalf("unexpected question: %+v", view)
	}
}

func TestMalformedPayloadReturnsError(t *testing.T) {
	server := newTestServer(t)

	conn := dial(t, server)
	send(t, conn, "createRoom", map[string]string{"username": "host"}) // missing roomId
	msg := readUntil(t, conn, "error")
	var p struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Message != "invalid payload" {
		t.Fatalf("unexpected error payload: %s", msg.Payload)
	}

	send(t, conn, "bogusType", map[string]string{})
	readUntil(t, conn, "error")
}

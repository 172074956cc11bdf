package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes exposes the handler's endpoints on a fresh mux.
func (h *WSHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", h.ServeWS)
	return mux
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type playerPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type startGamePayload struct {
	RoomID    string            `json:"roomId"`
	SetID     string            `json:"setId"`
	Questions []domain.Question `json:"questions"`
	TimeLimit int               `json:"timeLimit"`
	Options   domain.PowerUps   `json:"options"`
}

type submitAnswerPayload struct {
	RoomID      string `json:"roomId"`
	Username    string `json:"username"`
	Answer      string `json:"answer"`
	OptionIndex int    `json:"optionIndex"`
	Factor      int    `json:"factor"`
	DoubleScore bool   `json:"doubleScore"`
}

type powerUpsPayload struct {
	RoomID   string          `json:"roomId"`
	Username string          `json:"username"`
	PowerUps domain.PowerUps `json:"powerUps"`
}

type resultsURLPayload struct {
	RoomID string `json:"roomId"`
	URL    string `json:"url"`
}

// clientSession tracks the connection's room subscription.
type clientSession struct {
	connID   string
	cancel   func()
	pumpDone chan struct{}
}

// ServeWS upgrades HTTP requests to websockets and routes tagged JSON events
// into the game use cases. Room broadcasts are pumped back over the same
// connection. A dropped connection only unsubscribes; players stay in the
// roster until an explicit leave, so they can rebind after a reconnect.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 32)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	sess := &clientSession{connID: uuid.NewString()}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), sess, send, closeSignals, inbound)
	}

	close(closeSignals)
	if sess.cancel != nil {
		sess.cancel()
		<-sess.pumpDone
	}
	close(send)
	<-writerDone
}

// subscribe attaches the connection to a room's broadcast stream, replacing
// any previous subscription.
func (h *WSHandler) subscribe(sess *clientSession, roomID string, send chan outboundMessage[any], closeSignals chan struct{}) error {
	updates, cancel, err := h.service.Subscribe(roomID)
	if err != nil {
		return err
	}
	if sess.cancel != nil {
		sess.cancel()
		<-sess.pumpDone
	}
	sess.cancel = cancel
	done := make(chan struct{})
	sess.pumpDone = done

	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: event.Type, Payload: event.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()
	return nil
}

func (h *WSHandler) unsubscribe(sess *clientSession) {
	if sess.cancel != nil {
		sess.cancel()
		<-sess.pumpDone
		sess.cancel = nil
		sess.pumpDone = nil
	}
}

func (h *WSHandler) dispatch(ctx context.Context, sess *clientSession, send chan outboundMessage[any], closeSignals chan struct{}, inbound inboundMessage) {
	fail := func(err error) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
	malformed := errors.New("invalid payload")

	switch inbound.Type {
	case "createRoom":
		var p playerPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" || p.Username == "" {
			fail(malformed)
			return
		}
		if err := h.service.CreateRoom(p.RoomID, p.Username, sess.connID); err != nil {
			fail(err)
			return
		}
		if err := h.subscribe(sess, p.RoomID, send, closeSignals); err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "roomCreated", Payload: p.RoomID}

	case "joinRoom":
		var p playerPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" || p.Username == "" {
			fail(malformed)
			return
		}
		roster, err := h.service.Join(p.RoomID, p.Username, sess.connID)
		if err != nil {
			send <- outboundMessage[any]{Type: "joinError", Payload: errorPayload{Message: err.Error()}}
			return
		}
		if err := h.subscribe(sess, p.RoomID, send, closeSignals); err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "joined", Payload: roster}

	case "rebindConnection":
		var p playerPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" || p.Username == "" {
			fail(malformed)
			return
		}
		if err := h.service.Rebind(p.RoomID, p.Username, sess.connID); err != nil {
			fail(err)
			return
		}
		if err := h.subscribe(sess, p.RoomID, send, closeSignals); err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "connectionUpdated", Payload: sess.connID}

	case "leaveRoom":
		var p playerPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" {
			fail(malformed)
			return
		}
		h.unsubscribe(sess)
		if err := h.service.Leave(p.RoomID, p.Username); err != nil {
			fail(err)
		}

	case "startCountdown":
		h.roomOp(send, inbound.Payload, h.service.StartCountdown)

	case "announceStart":
		h.roomOp(send, inbound.Payload, h.service.AnnounceStart)

	case "startGame":
		var p startGamePayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" {
			fail(malformed)
			return
		}
		err := h.service.StartGame(ctx, p.RoomID, app.StartGameInput{
			SetID:     p.SetID,
			Questions: p.Questions,
			TimeLimit: p.TimeLimit,
			Options:   p.Options,
		})
		if err != nil {
			fail(err)
		}

	case "startQuestionTimer":
		h.roomOp(send, inbound.Payload, h.service.StartQuestionTimer)

	case "requestQuestion":
		var p playerPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" {
			fail(malformed)
			return
		}
		view, err := h.service.CurrentQuestion(p.RoomID, p.Username)
		if err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "question", Payload: view}

	case "submitAnswer":
		var p submitAnswerPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" || p.Username == "" {
			fail(malformed)
			return
		}
		_, err := h.service.SubmitAnswer(p.RoomID, p.Username, domain.AnswerSubmission{
			Answer:      p.Answer,
			OptionIndex: p.OptionIndex,
			Factor:      p.Factor,
			DoubleScore: p.DoubleScore,
		})
		if err != nil {
			fail(err)
		}

	case "nextQuestion":
		h.roomOp(send, inbound.Payload, h.service.NextQuestion)

	case "requestLeaderboard":
		var p roomPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" {
			fail(malformed)
			return
		}
		leaderboard, err := h.service.Leaderboard(p.RoomID)
		if err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "leaderboard", Payload: leaderboard}

	case "showLeaderboard":
		h.roomOp(send, inbound.Payload, h.service.ShowLeaderboard)

	case "requestReport":
		var p roomPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" {
			fail(malformed)
			return
		}
		report, err := h.service.Report(p.RoomID)
		if err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "report", Payload: report}

	case "resultsUrlReady":
		var p resultsURLPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" {
			fail(malformed)
			return
		}
		if err := h.service.SetResultsURL(p.RoomID, p.URL); err != nil {
			fail(err)
		}

	case "requestTally":
		var p roomPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" {
			fail(malformed)
			return
		}
		tally, err := h.service.Tally(p.RoomID)
		if err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "tally", Payload: tally}

	case "requestProgress":
		var p roomPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" {
			fail(malformed)
			return
		}
		progress, err := h.service.Progress(p.RoomID)
		if err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "progress", Payload: progress}

	case "requestRoster":
		var p roomPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" {
			fail(malformed)
			return
		}
		roster, err := h.service.Roster(p.RoomID)
		if err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "roster", Payload: roster}

	case "requestPowerUps":
		var p playerPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" {
			fail(malformed)
			return
		}
		powerUps, err := h.service.PowerUps(p.RoomID, p.Username)
		if err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "powerUps", Payload: powerUps}

	case "updatePowerUps":
		var p powerUpsPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.RoomID == "" || p.Username == "" {
			fail(malformed)
			return
		}
		if err := h.service.UpdatePowerUps(p.RoomID, p.Username, p.PowerUps); err != nil {
			fail(err)
		}

	default:
		fail(errors.New("unsupported message type"))
	}
}

// roomOp handles the events whose payload is just a room id.
func (h *WSHandler) roomOp(send chan outboundMessage[any], raw json.RawMessage, op func(string) error) {
	var p roomPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid payload"}}
		return
	}
	if err := op(p.RoomID); err != nil {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
}

package app

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/game"
)

// RoomRegistry abstracts how live rooms are stored (in-memory, Redis-marked, etc).
type RoomRegistry interface {
	Put(roomID string, room *game.Room) error
	Get(roomID string) (*game.Room, bool)
	Delete(roomID string)
}

// QuestionSetRepository loads question content (from cache/backing store).
type QuestionSetRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// StartGameInput carries the host's start-game request. Questions may be sent
// inline or resolved from the repository via SetID.
type StartGameInput struct {
	SetID     string
	Questions []domain.Question
	TimeLimit int
	Options   domain.PowerUps
}

// GameService is the event-driven coordinator: it resolves the addressed room,
// mutates it, and lets the room broadcast the outcome to its subscribers.
type GameService struct {
	rooms RoomRegistry
	sets  QuestionSetRepository
	clock clockwork.Clock
}

func NewGameService(rooms RoomRegistry, sets QuestionSetRepository) *GameService {
	return NewGameServiceWithClock(rooms, sets, clockwork.NewRealClock())
}

// NewGameServiceWithClock is test-only for deterministic timers.
func NewGameServiceWithClock(rooms RoomRegistry, sets QuestionSetRepository, clock clockwork.Clock) *GameService {
	return &GameService{rooms: rooms, sets: sets, clock: clock}
}

// CreateRoom registers a new room with the caller as host.
func (s *GameService) CreateRoom(roomID, hostUsername, connID string) error {
	room := game.NewRoom(roomID, s.clock)
	room.SetHost(&domain.Player{Username: hostUsername, ConnID: connID})
	if err := s.rooms.Put(roomID, room); err != nil {
		return err
	}
	log.Info().Str("room", roomID).Str("host", hostUsername).Msg("room created")
	return nil
}

// Join adds a player to the roster and returns the updated player list.
func (s *GameService) Join(roomID, username, connID string) ([]domain.Player, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if _, err := room.AddPlayer(&domain.Player{Username: username, ConnID: connID}); err != nil {
		return nil, err
	}
	return room.Roster(), nil
}

// Rebind points an existing player at a new connection after a reconnect.
func (s *GameService) Rebind(roomID, username, connID string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	_, err := room.Rebind(username, connID)
	return err
}

// Leave removes a player. A departing host tears the whole room down;
// nothing else deletes a room.
func (s *GameService) Leave(roomID, username string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if host := room.Host(); host != nil && host.Username == username {
		room.PublishHostLeft()
		s.destroy(roomID, room)
		return nil
	}
	room.RemovePlayer(username)
	return nil
}

func (s *GameService) destroy(roomID string, room *game.Room) {
	room.Close()
	s.rooms.Delete(roomID)
	log.Info().Str("room", roomID).Msg("room destroyed")
}

// StartCountdown (re)starts the five-tick pre-game countdown.
func (s *GameService) StartCountdown(roomID string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.StartCountdown()
	return nil
}

// AnnounceStart flips waiting-room clients into the game view.
func (s *GameService) AnnounceStart(roomID string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.AnnounceStart()
	return nil
}

// StartGame assigns questions and the time limit to the room. Inline
// questions win; otherwise the set is loaded through the repository.
func (s *GameService) StartGame(ctx context.Context, roomID string, input StartGameInput) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	questions := input.Questions
	if len(questions) == 0 && input.SetID != "" {
		set, err := s.sets.GetQuestionSet(ctx, input.SetID)
		if err != nil {
			return err
		}
		questions = set.Questions
	}
	return room.StartGame(questions, input.TimeLimit, input.Options)
}

// StartQuestionTimer (re)starts the per-question countdown.
func (s *GameService) StartQuestionTimer(roomID string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.StartQuestionTimer()
}

// CurrentQuestion returns the active question scoped with the player's power-ups.
func (s *GameService) CurrentQuestion(roomID, username string) (domain.QuestionView, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.QuestionView{}, domain.ErrRoomNotFound
	}
	return room.CurrentQuestion(username)
}

// SubmitAnswer records and scores a submission for the current question.
func (s *GameService) SubmitAnswer(roomID, username string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrRoomNotFound
	}
	return room.SubmitAnswer(username, sub)
}

// NextQuestion advances the room to the next question or the finished state.
func (s *GameService) NextQuestion(roomID string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.NextQuestion()
}

// Leaderboard returns the current scoreboard snapshot.
func (s *GameService) Leaderboard(roomID string) (domain.Leaderboard, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.Leaderboard{}, domain.ErrRoomNotFound
	}
	return room.Leaderboard(), nil
}

// ShowLeaderboard schedules the delayed navigate-to-leaderboard broadcast.
func (s *GameService) ShowLeaderboard(roomID string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.ScheduleLeaderboard()
	return nil
}

// Report returns the tabulated end-of-game summary.
func (s *GameService) Report(roomID string) (domain.GameReport, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.GameReport{}, domain.ErrRoomNotFound
	}
	return room.Report()
}

// SetResultsURL propagates an externally generated results page URL to the room.
func (s *GameService) SetResultsURL(roomID, url string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.SetResultsURL(url)
	return nil
}

// Tally returns the per-option submission counts for the current question.
func (s *GameService) Tally(roomID string) ([]int, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room.Tally(), nil
}

// Progress reports the deck size and current question number.
func (s *GameService) Progress(roomID string) (domain.Progress, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.Progress{}, domain.ErrRoomNotFound
	}
	return room.Progress()
}

// Roster returns the current player list.
func (s *GameService) Roster(roomID string) ([]domain.Player, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room.Roster(), nil
}

// PowerUps returns a player's modifier set, defaulting for unknown usernames.
func (s *GameService) PowerUps(roomID, username string) (domain.PowerUps, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room.PowerUps(username), nil
}

// UpdatePowerUps replaces a player's modifier set.
func (s *GameService) UpdatePowerUps(roomID, username string, powerUps domain.PowerUps) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.UpdatePowerUps(username, powerUps)
}

// Subscribe returns a channel receiving the room's broadcasts.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(roomID string) (<-chan domain.Event, func(), error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.Subscribe()
	return ch, cancel, nil
}

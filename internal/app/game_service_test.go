package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
)

func newTestService() *app.GameService {
	registry := memory.NewRoomRegistry()
	sets := memory.NewQuestionSetRepository(memory.NewStaticQuestionSetLoader(map[string]domain.QuestionSet{
		"set-1": {
			ID: "set-1",
			Questions: []domain.Question{
				{ID: "q1", Prompt: "Select the right option", Options: []string{"Wrong", "Right"}, CorrectAnswer: "Right"},
			},
		},
	}), 5*time.Minute)
	return app.NewGameServiceWithClock(registry, sets, clockwork.NewFakeClock())
}

func TestCreateJoinAndScore(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	if err := service.CreateRoom("room-1", "host", "c0"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := service.CreateRoom("room-1", "other", "c9"); !errors.Is(err, domain.ErrRoomExists) {
		t.Fatalf("expected duplicate-room error, got %v", err)
	}

	roster, err := service.Join("room-1", "alice", "c1")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if len(roster) != 1 || roster[0].Username != "alice" {
		t.Fatalf("unexpected roster: %+v", roster)
	}

	if err := service.StartGame(ctx, "room-1", app.StartGameInput{SetID: "set-1", TimeLimit: 30}); err != nil {
		t.Fatalf("start game failed: %v", err)
	}
	if err := service.StartGame(ctx, "room-1", app.StartGameInput{SetID: "set-1"}); !errors.Is(err, domain.ErrGameAlreadyStarted) {
		t.Fatalf("expected already-started error, got %v", err)
	}

	result, err := service.SubmitAnswer("room-1", "alice", domain.AnswerSubmission{Answer: "Right", Factor: 30})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.Correct || result.Score != 100 {
		t.Fatalf("expected correct answer worth 100, got %+v", result)
	}

	leaderboard, err := service.Leaderboard("room-1")
	if err != nil {
		t.Fatalf("leaderboard failed: %v", err)
	}
	if len(leaderboard.Entries) != 1 || leaderboard.Entries[0].Score != 100 {
		t.Fatalf("unexpected leaderboard: %+v", leaderboard.Entries)
	}
}

func TestStartGameUnknownSet(t *testing.T) {
	service := newTestService()
	if err := service.CreateRoom("room-1", "host", "c0"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	err := service.StartGame(context.Background(), "room-1", app.StartGameInput{SetID: "missing"})
	if !errors.Is(err, domain.ErrQuestionSetNotFound) {
		t.Fatalf("expected question-set-not-found, got %v", err)
	}
}

func TestOperationsRequireRoom(t *testing.T) {
	service := newTestService()

	if _, err := service.Join("nope", "alice", "c1"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room-not-found on join, got %v", err)
	}
	if _, err := service.SubmitAnswer("nope", "alice", domain.AnswerSubmission{}); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room-not-found on submit, got %v", err)
	}
	if _, _, err := service.Subscribe("nope"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room-not-found on subscribe, got %v", err)
	}
}

func TestSubmitRequiresPlayer(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	if err := service.CreateRoom("room-1", "host", "c0"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := service.Join("room-1", "alice", "c1"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if err := service.StartGame(ctx, "room-1", app.StartGameInput{SetID: "set-1"}); err != nil {
		t.Fatalf("start game failed: %v", err)
	}

	if _, err := service.SubmitAnswer("room-1", "ghost", domain.AnswerSubmission{Answer: "Right"}); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player-not-found, got %v", err)
	}
}

func TestHostLeaveDestroysRoom(t *testing.T) {
	service := newTestService()
	if err := service.CreateRoom("room-1", "host", "c0"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := service.Join("room-1", "alice", "c1"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	events, cancel, err := service.Subscribe("room-1")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	if err := service.Leave("room-1", "host"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	sawHostLeft := false
	for event := range events { // channel closes on room teardown
		if event.Type == "hostLeft" {
			sawHostLeft = true
		}
	}
	if !sawHostLeft {
		t.Fatalf("expected hostLeft broadcast before teardown")
	}

	if _, err := service.Leaderboard("room-1"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room destroyed after host left, got %v", err)
	}
}

func TestPlayerLeaveKeepsRoom(t *testing.T) {
	service := newTestService()
	if err := service.CreateRoom("room-1", "host", "c0"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := service.Join("room-1", "alice", "c1"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	if err := service.Leave("room-1", "alice"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	roster, err := service.Roster("room-1")
	if err != nil {
		t.Fatalf("expected room to survive a player leaving, got %v", err)
	}
	if len(roster) != 0 {
		t.Fatalf("expected empty roster, got %+v", roster)
	}
}

func TestRebindUpdatesConnection(t *testing.T) {
	service := newTestService()
	if err := service.CreateRoom("room-1", "host", "c0"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := service.Join("room-1", "alice", "c1"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	if err := service.Rebind("room-1", "alice", "c2"); err != nil {
		t.Fatalf("rebind failed: %v", err)
	}
	if err := service.Rebind("room-1", "ghost", "c3"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player-not-found, got %v", err)
	}
}

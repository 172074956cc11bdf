package memory_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
)

type countingLoader struct {
	inner memory.QuestionSetLoader
	calls int64
}

func (l *countingLoader) LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	atomic.AddInt64(&l.calls, 1)
	return l.inner.LoadQuestionSet(ctx, setID)
}

func TestQuestionSetRepositoryCachesHits(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{inner: memory.NewStaticQuestionSetLoader(map[string]domain.QuestionSet{
		"set-1": {ID: "set-1", Questions: []domain.Question{{ID: "q1", CorrectAnswer: "a"}}},
	})}
	repo := memory.NewQuestionSetRepository(loader, time.Minute)

	for i := 0; i < 3; i++ {
		set, err := repo.GetQuestionSet(ctx, "set-1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if set.ID != "set-1" {
			t.Fatalf("unexpected set: %+v", set)
		}
	}
	if got := atomic.LoadInt64(&loader.calls); got != 1 {
		t.Fatalf("expected a single loader call, got %d", got)
	}
}

func TestQuestionSetRepositoryMissesAreNotCached(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{inner: memory.NewStaticQuestionSetLoader(nil)}
	repo := memory.NewQuestionSetRepository(loader, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := repo.GetQuestionSet(ctx, "missing"); !errors.Is(err, domain.ErrQuestionSetNotFound) {
			t.Fatalf("expected not-found, got %v", err)
		}
	}
	if got := atomic.LoadInt64(&loader.calls); got != 2 {
		t.Fatalf("expected loader hit on every miss, got %d", got)
	}
}

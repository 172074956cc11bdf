package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-room-service/internal/domain"
)

// QuestionSetLoader fetches question content from a backing store.
type QuestionSetLoader interface {
	LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// QuestionSetRepository caches question sets with TTL to avoid repeated DB hits.
type QuestionSetRepository struct {
	loader QuestionSetLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	set       domain.QuestionSet
	expiresAt time.Time
}

func NewQuestionSetRepository(loader QuestionSetLoader, ttl time.Duration) *QuestionSetRepository {
	return &QuestionSetRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

func (r *QuestionSetRepository) GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[setID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.set, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[setID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.set, nil
		}
		r.mu.RUnlock()

		set, err := r.loader.LoadQuestionSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		r.mu.Lock()
		r.cache[setID] = cachedSet{
			set:       set,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (r *QuestionSetRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionSetLoader is a simple loader backed by an in-memory map
// (useful for tests/demos).
type StaticQuestionSetLoader struct {
	sets map[string]domain.QuestionSet
}

func NewStaticQuestionSetLoader(sets map[string]domain.QuestionSet) *StaticQuestionSetLoader {
	return &StaticQuestionSetLoader{sets: sets}
}

func (l *StaticQuestionSetLoader) LoadQuestionSet(_ context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := l.sets[setID]; ok {
		return set, nil
	}
	return domain.QuestionSet{}, domain.ErrQuestionSetNotFound
}

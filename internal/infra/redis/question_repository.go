package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-room-service/internal/domain"
)

// QuestionSetLoader fetches question content from a backing store.
type QuestionSetLoader interface {
	LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// QuestionSetRepository caches whole question sets in Redis as JSON and falls
// back to a loader on cache miss. The full payload is cached (not just the
// answer key) because rooms re-broadcast prompts and options on every advance.
// Sets are stored as: SET quiz:set:{setID} {json} EX ttl
type QuestionSetRepository struct {
	client *redis.Client
	loader QuestionSetLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionSetRepository(client *redis.Client, loader QuestionSetLoader, ttl time.Duration) *QuestionSetRepository {
	return &QuestionSetRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionSetRepository) GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	key := r.setKey(setID)

	if set, ok := r.fromCache(ctx, key); ok {
		return set, nil
	}

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if set, ok := r.fromCache(ctx, key); ok {
			return set, nil
		}

		set, err := r.loader.LoadQuestionSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		if data, err := json.Marshal(set); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (r *QuestionSetRepository) fromCache(ctx context.Context, key string) (domain.QuestionSet, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.QuestionSet{}, false
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return domain.QuestionSet{}, false
	}
	return set, true
}

func (r *QuestionSetRepository) setKey(setID string) string {
	return "quiz:set:" + setID
}

func (r *QuestionSetRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

package repo

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/patrickmn/go-cache"

	"github.com/careerlink/answer-stream/internal/stream/model"
)

// MemoryTranscriptRepository keeps transcripts in process with the same TTL
// semantics as the Redis repository: every append extends the expiry.
type MemoryTranscriptRepository struct {
	mu    sync.Mutex
	store *cache.Cache
	ttl   time.Duration
}

func NewMemoryTranscriptRepository(ttl time.Duration) *MemoryTranscriptRepository {
	expiry := ttl
	if expiry <= 0 {
		expiry = cache.NoExpiration
	}
	cleanup := time.Minute
	if ttl > 0 && ttl < cleanup {
		cleanup = ttl
	}
	return &MemoryTranscriptRepository{store: cache.New(expiry, cleanup), ttl: expiry}
}

func (r *MemoryTranscriptRepository) AddMessage(_ context.Context, sessionID string, message *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var msgs []*schema.Message
	if v, ok := r.store.Get(sessionID); ok {
		msgs = v.([]*schema.Message)
	}
	// copy on write so loaded transcripts stay stable
	next := make([]*schema.Message, len(msgs), len(msgs)+1)
	copy(next, msgs)
	next = append(next, message)
	r.store.Set(sessionID, next, r.ttl)
	return nil
}

func (r *MemoryTranscriptRepository) LoadTranscript(_ context.Context, sessionID string) (*model.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := []*schema.Message{}
	if v, ok := r.store.Get(sessionID); ok {
		msgs = v.([]*schema.Message)
	}
	return &model.Transcript{SessionID: sessionID, Messages: msgs}, nil
}

func (r *MemoryTranscriptRepository) ClearTranscript(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.Delete(sessionID)
	return nil
}

var _ model.TranscriptRepository = (*MemoryTranscriptRepository)(nil)

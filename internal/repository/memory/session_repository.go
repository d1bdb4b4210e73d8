package memory

import (
	"sort"
	"time"

	"moviesearch-client/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps recent session summaries in memory. Records are
// copied in and out so callers never share them with the recorder.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := cache.New(ttl, ttl/6)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(record *store.SessionRecord) {
	r.cache.Set(record.ID, record.Clone(), cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*store.SessionRecord, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.SessionRecord).Clone(), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

// Recent returns up to limit records, most recently updated first.
func (r *SessionRepository) Recent(limit int) []*store.SessionRecord {
	items := r.cache.Items()
	out := make([]*store.SessionRecord, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(*store.SessionRecord).Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

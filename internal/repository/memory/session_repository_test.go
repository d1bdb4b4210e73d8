package memory

import (
	"testing"
	"time"

	"moviesearch-client/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id string, updated time.Time) *store.SessionRecord {
	r := store.NewSessionRecord(id)
	r.UpdatedAt = updated
	return r
}

func TestSaveGetDelete(t *testing.T) {
	repo := NewSessionRepository(time.Minute)
	r := record("a", time.Now())
	repo.Save(r)

	got, ok := repo.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	got.Query = "mutated"
	again, _ := repo.Get("a")
	assert.Empty(t, again.Query, "stored record is not shared")

	repo.Delete("a")
	_, ok = repo.Get("a")
	assert.False(t, ok)
}

func TestRecentOrdersByUpdate(t *testing.T) {
	repo := NewSessionRepository(time.Minute)
	base := time.Now()
	repo.Save(record("old", base))
	repo.Save(record("new", base.Add(2*time.Second)))
	repo.Save(record("mid", base.Add(time.Second)))

	recent := repo.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "new", recent[0].ID)
	assert.Equal(t, "mid", recent[1].ID)
	assert.Len(t, repo.Recent(0), 3)
}

func TestRecordsExpire(t *testing.T) {
	repo := NewSessionRepository(20 * time.Millisecond)
	repo.Save(record("a", time.Now()))
	time.Sleep(40 * time.Millisecond)

	_, ok := repo.Get("a")
	assert.False(t, ok)
}

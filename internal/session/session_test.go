package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-assistant/internal/models"
)

func newStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, ttl), mr
}

func turn(q, a string) []models.Message {
	return []models.Message{{Role: models.RoleUser, Content: q}, {Role: models.RoleAssistant, Content: a}}
}

func TestHistoryEmptyForUnknownSession(t *testing.T) {
	s, _ := newStore(t, time.Hour)
	history, err := s.History(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestAppendKeepsChronologicalOrder(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t, time.Hour)

	require.NoError(t, s.Append(ctx, "s1", turn("q1", "a1")...))
	require.NoError(t, s.Append(ctx, "s1", turn("q2", "a2")...))

	history, err := s.History(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, append(turn("q1", "a1"), turn("q2", "a2")...), history)

	raw, err := mr.Get("chat:s1")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"role":"user","content":"q1"},{"role":"assistant","content":"a1"},{"role":"user","content":"q2"},{"role":"assistant","content":"a2"}]`, raw)
}

func TestAppendRefreshesSlidingExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t, time.Hour)

	require.NoError(t, s.Append(ctx, "s1", turn("q1", "a1")...))
	mr.FastForward(40 * time.Minute)
	require.NoError(t, s.Append(ctx, "s1", turn("q2", "a2")...))
	assert.Equal(t, time.Hour, mr.TTL("chat:s1"))

	mr.FastForward(59 * time.Minute)
	history, err := s.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, history, 4)

	mr.FastForward(2 * time.Minute)
	history, err = s.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t, time.Hour)

	require.NoError(t, s.Append(ctx, "s1", turn("q", "a")...))
	require.NoError(t, s.Clear(ctx, "s1"))
	assert.False(t, mr.Exists("chat:s1"))
	require.NoError(t, s.Clear(ctx, "s1"))
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, time.Hour)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Append(ctx, "shared", turn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))...))
		}(i)
	}
	wg.Wait()

	history, err := s.History(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, history, 2*writers)
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, models.RoleUser, history[i].Role)
		assert.Equal(t, models.RoleAssistant, history[i+1].Role)
		assert.Equal(t, history[i].Content[1:], history[i+1].Content[1:])
	}
}

func TestCorruptHistory(t *testing.T) {
	s, mr := newStore(t, time.Hour)
	require.NoError(t, mr.Set("chat:bad", "{not json"))
	_, err := s.History(context.Background(), "bad")
	assert.Error(t, err)
}

func TestDefaultTTL(t *testing.T) {
	s, _ := newStore(t, 0)
	assert.Equal(t, time.Hour, s.TTL())
	assert.NoError(t, s.Ping(context.Background()))
}

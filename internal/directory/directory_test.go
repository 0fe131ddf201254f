package directory

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/magicparents/carebook/internal/db/dbtest"
)

type countingDirectory struct {
	Directory
	calls int
}

func (c *countingDirectory) GetByID(ctx context.Context, id string) (*Party, error) {
	c.calls++
	return c.Directory.GetByID(ctx, id)
}

var pat = Party{ID: "aaaaaaaa-0000-0000-0000-000000000001", Email: "pat@example.com", Role: RoleProvider, HourPrice: 25, Location: "Taipei"}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := NewStatic(pat)

	p, err := s.GetByID(ctx, pat.ID)
	require.NoError(t, err)
	assert.Equal(t, "pat@example.com", p.Name())

	_, err = s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	s.Put(Party{ID: pat.ID, Email: pat.Email, DisplayName: "Pat", Role: RoleProvider})
	p, err = s.GetByID(ctx, pat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pat", p.Name())
}

func TestCachedDirectoryDegradesWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	next := &countingDirectory{Directory: NewStatic(pat)}
	dir := NewCachedDirectory(next, rdb, time.Minute, zap.NewNop())

	p, err := dir.GetByID(context.Background(), pat.ID)
	require.NoError(t, err)
	assert.Equal(t, pat.Email, p.Email)
	assert.Equal(t, 1, next.calls)

	_, err = dir.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedDirectoryServesRepeatReadsFromRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	party := pat
	party.ID = uuid.NewString()
	t.Cleanup(func() { rdb.Del(context.Background(), cacheKeyPrefix+party.ID) })

	next := &countingDirectory{Directory: NewStatic(party)}
	dir := NewCachedDirectory(next, rdb, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		p, err := dir.GetByID(ctx, party.ID)
		require.NoError(t, err)
		assert.Equal(t, party, *p)
	}
	assert.Equal(t, 1, next.calls)
}

func TestPgxDirectory(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	dir := NewPgxDirectory(pool)

	id := dbtest.CreateUser(t, pool, "provider", 42.5, "Kaohsiung")
	p, err := dir.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RoleProvider, p.Role)
	assert.Equal(t, 42.5, p.HourPrice)
	assert.Equal(t, "Kaohsiung", p.Location)

	_, err = pool.Exec(ctx, "UPDATE public.users SET is_active = false WHERE id = $1", id)
	require.NoError(t, err)
	_, err = dir.GetByID(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

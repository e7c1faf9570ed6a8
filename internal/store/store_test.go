package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// contractSuite runs the same behavioural checks against any Store.
type contractSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
	store    Store
	ctx      context.Context
}

func (s *contractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
}

func (s *contractSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "missing_key")
	s.Require().ErrorIs(err, ErrNotFound)
}

func (s *contractSuite) TestSetGetRemove() {
	doc := []byte(`{"balance":"549.55"}`)
	s.Require().NoError(s.store.Set(s.ctx, "virtual_wallet_u1", doc))

	got, err := s.store.Get(s.ctx, "virtual_wallet_u1")
	s.Require().NoError(err)
	s.Equal(doc, got)

	s.Require().NoError(s.store.Set(s.ctx, "virtual_wallet_u1", []byte(`{"balance":"1"}`)))
	got, err = s.store.Get(s.ctx, "virtual_wallet_u1")
	s.Require().NoError(err)
	s.Equal(`{"balance":"1"}`, string(got))

	s.Require().NoError(s.store.Remove(s.ctx, "virtual_wallet_u1"))
	_, err = s.store.Get(s.ctx, "virtual_wallet_u1")
	s.ErrorIs(err, ErrNotFound)

	s.NoError(s.store.Remove(s.ctx, "virtual_wallet_u1"), "removing a missing key")
}

func (s *contractSuite) TestCommitAppliesAllWrites() {
	s.Require().NoError(s.store.Set(s.ctx, "stale", []byte("x")))

	b := NewBatch()
	b.Set("a", []byte("1"))
	b.Set("b", []byte("2"))
	b.Set("a", []byte("3"))
	b.Remove("stale")
	s.Require().NoError(s.store.Commit(s.ctx, b))

	a, err := s.store.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal("3", string(a))

	bv, err := s.store.Get(s.ctx, "b")
	s.Require().NoError(err)
	s.Equal("2", string(bv))

	_, err = s.store.Get(s.ctx, "stale")
	s.ErrorIs(err, ErrNotFound)
}

func (s *contractSuite) TestValuesAreCopied() {
	v := []byte("abc")
	s.Require().NoError(s.store.Set(s.ctx, "k", v))
	v[0] = 'z'

	got, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal("abc", string(got))
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &contractSuite{newStore: func(*testing.T) Store {
		return NewMemoryStore()
	}})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &contractSuite{newStore: func(t *testing.T) Store {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}})
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "virtual_wallet_u1", []byte(`{"id":"wallet_u1"}`)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "virtual_wallet_u1")
	require.NoError(t, err)
	require.Equal(t, `{"id":"wallet_u1"}`, string(got))
}

func TestNewSQLiteStore_NilDB(t *testing.T) {
	_, err := NewSQLiteStore(nil)
	require.ErrorIs(t, err, ErrNilDatabase)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	suite.Run(t, &contractSuite{newStore: func(t *testing.T) Store {
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(pool.Close)

		s := NewPostgresStore(pool)
		require.NoError(t, s.EnsureSchema(ctx))
		_, err = pool.Exec(ctx, `TRUNCATE ledger_kv`)
		require.NoError(t, err)
		return s
	}})
}

func TestCachedStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_URL")
	if addr == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	suite.Run(t, &contractSuite{newStore: func(t *testing.T) Store {
		opts, err := redis.ParseURL(addr)
		require.NoError(t, err)
		rdb := redis.NewClient(opts)
		t.Cleanup(func() { rdb.Close() })
		require.NoError(t, rdb.FlushDB(context.Background()).Err())
		return NewCachedStore(NewMemoryStore(), rdb, time.Minute)
	}})
}

func TestCachedStore_InvalidatesOnCommit(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_URL")
	if addr == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	opts, err := redis.ParseURL(addr)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	require.NoError(t, rdb.FlushDB(ctx).Err())

	primary := NewMemoryStore()
	s := NewCachedStore(primary, rdb, time.Minute)

	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v1", string(got))

	b := NewBatch()
	b.Set("k", []byte("v2"))
	require.NoError(t, s.Commit(ctx, b))

	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))
}

func TestBatch(t *testing.T) {
	b := NewBatch()
	v := []byte("x")
	b.Set("a", v)
	v[0] = 'y'
	b.Remove("b")

	require.Equal(t, 2, b.Len())
	require.Equal(t, []string{"a", "b"}, b.Keys())
	require.Equal(t, "x", string(b.Writes()[0].Value))
	require.Nil(t, b.Writes()[1].Value)
}

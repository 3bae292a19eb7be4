package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exercise runs the behaviour every backend must share.
func exercise(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "emart-missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "emart-cart", []byte(`{"a":1}`)))
	b, ok, err := s.Get(ctx, "emart-cart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(b))

	require.NoError(t, s.Set(ctx, "emart-cart", []byte(`{"a":2}`)))
	b, _, err = s.Get(ctx, "emart-cart")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(b))

	require.NoError(t, s.Delete(ctx, "emart-cart"))
	_, ok, err = s.Get(ctx, "emart-cart")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, "emart-cart"), "deleting a missing key")
	require.NoError(t, s.Ping(ctx))
}

func TestMemStorage(t *testing.T) {
	exercise(t, NewMemStorage(0))
}

func TestMemStorage_Quota(t *testing.T) {
	ctx := context.Background()
	s := NewMemStorage(10)

	require.NoError(t, s.Set(ctx, "k", []byte("12345678")))

	err := s.Set(ctx, "other", []byte("123"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.ErrorIs(t, err, ErrPersistence)

	// Replacing a value only counts the difference.
	require.NoError(t, s.Set(ctx, "k", []byte("1234567890")))

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Set(ctx, "other", []byte("123")))
}

func TestMemStorage_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemStorage(0)

	v := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", v))
	v[0] = 'z'

	got, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir)
	require.NoError(t, err)
	exercise(t, s)

	require.NoError(t, s.Set(context.Background(), "emart-wishlist", []byte("[]")))
	_, err = os.Stat(filepath.Join(dir, "emart-wishlist.json"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStorage_RejectsPathKeys(t *testing.T) {
	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	err = s.Set(context.Background(), "../escape", []byte("x"))
	assert.ErrorIs(t, err, ErrPersistence)

	_, _, err = s.Get(context.Background(), "a/b")
	assert.Error(t, err)
}

func TestFileStorage_ReadOnlyDirFailsWrites(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	dir := t.TempDir()
	s, err := NewFileStorage(dir)
	require.NoError(t, err)
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	err = s.Set(context.Background(), "emart-cart", []byte("{}"))
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestRedisStorage(t *testing.T) {
	url := os.Getenv("EMART_TEST_REDIS_URL")
	if url == "" {
		t.Skip("EMART_TEST_REDIS_URL not set")
	}

	s, err := NewRedisStorage(context.Background(), url, "emart-test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exercise(t, s)
}

func TestPostgresStorage(t *testing.T) {
	url := os.Getenv("EMART_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("EMART_TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	exercise(t, NewPostgresStorage(db))
}

func TestInstrument_CountsOperations(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	s := Instrument(NewMemStorage(4), reg).(*instrumented)

	_, _, _ = s.Get(ctx, "k")
	_ = s.Set(ctx, "k", []byte("ok"))
	_ = s.Set(ctx, "k", []byte("too long"))
	_, _, _ = s.Get(ctx, "k")

	assert.Equal(t, 1.0, testutil.ToFloat64(s.ops.WithLabelValues("get", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.ops.WithLabelValues("get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.ops.WithLabelValues("set", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.ops.WithLabelValues("set", "error")))
}

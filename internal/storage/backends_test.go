package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBackend runs the contract every Backend must satisfy
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := b.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set get overwrite", func(t *testing.T) {
		require.NoError(t, b.Set(ctx, KeyVoiceURI, []byte(`"a"`)))
		require.NoError(t, b.Set(ctx, KeyVoiceURI, []byte(`"b"`)))
		got, err := b.Get(ctx, KeyVoiceURI)
		require.NoError(t, err)
		assert.Equal(t, `"b"`, string(got))
	})

	t.Run("delete is unconditional", func(t *testing.T) {
		require.NoError(t, b.Delete(ctx, KeyVoiceURI))
		require.NoError(t, b.Delete(ctx, KeyVoiceURI))
		_, err := b.Get(ctx, KeyVoiceURI)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend("http://localhost:8000"))
}

func TestSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	b, err := NewSQLiteBackend(path, "http://localhost:8000")
	require.NoError(t, err)
	exerciseBackend(t, b)

	t.Run("survives reopen", func(t *testing.T) {
		require.NoError(t, b.Set(context.Background(), KeyDocuments, []byte(`[]`)))
		require.NoError(t, b.Close())

		reopened, err := NewSQLiteBackend(path, "http://localhost:8000")
		require.NoError(t, err)
		defer reopened.Close()

		got, err := reopened.Get(context.Background(), KeyDocuments)
		require.NoError(t, err)
		assert.Equal(t, `[]`, string(got))
	})

	t.Run("origins are isolated", func(t *testing.T) {
		other, err := NewSQLiteBackend(path, "http://other:8000")
		require.NoError(t, err)
		defer other.Close()

		_, err = other.Get(context.Background(), KeyDocuments)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := newRedisBackend(client, "http://localhost:8000")
	defer b.Close()

	exerciseBackend(t, b)

	require.NoError(t, b.Set(context.Background(), KeyDocuments, []byte(`[]`)))
	assert.True(t, mr.Exists("notebook:http://localhost:8000:"+KeyDocuments))
}

func TestNewRedisBackendUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisBackend(context.Background(), addr, 0, "o")
	assert.Error(t, err)
}

func TestPostgresBackend(t *testing.T) {
	connString := os.Getenv("NOTEBOOK_TEST_POSTGRES_URL")
	if connString == "" {
		t.Skip("NOTEBOOK_TEST_POSTGRES_URL not set")
	}

	b, err := NewPostgresBackend(context.Background(), connString, "test-origin")
	require.NoError(t, err)
	defer b.Close()

	exerciseBackend(t, b)
}

package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type record struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
}

type failingBackend struct {
	*MemoryBackend
	setErr error
	getErr error
}

func (b *failingBackend) Set(ctx context.Context, key string, value []byte) error {
	if b.setErr != nil {
		return b.setErr
	}
	return b.MemoryBackend.Set(ctx, key, value)
}

func (b *failingBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	return b.MemoryBackend.Get(ctx, key)
}

func TestAdapterRoundTrip(t *testing.T) {
	a := NewAdapter(NewMemoryBackend("http://localhost:8000"), zap.NewNop())

	docs := []record{{"id-1", "a.pdf"}, {"id-2", "b.txt"}}
	a.Save(KeyDocuments, docs)

	loaded, ok := Load[[]record](a, KeyDocuments)
	require.True(t, ok)
	assert.Equal(t, docs, loaded)
}

func TestAdapterLoadMissing(t *testing.T) {
	a := NewAdapter(NewMemoryBackend("o"), zap.NewNop())

	loaded, ok := Load[[]record](a, KeyDocuments)
	assert.False(t, ok)
	assert.Nil(t, loaded)
}

func TestAdapterLoadCorruptRemovesKey(t *testing.T) {
	backend := NewMemoryBackend("o")
	core, logs := observer.New(zap.WarnLevel)
	a := NewAdapter(backend, zap.New(core))

	require.NoError(t, backend.Set(context.Background(), KeyDocuments, []byte(`[{"document_id":`)))

	_, ok := Load[[]record](a, KeyDocuments)
	assert.False(t, ok)

	_, err := backend.Get(context.Background(), KeyDocuments)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, logs.FilterMessage("persistence failure").Len())
}

func TestAdapterLoadWrongShapeRemovesKey(t *testing.T) {
	backend := NewMemoryBackend("o")
	a := NewAdapter(backend, zap.NewNop())

	require.NoError(t, backend.Set(context.Background(), KeyDocuments, []byte(`{"not":"a list"}`)))

	_, ok := Load[[]record](a, KeyDocuments)
	assert.False(t, ok)
	_, err := backend.Get(context.Background(), KeyDocuments)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdapterSaveFailureKeepsPriorValue(t *testing.T) {
	backend := &failingBackend{MemoryBackend: NewMemoryBackend("o")}
	core, logs := observer.New(zap.WarnLevel)
	a := NewAdapter(backend, zap.New(core))

	a.Save(KeyVoiceURI, "voice-1")

	// Unserializable value
	a.Save(KeyVoiceURI, make(chan int))
	// Backend rejects the write (quota)
	backend.setErr = errors.New("quota exceeded")
	a.Save(KeyVoiceURI, "voice-2")

	loaded, ok := Load[string](a, KeyVoiceURI)
	require.True(t, ok)
	assert.Equal(t, "voice-1", loaded)
	assert.Equal(t, 2, logs.FilterMessage("persistence failure").Len())
}

func TestAdapterLoadBackendError(t *testing.T) {
	backend := &failingBackend{MemoryBackend: NewMemoryBackend("o"), getErr: errors.New("disk I/O error")}
	a := NewAdapter(backend, zap.NewNop())

	_, ok := Load[string](a, KeyVoiceURI)
	assert.False(t, ok)
}

func TestAdapterRemove(t *testing.T) {
	a := NewAdapter(NewMemoryBackend("o"), zap.NewNop())
	a.Save(KeySelectedDocument, record{"id-1", "a.pdf"})
	a.Remove(KeySelectedDocument)
	a.Remove(KeySelectedDocument)

	_, ok := Load[record](a, KeySelectedDocument)
	assert.False(t, ok)
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(&PersistenceError{Op: "save", Key: KeyDocuments, Err: cause})

	assert.ErrorIs(t, err, cause)
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "save", pe.Op)
}

func TestOriginOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8000/api/v1", "http://localhost:8000"},
		{"HTTPS://Example.com/api/", "https://example.com"},
		{"not a url/", "not a url"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OriginOf(tt.in), tt.in)
	}
}

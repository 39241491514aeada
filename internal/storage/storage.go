package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Keys under which the client persists its state
const (
	KeyDocuments        = "rag_documents"
	KeySelectedDocument = "rag_selected_doc"
	KeyVoiceURI         = "selected_voice_uri"
)

// ErrNotFound is returned by a Backend when a key has no value
var ErrNotFound = errors.New("key not found")

// Backend is a durable key/value store scoped to one origin
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// PersistenceError describes a failed save, load or remove. The Adapter
// logs it and never returns it to callers.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Adapter reads and writes JSON values through a Backend. Failures are
// logged and absorbed: a failed Save leaves the previous value in place and
// a corrupt value is removed and reported as missing.
type Adapter struct {
	backend Backend
	log     *zap.Logger
	timeout time.Duration
}

// NewAdapter wraps backend
func NewAdapter(backend Backend, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		backend: backend,
		log:     log.Named("storage"),
		timeout: 5 * time.Second,
	}
}

// Save serializes value and writes it under key
func (a *Adapter) Save(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		a.report(&PersistenceError{Op: "save", Key: key, Err: err})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.backend.Set(ctx, key, data); err != nil {
		a.report(&PersistenceError{Op: "save", Key: key, Err: err})
	}
}

// Remove deletes key unconditionally
func (a *Adapter) Remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.backend.Delete(ctx, key); err != nil {
		a.report(&PersistenceError{Op: "remove", Key: key, Err: err})
	}
}

// Close releases the backend
func (a *Adapter) Close() error {
	return a.backend.Close()
}

func (a *Adapter) read(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	data, err := a.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		a.report(&PersistenceError{Op: "load", Key: key, Err: err})
		return nil, false
	}
	return data, true
}

func (a *Adapter) report(err *PersistenceError) {
	a.log.Warn("persistence failure",
		zap.String("op", err.Op),
		zap.String("key", err.Key),
		zap.Error(err.Err),
	)
}

// Load reads key and decodes it as T. It returns false when the key is
// missing, unreadable or corrupt; a corrupt key is removed.
func Load[T any](a *Adapter, key string) (T, bool) {
	var zero T

	data, ok := a.read(key)
	if !ok {
		return zero, false
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		a.report(&PersistenceError{Op: "load", Key: key, Err: err})
		a.Remove(key)
		return zero, false
	}
	return value, true
}

// OriginOf reduces a backend base URL to scheme://host[:port], the scope
// under which state is persisted
func OriginOf(baseURL string) string {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Host == "" {
		return strings.TrimRight(baseURL, "/")
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

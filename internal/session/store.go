package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/notebook-ai/cli/internal/documents"
	"github.com/notebook-ai/cli/internal/gateway"
	"github.com/notebook-ai/cli/internal/storage"
	"go.uber.org/zap"
)

// DefaultProcessingGrace is how long a freshly uploaded document is shown
// as processing when no other value is configured
const DefaultProcessingGrace = 5 * time.Second

var (
	// ErrUnknownDocument is returned when an operation names a document
	// that is not in the collection
	ErrUnknownDocument = errors.New("document not in collection")
	// ErrProcessing is returned when deleting a document the backend is
	// still ingesting
	ErrProcessing = errors.New("document is still processing")
	// ErrMissingDocumentID is returned when the backend accepts an upload
	// without assigning it an ID
	ErrMissingDocumentID = errors.New("backend returned no document_id")
)

// Gateway is the subset of the backend the store calls
type Gateway interface {
	UploadFile(ctx context.Context, path string, onProgress gateway.ProgressFunc) (*gateway.UploadResult, error)
	Delete(ctx context.Context, documentID string) error
	ClearAll(ctx context.Context) (*gateway.ClearAllResult, error)
}

// Ticket identifies one processing period. The caller waits Grace and then
// hands the ticket back to ProcessingDone.
type Ticket struct {
	DocumentID string
	Filename   string
	Grace      time.Duration
	generation uint64
}

// Store owns the document collection, the selection and the processing flag.
// Every mutation is persisted before it returns.
type Store struct {
	mu sync.RWMutex

	storage *storage.Adapter
	gateway Gateway
	log     *zap.Logger
	grace   time.Duration

	docs       []documents.Document
	selected   *documents.Document
	processing string
	generation uint64
}

// Option configures a Store
type Option func(*Store)

// WithProcessingGrace overrides DefaultProcessingGrace
func WithProcessingGrace(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.grace = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// NewStore creates an empty store. Call Initialize to load persisted state.
func NewStore(adapter *storage.Adapter, gw Gateway, opts ...Option) *Store {
	s := &Store{
		storage: adapter,
		gateway: gw,
		log:     zap.NewNop(),
		grace:   DefaultProcessingGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("session")
	return s
}

// Initialize loads the collection and selection. A selection that does not
// reference a loaded document is dropped.
func (s *Store) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, _ := storage.Load[[]documents.Document](s.storage, storage.KeyDocuments)
	s.docs = dedupe(docs)
	s.selected = nil
	s.processing = ""

	sel, ok := storage.Load[*documents.Document](s.storage, storage.KeySelectedDocument)
	if !ok || sel == nil {
		return
	}
	i := documents.IndexOf(s.docs, sel.ID)
	if i < 0 {
		s.log.Warn("dropping selection missing from collection", zap.String("document_id", sel.ID))
		s.storage.Remove(storage.KeySelectedDocument)
		return
	}
	doc := s.docs[i]
	s.selected = &doc

	s.log.Debug("session restored",
		zap.Int("documents", len(s.docs)),
		zap.String("selected", doc.ID),
	)
}

// Documents returns a copy of the collection in upload order
func (s *Store) Documents() []documents.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]documents.Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Selected returns the selected document, if any
func (s *Store) Selected() (documents.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected == nil {
		return documents.Document{}, false
	}
	return *s.selected, true
}

// Processing reports whether the selected document is still in its
// processing grace period
func (s *Store) Processing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.selected != nil && s.processing != "" && s.processing == s.selected.ID
}

// IsProcessing reports whether the given document is in its grace period
func (s *Store) IsProcessing(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return id != "" && s.processing == id
}

// AddDocument appends doc, selects it and marks it processing. A document
// whose ID is already present is selected without being appended again.
func (s *Store) AddDocument(doc documents.Document) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := documents.IndexOf(s.docs, doc.ID); i >= 0 {
		s.docs[i] = doc
	} else {
		s.docs = append(s.docs, doc)
	}
	selected := doc
	s.selected = &selected
	s.processing = doc.ID
	s.generation++

	s.persist()
	s.log.Info("document added", zap.String("document_id", doc.ID), zap.String("filename", doc.Filename))

	return Ticket{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Grace:      s.grace,
		generation: s.generation,
	}
}

// ProcessingDone ends the processing period identified by t. It reports
// false when a later upload has already superseded t.
func (s *Store) ProcessingDone(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.generation != s.generation || s.processing != t.DocumentID {
		return false
	}
	s.processing = ""
	return true
}

// SelectDocument makes doc the selection. Selecting the current selection
// again changes nothing.
func (s *Store) SelectDocument(doc documents.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := documents.IndexOf(s.docs, doc.ID)
	if i < 0 {
		return fmt.Errorf("failed to select %q: %w", doc.ID, ErrUnknownDocument)
	}
	if s.selected != nil && s.selected.ID == doc.ID {
		return nil
	}
	selected := s.docs[i]
	s.selected = &selected
	s.storage.Save(storage.KeySelectedDocument, s.selected)
	return nil
}

// SelectByID selects the document with the given ID
func (s *Store) SelectByID(id string) error {
	return s.SelectDocument(documents.Document{ID: id})
}

// RemoveDocument removes id from the collection. Removing the selected
// document moves the selection to the first remaining document. Unknown IDs
// are ignored; the return value reports whether anything was removed.
func (s *Store) RemoveDocument(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remove(id)
}

func (s *Store) remove(id string) bool {
	i := documents.IndexOf(s.docs, id)
	if i < 0 {
		return false
	}
	s.docs = append(s.docs[:i:i], s.docs[i+1:]...)
	if s.processing == id {
		s.processing = ""
	}

	if s.selected != nil && s.selected.ID == id {
		if len(s.docs) > 0 {
			first := s.docs[0]
			s.selected = &first
		} else {
			s.selected = nil
		}
	}

	s.persist()
	s.log.Info("document removed", zap.String("document_id", id), zap.Int("remaining", len(s.docs)))
	return true
}

// RequestDelete deletes id on the backend without touching local state.
// The caller applies the result with RemoveDocument.
func (s *Store) RequestDelete(ctx context.Context, id string) error {
	s.mu.RLock()
	known := documents.IndexOf(s.docs, id) >= 0
	busy := s.processing == id
	s.mu.RUnlock()

	if !known {
		return fmt.Errorf("failed to delete %q: %w", id, ErrUnknownDocument)
	}
	if busy {
		return fmt.Errorf("failed to delete %q: %w", id, ErrProcessing)
	}

	if err := s.gateway.Delete(ctx, id); err != nil {
		s.log.Error("delete failed", zap.String("document_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// DeleteDocument deletes id on the backend and then removes it locally. On
// failure the store is unchanged.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if err := s.RequestDelete(ctx, id); err != nil {
		return err
	}
	s.RemoveDocument(id)
	return nil
}

// RequestClearAll wipes the backend without touching local state. The
// caller applies a successful result with Reset.
func (s *Store) RequestClearAll(ctx context.Context) (*gateway.ClearAllResult, error) {
	result, err := s.gateway.ClearAll(ctx)
	if err != nil {
		s.log.Error("clear-all failed", zap.Error(err))
		return nil, fmt.Errorf("failed to clear all documents: %w", err)
	}
	s.log.Info("cleared all documents",
		zap.String("message", result.Message),
		zap.Int("deleted_collections", result.DeletedCollections),
		zap.Int("deleted_files", result.DeletedFiles),
	)
	return result, nil
}

// Reset empties the collection, clears the selection and removes both
// persisted keys
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs = nil
	s.selected = nil
	s.processing = ""
	s.generation++
	s.storage.Remove(storage.KeyDocuments)
	s.storage.Remove(storage.KeySelectedDocument)
}

// ClearAll wipes the backend and, only when that succeeds, resets the store
func (s *Store) ClearAll(ctx context.Context) (*gateway.ClearAllResult, error) {
	result, err := s.RequestClearAll(ctx)
	if err != nil {
		return nil, err
	}
	s.Reset()
	return result, nil
}

// RequestUpload checks the file at path and sends it to the backend without
// touching local state. The caller adds the returned document with
// AddDocument.
func (s *Store) RequestUpload(ctx context.Context, path string, onProgress gateway.ProgressFunc) (documents.Document, error) {
	info, err := documents.Inspect(path)
	if err != nil {
		return documents.Document{}, fmt.Errorf("failed to upload %s: %w", path, err)
	}

	s.log.Debug("uploading",
		zap.String("path", info.Path),
		zap.String("type", info.Type),
		zap.Int64("size", info.Size),
		zap.Int("pages", info.Pages),
	)

	result, err := s.gateway.UploadFile(ctx, path, onProgress)
	if err != nil {
		s.log.Error("upload failed", zap.String("path", path), zap.Error(err))
		return documents.Document{}, fmt.Errorf("failed to upload %s: %w", info.Name, err)
	}

	doc := result.Document()
	if doc.ID == "" {
		s.log.Error("upload accepted without document_id", zap.String("path", path), zap.String("message", result.Message))
		return documents.Document{}, fmt.Errorf("failed to upload %s: %w", info.Name, ErrMissingDocumentID)
	}
	if doc.Filename == "" {
		doc.Filename = info.Name
	}
	return doc, nil
}

// Upload checks the file at path, sends it to the backend and adds the
// returned document
func (s *Store) Upload(ctx context.Context, path string, onProgress gateway.ProgressFunc) (documents.Document, Ticket, error) {
	doc, err := s.RequestUpload(ctx, path, onProgress)
	if err != nil {
		return documents.Document{}, Ticket{}, err
	}
	return doc, s.AddDocument(doc), nil
}

// persist writes the collection and the selection. Caller holds mu.
func (s *Store) persist() {
	s.storage.Save(storage.KeyDocuments, s.docs)
	if s.selected == nil {
		s.storage.Remove(storage.KeySelectedDocument)
		return
	}
	s.storage.Save(storage.KeySelectedDocument, s.selected)
}

func dedupe(docs []documents.Document) []documents.Document {
	out := make([]documents.Document, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out
}

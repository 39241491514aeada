package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/notebook-ai/cli/internal/documents"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is where the backend listens by default
const DefaultBaseURL = "http://localhost:8000/api/v1"

// maxErrorBody caps how much of a failed response is kept
const maxErrorBody = 64 << 10

// Client wraps the document QA backend's REST API. No call is retried.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	progressRate rate.Limit
	log          *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithProgressRate limits upload progress callbacks to perSec per second.
// Zero or less delivers every callback.
func WithProgressRate(perSec float64) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.progressRate = rate.Inf
			return
		}
		c.progressRate = rate.Limit(perSec)
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log.Named("gateway") }
}

// NewClient creates a new backend client
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{},
		progressRate: rate.Limit(20),
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root all paths are resolved against
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadResult is the backend's answer to an accepted upload
type UploadResult struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
}

// Document returns the uploaded document
func (r *UploadResult) Document() documents.Document {
	return documents.Document{ID: r.DocumentID, Filename: r.Filename}
}

// ClearAllResult reports what the backend removed
type ClearAllResult struct {
	Message            string `json:"message"`
	DeletedCollections int    `json:"deleted_collections"`
	DeletedFiles       int    `json:"deleted_files"`
}

type chatRequest struct {
	Query      string `json:"query"`
	DocumentID string `json:"document_id"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

type taskRequest struct {
	DocumentID   string `json:"document_id"`
	NumQuestions int    `json:"num_questions,omitempty"`
}

type taskResponse struct {
	Result string `json:"result"`
}

// Delete removes a document from the backend
func (c *Client) Delete(ctx context.Context, documentID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/documents/"+url.PathEscape(documentID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, "delete document", nil)
}

// ClearAll removes every document and index on the backend
func (c *Client) ClearAll(ctx context.Context) (*ClearAllResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/clear-all", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result ClearAllResult
	if err := c.do(req, "clear all", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Chat asks a question about a document
func (c *Client) Chat(ctx context.Context, query, documentID string) (string, error) {
	var resp chatResponse
	if err := c.postJSON(ctx, "chat", "/chat", chatRequest{Query: query, DocumentID: documentID}, &resp); err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// Summarize asks for a summary of the whole document
func (c *Client) Summarize(ctx context.Context, documentID string) (string, error) {
	return c.task(ctx, "summarize", "/tasks/summarize", taskRequest{DocumentID: documentID})
}

// GenerateQuestions asks for n review questions about the document
func (c *Client) GenerateQuestions(ctx context.Context, documentID string, n int) (string, error) {
	return c.task(ctx, "generate questions", "/tasks/generate-questions", taskRequest{DocumentID: documentID, NumQuestions: n})
}

// ExtractKeywords asks for the document's keywords and main topics
func (c *Client) ExtractKeywords(ctx context.Context, documentID string) (string, error) {
	return c.task(ctx, "extract keywords", "/tasks/extract-keywords", taskRequest{DocumentID: documentID})
}

func (c *Client) task(ctx context.Context, op, path string, payload taskRequest) (string, error) {
	var resp taskResponse
	if err := c.postJSON(ctx, op, path, payload, &resp); err != nil {
		return "", err
	}
	return resp.Result, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload, out any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, op, out)
}

// do executes req and decodes a 2xx JSON body into out when out is non-nil
func (c *Client) do(req *http.Request, op string, out any) error {
	start := time.Now()
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("op", op), zap.Error(err))
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("request finished",
		zap.String("op", op),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ServerError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Warn("undecodable response", zap.String("op", op), zap.Int("status", resp.StatusCode), zap.Error(err))
		return &ServerError{Op: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}

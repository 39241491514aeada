package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/v1", WithProgressRate(0)), srv
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestChat(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body := decodeBody(t, r)
		assert.Equal(t, "What is RAG?", body["query"])
		assert.Equal(t, "doc-1", body["document_id"])
		w.Write([]byte(`{"answer":"Retrieval augmented generation."}`))
	})

	answer, err := client.Chat(context.Background(), "What is RAG?", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Retrieval augmented generation.", answer)
}

func TestTasks(t *testing.T) {
	tests := []struct {
		name string
		path string
		call func(*Client) (string, error)
		want map[string]any
	}{
		{
			name: "summarize",
			path: "/api/v1/tasks/summarize",
			call: func(c *Client) (string, error) { return c.Summarize(context.Background(), "doc-1") },
			want: map[string]any{"document_id": "doc-1"},
		},
		{
			name: "generate questions",
			path: "/api/v1/tasks/generate-questions",
			call: func(c *Client) (string, error) { return c.GenerateQuestions(context.Background(), "doc-1", 7) },
			want: map[string]any{"document_id": "doc-1", "num_questions": float64(7)},
		},
		{
			name: "extract keywords",
			path: "/api/v1/tasks/extract-keywords",
			call: func(c *Client) (string, error) { return c.ExtractKeywords(context.Background(), "doc-1") },
			want: map[string]any{"document_id": "doc-1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				assert.Equal(t, tt.want, decodeBody(t, r))
				w.Write([]byte(`{"result":"done"}`))
			})
			result, err := tt.call(client)
			require.NoError(t, err)
			assert.Equal(t, "done", result)
		})
	}
}

func TestDelete(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/documents/doc 1", r.URL.Path)
		w.Write([]byte(`{"message":"deleted","document_id":"doc 1"}`))
	})

	require.NoError(t, client.Delete(context.Background(), "doc 1"))
}

func TestClearAll(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/clear-all", r.URL.Path)
		w.Write([]byte(`{"message":"ok","deleted_collections":2,"deleted_files":3}`))
	})

	result, err := client.ClearAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.DeletedCollections)
	assert.Equal(t, 3, result.DeletedFiles)
}

func TestServerError(t *testing.T) {
	var calls int
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"boom"}`))
	})

	_, err := client.Summarize(context.Background(), "doc-1")
	require.Error(t, err)

	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, `{"detail":"boom"}`, se.Body)
	assert.True(t, IsServer(err))
	assert.False(t, IsNetwork(err))
	assert.Equal(t, 1, calls, "no automatic retry")
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(srv.URL)

	_, err := client.Chat(context.Background(), "hi", "doc-1")
	require.Error(t, err)
	assert.True(t, IsNetwork(err))

	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "chat", ne.Op)
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := client.ExtractKeywords(context.Background(), "doc-1")

	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}

func TestInvalidJSONResponse(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := client.Chat(context.Background(), "hi", "doc-1")
	require.Error(t, err)
	assert.False(t, IsNetwork(err))

	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusOK, se.Status)
	assert.Error(t, se.Err)
	assert.Contains(t, err.Error(), "invalid backend response (200)")
}

func TestUpload(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/documents", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "a.pdf", header.Filename)
		assert.Equal(t, strings.Repeat("x", 100000), string(data))

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"message":"accepted","document_id":"doc-9","filename":"a.pdf"}`))
	})

	var (
		mu      sync.Mutex
		updates []Progress
	)
	result, err := client.Upload(context.Background(), "a.pdf", strings.NewReader(strings.Repeat("x", 100000)), func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, p)
	})
	require.NoError(t, err)
	assert.Equal(t, "doc-9", result.DocumentID)
	assert.Equal(t, "doc-9", result.Document().ID)
	assert.Equal(t, "a.pdf", result.Document().Filename)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, last.Total, last.Loaded)
	assert.Equal(t, 100, last.Percent())
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i].Loaded, updates[i-1].Loaded)
	}
}

func TestUploadProgressPanicDoesNotAbort(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"document_id":"doc-1","filename":"a.txt"}`))
	})

	result, err := client.Upload(context.Background(), "a.txt", strings.NewReader("hello"), func(Progress) {
		panic("renderer gone")
	})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", result.DocumentID)
}

func TestUploadFileMissing(t *testing.T) {
	client := NewClient("")
	_, err := client.UploadFile(context.Background(), "/definitely/not/here.pdf", nil)
	assert.Error(t, err)
	assert.False(t, IsNetwork(err))
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0, Progress{}.Percent())
	assert.Equal(t, 33, Progress{Loaded: 1, Total: 3}.Percent())
	assert.Equal(t, 67, Progress{Loaded: 2, Total: 3}.Percent())
	assert.Equal(t, 100, Progress{Loaded: 3, Total: 3}.Percent())
}

func TestNewClientDefaults(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, NewClient("").BaseURL())
	assert.Equal(t, "http://h/api", NewClient("http://h/api/").BaseURL())
}

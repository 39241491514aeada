package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Progress reports how much of an upload body the transport has consumed
type Progress struct {
	Loaded int64
	Total  int64
}

// Percent returns round(loaded*100/total)
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return int((p.Loaded*100 + p.Total/2) / p.Total)
}

// ProgressFunc receives upload progress. It runs on the transport's
// goroutine; a panic inside it is recovered and does not abort the upload.
type ProgressFunc func(Progress)

// UploadFile uploads the file at path
func (c *Client) UploadFile(ctx context.Context, path string, onProgress ProgressFunc) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return c.Upload(ctx, filepath.Base(path), f, onProgress)
}

// Upload sends content as a multipart form under the field "file"
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader, onProgress ProgressFunc) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	total := int64(body.Len())
	reader := &progressReader{
		r:       bytes.NewReader(body.Bytes()),
		total:   total,
		notify:  onProgress,
		limiter: rate.NewLimiter(c.progressRate, 1),
		log:     c.log,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents", reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result UploadResult
	if err := c.do(req, "upload document", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// progressReader counts bytes as the transport reads the request body
type progressReader struct {
	r       io.Reader
	loaded  int64
	total   int64
	notify  ProgressFunc
	limiter *rate.Limiter
	log     *zap.Logger
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.notify != nil {
		p.loaded += int64(n)
		// The final callback is never dropped.
		if p.loaded >= p.total || p.limiter.Allow() {
			p.report(Progress{Loaded: p.loaded, Total: p.total})
		}
	}
	return n, err
}

func (p *progressReader) report(pr Progress) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn("upload progress callback panicked", zap.Any("panic", r))
		}
	}()
	p.notify(pr)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// UploadResponse is the server's answer to a single upload.
type UploadResponse struct {
	JobID string          `json:"jobId"`
	Raw   json.RawMessage `json:"-"`
}

// BatchResponse is the server's answer to a batch upload.
type BatchResponse struct {
	BatchID string          `json:"batchId"`
	JobIDs  []string        `json:"jobIds"`
	Raw     json.RawMessage `json:"-"`
}

// ProgressFunc receives the upload percentage, 0..100.
type ProgressFunc func(percent int)

// Upload posts one document as the multipart field "file".
func (c *Client) Upload(ctx context.Context, path string, onProgress ProgressFunc) (UploadResponse, error) {
	var out UploadResponse
	raw, err := c.postFiles(ctx, c.endpoint("upload"), "file", []string{path}, onProgress)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode upload response: %w", err)
	}
	if out.JobID == "" {
		return out, errors.New("upload response has no jobId")
	}
	out.Raw = raw
	return out, nil
}

// UploadBatch posts several documents under the repeated field "files".
func (c *Client) UploadBatch(ctx context.Context, paths []string, onProgress ProgressFunc) (BatchResponse, error) {
	var out BatchResponse
	if len(paths) == 0 {
		return out, errors.New("no files to upload")
	}
	raw, err := c.postFiles(ctx, c.endpoint("batch"), "files", paths, onProgress)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode batch response: %w", err)
	}
	out.Raw = raw
	return out, nil
}

// postFiles streams a multipart body through a pipe so large scans are never
// held in memory. Progress is measured against the total size of the files.
func (c *Client) postFiles(ctx context.Context, target, field string, paths []string, onProgress ProgressFunc) (json.RawMessage, error) {
	var total int64
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if fi.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		total += fi.Size()
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	counter := &progressCounter{total: total, report: onProgress}

	go func() {
		pw.CloseWithError(writeParts(mw, field, paths, counter))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Uploading",
		zap.String("field", field),
		zap.Int("files", len(paths)),
		zap.Int64("bytes", total))

	resp, err := c.do(req)
	if err != nil {
		pr.Close()
		return nil, err
	}
	defer resp.Body.Close()
	counter.finish()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	return body, nil
}

func writeParts(mw *multipart.Writer, field string, paths []string, counter *progressCounter) error {
	for _, p := range paths {
		if err := writePart(mw, field, p, counter); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writePart(mw *multipart.Writer, field, path string, counter *progressCounter) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, io.TeeReader(f, counter))
	return err
}

// progressCounter reports a rounded percentage each time it grows.
type progressCounter struct {
	mu     sync.Mutex
	total  int64
	sent   int64
	last   int
	report ProgressFunc
}

func (p *progressCounter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent += int64(len(b))
	p.emit(p.percent())
	return len(b), nil
}

func (p *progressCounter) percent() int {
	if p.total <= 0 {
		return 0
	}
	return int((p.sent*100 + p.total/2) / p.total)
}

func (p *progressCounter) emit(pct int) {
	if p.report == nil || pct <= p.last {
		return
	}
	p.last = min(pct, 100)
	p.report(p.last)
}

// finish reports 100 once the server has accepted the body.
func (p *progressCounter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emit(100)
}

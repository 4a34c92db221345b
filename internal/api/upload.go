package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"lv0/internal/handoff"
	"lv0/internal/model"
)

const maxErrorBody = 64 << 10

// UploadResult is the outcome of a successful upload.
type UploadResult struct {
	JobID    string
	Artifact *handoff.Artifact
}

// Upload sends the archive to POST /analyze as multipart field "file".
// onProgress, when non-nil, receives the integer percent of the file body
// written to the connection; values never decrease.
// The response payload is spooled into an Artifact owned by the caller.
func (c *Client) Upload(ctx context.Context, job model.UploadJob, onProgress func(percent int)) (UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return UploadResult{}, err
	}
	f, err := os.Open(job.SourcePath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	size := job.SizeBytes
	if size <= 0 {
		if fi, serr := f.Stat(); serr == nil {
			size = fi.Size()
		}
	}

	reqID := uuid.NewString()
	clientJobID := uuid.NewString()
	body, contentType, contentLength, err := multipartBody(f, size, job.DisplayName, clientJobID, onProgress)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("analyze"), body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build request: %w", err)
	}
	req.ContentLength = contentLength
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/pdf")

	start := time.Now()
	c.logger.Info("api.upload.request",
		"req_id", reqID,
		"url", req.URL.String(),
		"file", job.DisplayName,
		"size", size,
		"client_job_id", clientJobID,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return UploadResult{}, ctx.Err()
		}
		c.logger.Error("api.upload.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return UploadResult{}, transportErr("upload", err)
	}
	defer resp.Body.Close()

	c.logger.Info("api.upload.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"job_id", resp.Header.Get(JobIDHeader),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return UploadResult{}, httpFailure(resp.StatusCode, raw)
	}

	jobID := strings.TrimSpace(resp.Header.Get(JobIDHeader))
	if jobID == "" {
		return UploadResult{}, protocolErr("response is missing the %s header", JobIDHeader)
	}

	art, err := handoff.Spool(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		if ctx.Err() != nil {
			return UploadResult{}, ctx.Err()
		}
		return UploadResult{}, transportErr("read report", err)
	}
	return UploadResult{JobID: jobID, Artifact: art}, nil
}

// multipartBody assembles a streaming multipart body with a known length so
// the request is not sent chunked.
func multipartBody(file io.Reader, size int64, filename, jobID string, onProgress func(int)) (io.Reader, string, int64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("job_id", jobID); err != nil {
		return nil, "", 0, err
	}
	if _, err := mw.CreateFormFile("file", filename); err != nil {
		return nil, "", 0, err
	}
	head := append([]byte(nil), buf.Bytes()...)
	buf.Reset()
	if err := mw.Close(); err != nil {
		return nil, "", 0, err
	}
	tail := append([]byte(nil), buf.Bytes()...)

	pr := &progressReader{r: file, total: size, fn: onProgress, last: -1}
	body := io.MultiReader(bytes.NewReader(head), pr, bytes.NewReader(tail))
	return body, mw.FormDataContentType(), int64(len(head)) + size + int64(len(tail)), nil
}

// progressReader reports integer percent of bytes read against total.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	last  int
	fn    func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.fn != nil {
		switch {
		case p.total > 0:
			pct := int(p.read * 100 / p.total)
			if pct > 100 {
				pct = 100
			}
			p.emit(pct)
		case err == io.EOF:
			p.emit(100)
		}
	}
	return n, err
}

func (p *progressReader) emit(pct int) {
	if pct <= p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}

// errorBody is the JSON error shape returned by the backend.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Message string `json:"message"`
}

// httpFailure classifies a non-2xx response. A JSON error body means the
// backend ran and reported a failure; anything else is a protocol mismatch.
func httpFailure(code int, raw []byte) error {
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
		msg := eb.Error
		if eb.Details != "" {
			msg += ": " + eb.Details
		}
		return &RemoteAnalysisError{Message: msg, StatusCode: code}
	}
	snippet := strings.TrimSpace(string(raw))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	if snippet == "" {
		return protocolErr("unexpected HTTP status %d", code)
	}
	return protocolErr("unexpected HTTP status %d: %s", code, snippet)
}

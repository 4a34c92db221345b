package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"lv0/internal/model"
)

// statusAliases maps intermediate backend statuses onto processing.
var statusAliases = map[string]model.Status{
	"uploading":        model.StatusProcessing,
	"extracting":       model.StatusProcessing,
	"analyzing":        model.StatusProcessing,
	"static_completed": model.StatusProcessing,
	"forwarding":       model.StatusProcessing,
	"pending":          model.StatusProcessing,
}

type statusBody struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Error    string   `json:"error"`
	Progress *float64 `json:"progress"`
}

// Status queries GET /status/{jobID}. Each call is bounded by the client's
// status timeout in addition to ctx.
func (c *Client) Status(ctx context.Context, jobID string) (model.StatusReport, error) {
	if strings.TrimSpace(jobID) == "" {
		return model.StatusReport{}, protocolErr("empty job id")
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.endpoint("status", jobID), nil)
	if err != nil {
		return model.StatusReport{}, protocolErr("build status request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return model.StatusReport{}, ctx.Err()
		}
		c.logger.Warn("api.status.send_error", "job_id", jobID, "error", err)
		return model.StatusReport{}, transportErr("status", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		if ctx.Err() != nil {
			return model.StatusReport{}, ctx.Err()
		}
		return model.StatusReport{}, transportErr("read status", err)
	}
	c.logger.Debug("api.status.response",
		"job_id", jobID,
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		var sb statusBody
		if json.Unmarshal(raw, &sb) == nil && sb.Error != "" {
			return model.StatusReport{}, protocolErr("status %d: %s", resp.StatusCode, sb.Error)
		}
		return model.StatusReport{}, protocolErr("unexpected HTTP status %d from status endpoint", resp.StatusCode)
	}
	return parseStatus(raw)
}

// parseStatus decodes and normalizes a status body.
func parseStatus(raw []byte) (model.StatusReport, error) {
	var sb statusBody
	if err := json.Unmarshal(raw, &sb); err != nil {
		return model.StatusReport{}, protocolErr("decode status: %v", err)
	}
	st, err := normalizeStatus(sb.Status)
	if err != nil {
		return model.StatusReport{}, err
	}
	rep := model.StatusReport{Status: st, Message: sb.Message}
	if rep.Message == "" && st == model.StatusError {
		rep.Message = sb.Error
	}
	if sb.Progress != nil {
		p := int(*sb.Progress + 0.5)
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		rep.Progress = &p
	}
	return rep, nil
}

func normalizeStatus(s string) (model.Status, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch model.Status(s) {
	case model.StatusProcessing, model.StatusCompleted, model.StatusLLMCompleted, model.StatusError:
		return model.Status(s), nil
	}
	if st, ok := statusAliases[s]; ok {
		return st, nil
	}
	if s == "" {
		return "", protocolErr("status field missing")
	}
	return "", protocolErr("unknown status %q", s)
}

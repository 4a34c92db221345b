package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// HealthInfo is the body of GET /health.
type HealthInfo struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

// Health checks that the backend is reachable and healthy.
func (c *Client) Health(ctx context.Context) (HealthInfo, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.endpoint("health"), nil)
	if err != nil {
		return HealthInfo{}, protocolErr("build health request: %v", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return HealthInfo{}, ctx.Err()
		}
		return HealthInfo{}, transportErr("health", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return HealthInfo{}, transportErr("read health", err)
	}
	if resp.StatusCode/100 != 2 {
		return HealthInfo{}, protocolErr("unexpected HTTP status %d from health endpoint", resp.StatusCode)
	}
	var hi HealthInfo
	if err := json.Unmarshal(raw, &hi); err != nil {
		return HealthInfo{}, protocolErr("decode health: %v", err)
	}
	return hi, nil
}

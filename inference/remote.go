package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultRemoteTimeout bounds a single remote inference call.
const DefaultRemoteTimeout = 30 * time.Second

// ErrEmptyResponse indicates the model server returned no tensor.
var ErrEmptyResponse = errors.New("inference: empty response from model server")

// inferRequest is the body posted to a model server.
type inferRequest struct {
	Infill Rect   `json:"infill"`
	Input  Tensor `json:"input"`
}

// inferResponse is the body returned by a model server.
type inferResponse struct {
	Output Tensor `json:"output"`
	Error  string `json:"error,omitempty"`
}

// remoteModel posts tensors to an HTTP model server.
//
// Thread-Safety:
//   - remoteModel is safe for concurrent use
//   - HTTP client handles concurrency internally
type remoteModel struct {
	url        string
	infill     Rect
	httpClient *http.Client
}

func (m *remoteModel) Infer(ctx context.Context, input Tensor) (Tensor, error) {
	if err := input.Validate(); err != nil {
		return Tensor{}, err
	}

	body, err := json.Marshal(inferRequest{Infill: m.infill, Input: input})
	if err != nil {
		return Tensor{}, fmt.Errorf("inference: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return Tensor{}, fmt.Errorf("inference: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Tensor{}, fmt.Errorf("inference: request to %s failed: %w", m.url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Tensor{}, fmt.Errorf("inference: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Tensor{}, fmt.Errorf("inference: model server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out inferResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Tensor{}, fmt.Errorf("inference: failed to parse response: %w", err)
	}
	if out.Error != "" {
		return Tensor{}, fmt.Errorf("inference: model server error: %s", out.Error)
	}
	if len(out.Output.Data) == 0 {
		return Tensor{}, ErrEmptyResponse
	}
	if err := out.Output.Validate(); err != nil {
		return Tensor{}, err
	}
	return out.Output, nil
}

func (m *remoteModel) Close() error {
	m.httpClient.CloseIdleConnections()
	return nil
}

// probe checks that the server answers before the model is handed out.
func (m *remoteModel) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference: model server %s unreachable: %w", m.url, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("inference: model server %s unhealthy: status %d", m.url, resp.StatusCode)
	}
	return nil
}

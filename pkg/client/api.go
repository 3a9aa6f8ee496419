// Package client talks to the Clarvis backend: streaming chat, study
// material generation and a poller that can re-attach to a run started by an
// earlier process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clarvis-be/pkg/client/store"
	"clarvis-be/pkg/sse"
	"clarvis-be/pkg/studymaterial"
)

// ErrStreamInterrupted is returned when the caller cancels a chat stream.
// It ends the turn silently; it is not a failure.
var ErrStreamInterrupted = errors.New("stream interrupted")

// HTTPError is a non-2xx backend answer.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error: %d %s", e.Status, http.StatusText(e.Status))
}

// WorkflowStatus is the status document of a run with its projection.
type WorkflowStatus struct {
	InstanceId             string                       `json:"instanceId"`
	Status                 string                       `json:"status"`
	Output                 *studymaterial.StudyMaterial `json:"output,omitempty"`
	Error                  string                       `json:"error,omitempty"`
	CurrentStepDescription string                       `json:"currentStepDescription,omitempty"`
	Progress               *int                         `json:"progress,omitempty"`
	EstimatedTimeRemaining string                       `json:"estimatedTimeRemaining,omitempty"`
}

type GenerateOptions struct {
	UserId        string
	Difficulty    string
	MaterialTypes []string
}

type GenerateResult struct {
	InstanceId string `json:"instanceId"`
	StatusUrl  string `json:"statusUrl"`
}

type HistoryRow struct {
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
}

type API struct {
	baseURL string
	http    *http.Client
}

func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (a *API) BaseURL() string {
	return a.baseURL
}

// Chat posts the conversation and consumes the reply stream. onChunk, when
// set, receives the reply text accumulated so far after every chunk. No chunk
// is applied once ctx is cancelled.
func (a *API) Chat(ctx context.Context, agentId string, msgs []store.Message, pc *studymaterial.PageContext, onChunk func(text string)) (string, error) {
	body := struct {
		Messages    []store.Message            `json:"messages"`
		PageContext *studymaterial.PageContext `json:"pageContext,omitempty"`
	}{Messages: msgs, PageContext: pc}

	resp, err := a.do(ctx, http.MethodPost, "/agent/chat/"+agentId+"/chat", body)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrStreamInterrupted
		}
		return "", err
	}
	defer resp.Body.Close()

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), sse.ContentType) {
		var out struct {
			Message  string `json:"message"`
			Response string `json:"response"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", err
		}
		if out.Message != "" {
			return out.Message, nil
		}
		return out.Response, nil
	}

	var full strings.Builder
	reader := sse.NewReader(resp.Body)
	for {
		event, err := reader.Next()
		if ctx.Err() != nil {
			return full.String(), ErrStreamInterrupted
		}
		if errors.Is(err, io.EOF) || event.Done {
			return full.String(), nil
		}
		if errors.Is(err, sse.ErrMalformedEvent) {
			continue
		}
		if err != nil {
			return full.String(), err
		}
		if event.Response == "" {
			continue
		}
		full.WriteString(event.Response)
		if onChunk != nil {
			onChunk(full.String())
		}
	}
}

func (a *API) History(ctx context.Context, agentId string) ([]HistoryRow, error) {
	var out struct {
		History []HistoryRow `json:"history"`
	}
	if err := a.getJSON(ctx, "/agent/chat/"+agentId+"/history", &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

func (a *API) ClearHistory(ctx context.Context, agentId string) error {
	resp, err := a.do(ctx, http.MethodPost, "/agent/chat/"+agentId+"/clear", nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Healthy reports whether the backend answers its health check.
func (a *API) Healthy(ctx context.Context) bool {
	resp, err := a.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (a *API) Generate(ctx context.Context, pc studymaterial.PageContext, opts GenerateOptions) (*GenerateResult, error) {
	body := struct {
		PageContext   studymaterial.PageContext `json:"pageContext"`
		UserId        string                    `json:"userId,omitempty"`
		Difficulty    string                    `json:"difficulty,omitempty"`
		MaterialTypes []string                  `json:"materialTypes,omitempty"`
	}{pc, opts.UserId, opts.Difficulty, opts.MaterialTypes}

	resp, err := a.do(ctx, http.MethodPost, "/study-materials/generate", body)
	if err != nil {
		return nil, fmt.Errorf("start study material generation: %w", err)
	}
	defer resp.Body.Close()

	var out GenerateResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Status(ctx context.Context, instanceId string) (*WorkflowStatus, error) {
	var out struct {
		Status *WorkflowStatus `json:"status"`
	}
	if err := a.getJSON(ctx, "/study-materials/status/"+instanceId, &out); err != nil {
		return nil, fmt.Errorf("get workflow status: %w", err)
	}
	if out.Status == nil {
		return nil, fmt.Errorf("get workflow status: empty response")
	}
	return out.Status, nil
}

func (a *API) getJSON(ctx context.Context, path string, v any) error {
	resp, err := a.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// do sends the request and turns non-2xx answers into *HTTPError.
func (a *API) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, payload)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, &HTTPError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	return resp, nil
}

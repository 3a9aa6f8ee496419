package client_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"clarvis-be/pkg/client"
	"clarvis-be/pkg/client/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *client.API {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return client.NewAPI(srv.URL+"/", srv.Client())
}

func writeChunk(w http.ResponseWriter, chunk string) {
	data, _ := json.Marshal(map[string]string{"response": chunk})
	fmt.Fprintf(w, "data: %s\n\n", data)
	w.(http.Flusher).Flush()
}

func TestChatAccumulatesChunks(t *testing.T) {
	var got struct {
		Messages []store.Message `json:"messages"`
	}
	api := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agent/chat/default/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		writeChunk(w, "Hel")
		fmt.Fprint(w, ": keep-alive\n\n")
		writeChunk(w, "lo")
		writeChunk(w, "!")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var seen []string
	text, err := api.Chat(context.Background(), "default",
		[]store.Message{{Role: "user", Parts: []store.MessagePart{{Type: "text", Text: "hi"}}}},
		nil, func(text string) { seen = append(seen, text) })

	require.NoError(t, err)
	assert.Equal(t, "Hello!", text)
	assert.Equal(t, []string{"Hel", "Hello", "Hello!"}, seen)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hi", got.Messages[0].Parts[0].Text)
}

func TestChatCancelAppliesNoLaterChunk(t *testing.T) {
	release := make(chan struct{})
	api := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeChunk(w, "first")
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		writeChunk(w, "second")
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	var seen []string
	_, err := api.Chat(ctx, "default", nil, nil, func(text string) {
		seen = append(seen, text)
		cancel()
	})

	assert.ErrorIs(t, err, client.ErrStreamInterrupted)
	assert.Equal(t, []string{"first"}, seen)
}

func TestChatBackendError(t *testing.T) {
	api := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"error":"Failed to generate AI response: boom"}`)
	})

	_, err := api.Chat(context.Background(), "default", nil, nil, nil)
	var httpErr *client.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.Status)
	assert.Equal(t, "Failed to generate AI response: boom", httpErr.Message)
}

func TestGenerateAndStatus(t *testing.T) {
	api := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/study-materials/generate":
			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "advanced", body["difficulty"])
			fmt.Fprint(w, `{"success":true,"instanceId":"run-1","statusUrl":"/study-materials/status/run-1"}`)
		case "/study-materials/status/run-1":
			fmt.Fprint(w, `{"status":{"instanceId":"run-1","status":"running","currentStepDescription":"generate summary","progress":11,"estimatedTimeRemaining":"~80 seconds"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"Workflow instance not found"}`)
		}
	})

	res, err := api.Generate(context.Background(), pageFixture(), client.GenerateOptions{Difficulty: "advanced"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.InstanceId)

	status, err := api.Status(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "running", status.Status)
	require.NotNil(t, status.Progress)
	assert.Equal(t, 11, *status.Progress)

	_, err = api.Status(context.Background(), "run-2")
	var httpErr *client.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
}

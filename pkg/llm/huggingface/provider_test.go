package huggingface

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"clarvis-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello"}}]}`)
	}))
	defer srv.Close()

	reply, err := NewHuggingFaceProvider("secret", srv.URL, "mistral").Generate(context.Background(), "hi")

	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
}

func TestChatFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewHuggingFaceProvider("secret", srv.URL, "mistral").Generate(context.Background(), "hi")
	assert.Equal(t, llm.KindQuotaOrRegion, llm.KindOf(err))

	_, err = NewHuggingFaceProvider("", srv.URL, "mistral").Generate(context.Background(), "hi")
	assert.Equal(t, llm.KindMisconfiguration, llm.KindOf(err))
}

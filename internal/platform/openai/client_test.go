package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/kgsummary/internal/platform/logger"
)

type embeddingsBody struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func fakeServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		var body embeddingsBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		data := make([]map[string]any, 0, len(body.Input))
		// Reverse order so index handling is exercised.
		for i := len(body.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(body.Input[i])), float32(i)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  body.Model,
			"data":   data,
		})
	}))
}

func TestEmbedOrdersByIndex(t *testing.T) {
	var calls atomic.Int32
	srv := fakeServer(t, &calls)
	defer srv.Close()

	e, err := NewEmbedder(logger.Nop(), Config{APIKey: "k", BaseURL: srv.URL + "/v1"}, nil)
	require.NoError(t, err)
	out, err := e.Embed(context.Background(), []string{"a", "bbb"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []float32{1, 0}, out[0])
	assert.Equal(t, []float32{3, 1}, out[1])
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedRequiresAPIKey(t *testing.T) {
	_, err := NewEmbedder(logger.Nop(), Config{}, nil)
	assert.Error(t, err)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "hi", truncateRunes("hi", 4))
}

func TestEmbedEmptyInput(t *testing.T) {
	e, err := NewEmbedder(logger.Nop(), Config{APIKey: "k", BaseURL: "http://127.0.0.1:1/v1"}, nil)
	require.NoError(t, err)
	out, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

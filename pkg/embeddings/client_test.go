package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string) *TEIClient {
	t.Helper()
	return NewTEIClient(url, "Xenova/all-MiniLM-L6-v2", 384, 0)
}

func TestTEIClient_Embed(t *testing.T) {
	t.Parallel()

	expected := []float32{0.1, 0.2, 0.3}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, embedPath, r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"hello world"}, req.Inputs)
		require.True(t, req.Truncate)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode([][]float32{expected}))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	result, err := client.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	require.Equal(t, expected, result)
}

func TestTEIClient_EmbedBatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		texts   []string
		handler http.HandlerFunc
		wantErr string
		wantLen int
	}{
		{name: "empty input", texts: nil},
		{
			name:  "multiple inputs",
			texts: []string{"a", "b"},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode([][]float32{{0.1, 0.2}, {0.3, 0.4}})
			},
			wantLen: 2,
		},
		{
			name:  "server error",
			texts: []string{"a"},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("boom"))
			},
			wantErr: "status 500",
		},
		{
			name:  "mismatched count",
			texts: []string{"a", "b"},
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode([][]float32{{0.1}})
			},
			wantErr: "expected 2 vectors",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var client *TEIClient
			if tt.handler != nil {
				srv := httptest.NewServer(tt.handler)
				defer srv.Close()
				client = newTestClient(t, srv.URL)
			} else {
				client = newTestClient(t, "http://unused.invalid")
			}

			result, err := client.EmbedBatch(context.Background(), tt.texts)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, result, tt.wantLen)
		})
	}
}

func TestTEIClient_Dimension(t *testing.T) {
	t.Parallel()
	client := NewTEIClient("http://x", "m", 0, 0)
	require.Equal(t, 384, client.Dimension())
}

package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
)

func TestComplete(t *testing.T) {
	tests := []struct {
		name       string
		opts       driven.GenerateOptions
		wantFormat string
	}{
		{name: "plain text", opts: driven.GenerateOptions{MaxTokens: 64}},
		{name: "json mode", opts: driven.GenerateOptions{JSON: true, Temperature: 0.1}, wantFormat: "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/generate", r.URL.Path)

				var req generateRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "test-model", req.Model)
				assert.Equal(t, "hello", req.Prompt)
				assert.False(t, req.Stream)
				assert.Equal(t, tt.wantFormat, req.Format)
				assert.Equal(t, tt.opts.MaxTokens, req.Options.NumPredict)
				assert.InDelta(t, tt.opts.Temperature, req.Options.Temperature, 1e-9)

				_ = json.NewEncoder(w).Encode(generateResponse{Response: `{"answer":"ok"}`, Done: true})
			}))
			defer server.Close()

			svc := NewLLMService(LLMConfig{BaseURL: server.URL, Model: "test-model"})
			out, err := svc.Complete(context.Background(), "hello", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, `{"answer":"ok"}`, out)
		})
	}
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom"},
		{name: "rate limited", status: http.StatusTooManyRequests, body: "busy", wantErr: domain.ErrRateLimited},
		{name: "error field", status: http.StatusOK, body: `{"error":"model not loaded"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc := NewLLMService(LLMConfig{BaseURL: server.URL})
			_, err := svc.Complete(context.Background(), "hello", driven.GenerateOptions{})
			require.Error(t, err)
			var perr *domain.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "complete", perr.Op)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewLLMService_Defaults(t *testing.T) {
	svc := NewLLMService(LLMConfig{})
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.Equal(t, DefaultBaseURL, svc.baseURL)
	assert.Equal(t, DefaultLLMTimeout, svc.client.Timeout)
}

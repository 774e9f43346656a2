package extractor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func completionServer(t *testing.T, hits *int32, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-3.5-turbo", req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-3.5-turbo",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestExtractor(srv *httptest.Server, maxFailures uint32) *Extractor {
	return New(Config{
		APIKey:              "test-key",
		BaseURL:             srv.URL,
		RequestTimeout:      2 * time.Second,
		BreakerMaxFailures:  maxFailures,
		BreakerOpenInterval: time.Minute,
	}, srv.Client(), zap.NewNop())
}

func TestExtractParsesStrictJSON(t *testing.T) {
	var hits int32
	srv := completionServer(t, &hits, http.StatusOK, `{"company_name":"Acme","interview_datetime":"2024-01-01T10:00:00"}`)

	got := newTestExtractor(srv, 5).Extract(context.Background(), "Interview with Acme")
	require.True(t, got.Complete())
	assert.Equal(t, "Acme", *got.CompanyName)
	assert.Equal(t, "2024-01-01T10:00:00", *got.InterviewDatetime)
	assert.Equal(t, int32(1), hits)
}

func TestExtractNonJSONIsSoftFailure(t *testing.T) {
	var hits int32
	srv := completionServer(t, &hits, http.StatusOK, "Sure! The company is Acme.")

	got := newTestExtractor(srv, 5).Extract(context.Background(), "email body")
	assert.Nil(t, got.CompanyName)
	assert.Nil(t, got.InterviewDatetime)
	assert.Equal(t, "email body", got.RawText)
}

func TestExtractServerErrorIsSoftFailure(t *testing.T) {
	var hits int32
	srv := completionServer(t, &hits, http.StatusInternalServerError, "")

	got := newTestExtractor(srv, 5).Extract(context.Background(), "email body")
	assert.False(t, got.Complete())
	assert.Equal(t, "email body", got.RawText)
}

func TestExtractBreakerStopsCallingAfterFailures(t *testing.T) {
	var hits int32
	srv := completionServer(t, &hits, http.StatusInternalServerError, "")
	ex := newTestExtractor(srv, 2)

	for i := 0; i < 5; i++ {
		got := ex.Extract(context.Background(), "email body")
		assert.False(t, got.Complete())
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestParseRejectsWrongShapes(t *testing.T) {
	bad := []string{
		`{"company_name":"Acme"}`,
		`{"company_name":"Acme","interview_datetime":null}`,
		`{"company_name":"Acme","interview_datetime":"2024-01-01","extra":"x"}`,
		`{"company_name":42,"interview_datetime":"2024-01-01"}`,
		`{"company_name":"Acme","interview_datetime":"2024-01-01"} trailing`,
		"```json\n{\"company_name\":\"Acme\",\"interview_datetime\":\"2024-01-01\"}\n```",
		`[]`,
	}
	for _, content := range bad {
		_, err := Parse(content)
		assert.Error(t, err, content)
	}

	got, err := Parse("  {\"company_name\":\"Acme\",\"interview_datetime\":\"2024-01-01T10:00:00\"}\n")
	require.NoError(t, err)
	assert.Equal(t, "Acme", *got.CompanyName)
}

package middleware

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/and161185/csm-transport/internal/utils"
	"github.com/stretchr/testify/require"
)

func gzipBody(data []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(data)
	_ = zw.Close()
	return buf.Bytes()
}

func makeRequest(t *testing.T, method string, body []byte, key, hash string) *httptest.ResponseRecorder {
	t.Helper()
	handler := VerifyHashMiddleware(key)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("response"))
	}))

	req := httptest.NewRequest(method, "/", bytes.NewReader(body))
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Content-Type", "application/json")
	if hash != "" {
		req.Header.Set(utils.HashHeader, hash)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestVerifyHashMiddleware(t *testing.T) {
	compressed := gzipBody([]byte(`{"feedbacks":[],"wrapper_version":"1","profile_id":235}`))
	key := "supersecret"

	tests := []struct {
		name   string
		method string
		key    string
		hash   string
		want   int
	}{
		{"valid hash", http.MethodPost, key, utils.CalculateHash(compressed, key), http.StatusOK},
		{"invalid hash", http.MethodPost, key, "invalidhash", http.StatusBadRequest},
		{"wrong key", http.MethodPost, key, utils.CalculateHash(compressed, "other"), http.StatusBadRequest},
		{"missing hash", http.MethodPost, key, "", http.StatusBadRequest},
		{"no key configured", http.MethodPost, "", "", http.StatusOK},
		{"get is not signed", http.MethodGet, key, "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := makeRequest(t, tt.method, compressed, tt.key, tt.hash)
			require.Equal(t, tt.want, rr.Code)
		})
	}
}

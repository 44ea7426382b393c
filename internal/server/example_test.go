package server

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/and161185/csm-transport/internal/config"
	"github.com/and161185/csm-transport/model"
	"github.com/and161185/csm-transport/storage/inmemory"
)

func ExampleServer_MetricsHandler() {
	st := inmemory.NewMemStorage()
	srv := NewServer(st, &config.ServerConfig{})

	metrics := []model.Metric{model.NewMetricBuilder("impression").SetZoneID(1).Build()}
	raw, _ := json.Marshal(model.NewMetricRequest(metrics, "1.0.0", 235))
	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	_, _ = zw.Write(raw)
	_ = zw.Close()

	req := httptest.NewRequest(http.MethodPost, "/csm", &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	fmt.Println(w.Code, len(st.Feedbacks()))
	// Output: 200 1
}

func ExampleServer_PingHandler() {
	srv := NewServer(inmemory.NewMemStorage(), &config.ServerConfig{})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	fmt.Println(w.Code)
	// Output: 200
}

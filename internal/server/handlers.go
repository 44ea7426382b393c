package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/and161185/csm-transport/model"
)

var (
	ErrNoFeedbacks     = errors.New("request has no feedbacks")
	ErrNoImpressionID  = errors.New("slot without impressionId")
	ErrNoLogs          = errors.New("request has no log records")
	errUnsupportedType = errors.New("unsupported content type")
)

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// MetricsHandler stores a batch of CSM feedbacks.
func (srv *Server) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		srv.reject(w, "/csm", errUnsupportedType, http.StatusUnsupportedMediaType)
		return
	}

	var req model.MetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		srv.reject(w, "/csm", err, http.StatusBadRequest)
		return
	}
	if err := checkMetricRequest(req); err != nil {
		srv.reject(w, "/csm", err, http.StatusBadRequest)
		return
	}

	if err := srv.storage.SaveMetrics(r.Context(), req); err != nil {
		srv.logger.Errorf("failed to save %d feedbacks: %v", len(req.Feedbacks), err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	feedbacksReceived.Add(float64(len(req.Feedbacks)))
	w.WriteHeader(http.StatusOK)
}

func checkMetricRequest(req model.MetricRequest) error {
	if len(req.Feedbacks) == 0 {
		return ErrNoFeedbacks
	}
	for _, fb := range req.Feedbacks {
		for _, slot := range fb.Slots {
			if slot.ImpressionID == "" {
				return ErrNoImpressionID
			}
		}
	}
	return nil
}

// LogsHandler stores a batch of remote log records.
func (srv *Server) LogsHandler(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		srv.reject(w, "/logs", errUnsupportedType, http.StatusUnsupportedMediaType)
		return
	}

	var logs []model.RemoteLogRecords
	if err := json.NewDecoder(r.Body).Decode(&logs); err != nil {
		srv.reject(w, "/logs", err, http.StatusBadRequest)
		return
	}
	if len(logs) == 0 {
		srv.reject(w, "/logs", ErrNoLogs, http.StatusBadRequest)
		return
	}

	if err := srv.storage.SaveLogs(r.Context(), logs); err != nil {
		srv.logger.Errorf("failed to save %d log batches: %v", len(logs), err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for _, batch := range logs {
		for _, rec := range batch.Logs {
			logMessagesReceived.WithLabelValues(string(rec.Level)).Add(float64(len(rec.Messages)))
		}
	}
	w.WriteHeader(http.StatusOK)
}

// PingHandler reports whether the storage is reachable.
func (srv *Server) PingHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.storage.Ping(r.Context()); err != nil {
		srv.logger.Errorf("storage ping failed: %v", err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// StatsHandler returns how many records the storage holds.
func (srv *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := srv.storage.Stats(r.Context())
	if err != nil {
		srv.logger.Errorf("failed to read stats: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		srv.logger.Errorf("failed to write response JSON: %v", err)
	}
}

func (srv *Server) reject(w http.ResponseWriter, path string, err error, code int) {
	requestsRejected.WithLabelValues(path, http.StatusText(code)).Inc()
	srv.logger.Warnf("rejected %s: %v", path, err)
	http.Error(w, err.Error(), code)
}

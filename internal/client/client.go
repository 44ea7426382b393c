// Package client sends polled CSM batches and remote logs to the collector.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/and161185/csm-transport/internal/config"
	"github.com/and161185/csm-transport/internal/utils"
	"github.com/and161185/csm-transport/model"
	"go.uber.org/zap"
)

const (
	metricsPath = "/csm"
	logsPath    = "/logs"
)

// Client posts gzip JSON payloads to the collector.
type Client struct {
	config     *config.AgentConfig
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewClient creates a client with an http.Client built from cfg.
func NewClient(cfg *config.AgentConfig) *Client {
	return NewClientWithHTTP(cfg, NewHTTPClient(cfg))
}

// NewClientWithHTTP creates a client over a ready http.Client.
func NewClientWithHTTP(cfg *config.AgentConfig, hc *http.Client) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{config: cfg, httpClient: hc, logger: logger}
}

// NewHTTPClient builds the http.Client used by NewClient.
func NewHTTPClient(cfg *config.AgentConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.RateLimit > 0 {
		transport.MaxConnsPerHost = cfg.RateLimit
	}
	return &http.Client{
		Timeout:   time.Duration(cfg.ClientTimeout) * time.Second,
		Transport: transport,
	}
}

// SendMetrics posts one batch of metrics as a MetricRequest.
func (c *Client) SendMetrics(ctx context.Context, metrics []model.Metric) error {
	if len(metrics) == 0 {
		return nil
	}
	req := model.NewMetricRequest(metrics, c.config.WrapperVersion, c.config.ProfileID)
	if err := c.postGzipJSON(ctx, metricsPath, req); err != nil {
		return fmt.Errorf("send %d metrics: %w", len(metrics), err)
	}
	return nil
}

// SendLogs posts one batch of remote log records.
func (c *Client) SendLogs(ctx context.Context, logs []model.RemoteLogRecords) error {
	if len(logs) == 0 {
		return nil
	}
	if err := c.postGzipJSON(ctx, logsPath, logs); err != nil {
		return fmt.Errorf("send %d log batches: %w", len(logs), err)
	}
	return nil
}

func (c *Client) postGzipJSON(ctx context.Context, path string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	if _, err = zw.Write(raw); err != nil {
		return fmt.Errorf("gzip write: %w", err)
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("gzip close: %w", err)
	}

	var hash string
	if c.config.Key != "" {
		hash = utils.CalculateHash(body.Bytes(), c.config.Key)
	}

	return utils.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ServerAddr+path, bytes.NewReader(body.Bytes()))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Content-Encoding", "gzip")
		if hash != "" {
			req.Header.Set(utils.HashHeader, hash)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Debugf("post %s: %v", path, err)
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode != http.StatusOK {
			return &utils.StatusError{Code: resp.StatusCode}
		}
		return nil
	})
}

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/logger"
)

// HTTPSource fetches records from a JSON REST endpoint.
type HTTPSource struct {
	url     string
	headers map[string]string
	client  *http.Client
	log     logger.Log
}

// HTTPConfig configures an HTTP source.
type HTTPConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`

	ConnectionTimeout int `json:"connectionTimeout,omitempty"` // seconds
	ResponseTimeout   int `json:"responseTimeout,omitempty"`   // seconds
}

// NewHTTPSource creates a new HTTP source.
func NewHTTPSource(cfg HTTPConfig, log logger.Log) (*HTTPSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("source URL is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	connectionTimeout := 30 * time.Second
	responseTimeout := 60 * time.Second
	if cfg.ConnectionTimeout > 0 {
		connectionTimeout = time.Duration(cfg.ConnectionTimeout) * time.Second
	}
	if cfg.ResponseTimeout > 0 {
		responseTimeout = time.Duration(cfg.ResponseTimeout) * time.Second
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: responseTimeout,
		DialContext:           (&net.Dialer{Timeout: connectionTimeout}).DialContext,
	}

	return &HTTPSource{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Transport: transport},
		log:     log,
	}, nil
}

// Fetch performs one GET against the configured URL and unwraps the
// response into a record batch.
func (s *HTTPSource) Fetch(ctx context.Context) ([]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build source request: %w", err)
	}
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	s.log.Debugf("Fetching source records from %s", s.url)

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("source returned status %d: %s", res.StatusCode, string(detail))
	}

	var body any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode source response: %w", err)
	}

	records := UnwrapRecords(body)
	s.log.Infof("Fetched %d source records", len(records))
	return records, nil
}

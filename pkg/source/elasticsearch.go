package source

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v7"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/logger"
)

// ElasticsearchSource reads documents from an Elasticsearch index. Each
// record is the document _source with the _id merged in, so mappings can
// reference the document id like any other field.
type ElasticsearchSource struct {
	client *elasticsearch.Client
	index  string
	limit  int
	log    logger.Log
}

// ElasticsearchConfig configures an Elasticsearch source.
type ElasticsearchConfig struct {
	Addresses []string `json:"addresses"`
	Username  string   `json:"username,omitempty"`
	Password  string   `json:"password,omitempty"`
	APIKey    string   `json:"apiKey,omitempty"`
	Index     string   `json:"index"`
	Limit     int      `json:"limit,omitempty"`

	// HTTPS configuration
	TLS                    bool   `json:"tls,omitempty"`
	CACertPath             string `json:"caCertPath,omitempty"`
	SkipVerify             bool   `json:"skipVerify,omitempty"`
	CertificateFingerprint string `json:"certificateFingerprint,omitempty"`
	ConnectionTimeout      int    `json:"connectionTimeout,omitempty"` // seconds
	ResponseTimeout        int    `json:"responseTimeout,omitempty"`   // seconds
}

// NewElasticsearchSource creates a new Elasticsearch source.
func NewElasticsearchSource(cfg ElasticsearchConfig, log logger.Log) (*ElasticsearchSource, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("at least one Elasticsearch address is required")
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("an Elasticsearch index is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	esConfig := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	}

	if cfg.APIKey != "" {
		log.Infof("Using API key authentication for Elasticsearch")
	} else if cfg.Username != "" && cfg.Password != "" {
		log.Infof("Using username/password authentication for Elasticsearch")
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

	if cfg.TLS {
		transport.TLSClientConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.SkipVerify,
		}
		if cfg.CertificateFingerprint != "" {
			esConfig.CertificateFingerprint = cfg.CertificateFingerprint
		}
		if cfg.CACertPath != "" {
			caCert, err := os.ReadFile(cfg.CACertPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA certificate: %w", err)
			}
			esConfig.CACert = caCert
		}
	}
	esConfig.Transport = transport

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = 1000
	}

	return &ElasticsearchSource{
		client: client,
		index:  cfg.Index,
		limit:  limit,
		log:    log,
	}, nil
}

// Fetch runs a match_all search capped at the configured limit.
func (s *ElasticsearchSource) Fetch(ctx context.Context) ([]any, error) {
	query := strings.NewReader(`{"query":{"match_all":{}}}`)

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithSize(s.limit),
		s.client.Search.WithBody(query),
	)
	if err != nil {
		return nil, fmt.Errorf("Elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("Elasticsearch search returned %s: %s", res.Status(), string(detail))
	}

	var body struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode Elasticsearch response: %w", err)
	}

	records := make([]any, 0, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		record := make(map[string]any, len(hit.Source)+1)
		for key, value := range hit.Source {
			record[key] = value
		}
		record["_id"] = hit.ID
		records = append(records, record)
	}

	s.log.Infof("Fetched %d documents from index %s", len(records), s.index)
	return records, nil
}

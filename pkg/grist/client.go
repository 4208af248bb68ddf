package grist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/common"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/logger"
)

const defaultFetchLimit = 1000

// Client talks to one table of one Grist document over the REST API.
type Client struct {
	baseURL    string
	docID      string
	tableID    string
	apiKey     string
	httpClient *http.Client
	log        logger.Log
}

// ClientConfig configures a Grist client.
type ClientConfig struct {
	BaseURL string // e.g. https://docs.getgrist.com
	DocID   string
	TableID string
	APIKey  string // empty for public documents

	ConnectionTimeout int // seconds, 0 for default
	ResponseTimeout   int // seconds, 0 for default
}

// NewClient creates a new Grist API client.
func NewClient(cfg ClientConfig, log logger.Log) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, common.NewConfigurationError("Grist base URL is required")
	}
	if cfg.DocID == "" {
		return nil, common.NewConfigurationError("Grist document id is required")
	}
	if cfg.TableID == "" {
		return nil, common.NewConfigurationError("Grist table id is required")
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

	if cfg.APIKey == "" {
		log.Infof("No Grist API key configured, using public document access")
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		docID:      cfg.DocID,
		tableID:    cfg.TableID,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Transport: transport},
		log:        log,
	}, nil
}

// TableURL returns the API URL for the configured table.
func (c *Client) TableURL() string {
	return fmt.Sprintf("%s/api/docs/%s/tables/%s", c.baseURL, c.docID, c.tableID)
}

// Records fetches existing records from the table. A limit of zero uses the
// default fetch limit.
func (c *Client) Records(ctx context.Context, limit int) ([]common.Record, error) {
	if limit <= 0 {
		limit = defaultFetchLimit
	}

	endpoint := fmt.Sprintf("%s/records?limit=%d", c.TableURL(), limit)

	var response struct {
		Records []common.Record `json:"records"`
	}
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return response.Records, nil
}

// Columns fetches the table's current columns.
func (c *Client) Columns(ctx context.Context) ([]common.Column, error) {
	endpoint := c.TableURL() + "/columns"

	var response struct {
		Columns []struct {
			ID     string `json:"id"`
			Fields struct {
				ColID string `json:"colId"`
				Label string `json:"label"`
				Type  string `json:"type"`
			} `json:"fields"`
		} `json:"columns"`
	}
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	columns := make([]common.Column, 0, len(response.Columns))
	for _, col := range response.Columns {
		columns = append(columns, common.Column{
			ID:    col.ID,
			Label: col.Fields.Label,
			Type:  common.ColumnType(col.Fields.Type),
		})
	}
	return columns, nil
}

// AddColumns creates the given columns on the table.
func (c *Client) AddColumns(ctx context.Context, columns []common.Column) error {
	if len(columns) == 0 {
		return common.NewConfigurationError("empty column batch passed to AddColumns")
	}

	type columnFields struct {
		ColID string `json:"colId"`
		Label string `json:"label"`
		Type  string `json:"type"`
	}
	type columnEntry struct {
		ID     string       `json:"id"`
		Fields columnFields `json:"fields"`
	}

	body := struct {
		Columns []columnEntry `json:"columns"`
	}{}
	for _, col := range columns {
		body.Columns = append(body.Columns, columnEntry{
			ID: col.ID,
			Fields: columnFields{
				ColID: col.ID,
				Label: col.Label,
				Type:  string(col.Type),
			},
		})
	}

	return c.doRequest(ctx, http.MethodPost, c.TableURL()+"/columns", body, nil)
}

// AddRecords inserts rows into the table and returns the ids assigned by
// the destination.
func (c *Client) AddRecords(ctx context.Context, rows []common.MappedRow) ([]int64, error) {
	if len(rows) == 0 {
		return nil, common.NewConfigurationError("empty record batch passed to AddRecords")
	}

	type recordEntry struct {
		Fields common.MappedRow `json:"fields"`
	}
	body := struct {
		Records []recordEntry `json:"records"`
	}{}
	for _, row := range rows {
		body.Records = append(body.Records, recordEntry{Fields: row})
	}

	var response struct {
		Records []struct {
			ID int64 `json:"id"`
		} `json:"records"`
	}
	if err := c.doRequest(ctx, http.MethodPost, c.TableURL()+"/records", body, &response); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(response.Records))
	for _, rec := range response.Records {
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

// UpdateRecords patches existing records in place.
func (c *Client) UpdateRecords(ctx context.Context, updates []common.RecordUpdate) error {
	if len(updates) == 0 {
		return common.NewConfigurationError("empty record batch passed to UpdateRecords")
	}

	body := struct {
		Records []common.RecordUpdate `json:"records"`
	}{Records: updates}

	return c.doRequest(ctx, http.MethodPatch, c.TableURL()+"/records", body, nil)
}

// doRequest performs one API call. Any network failure or non-2xx status is
// returned as a TransportError.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any, response any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.log.Debugf("Grist %s %s", method, endpoint)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + pathOf(endpoint), Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &TransportError{
			Op:         method + " " + pathOf(endpoint),
			StatusCode: res.StatusCode,
			Detail:     strings.TrimSpace(string(detail)),
		}
	}

	if response == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(response); err != nil {
		return &TransportError{Op: method + " " + pathOf(endpoint), Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func pathOf(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil {
		return u.Path
	}
	return endpoint
}

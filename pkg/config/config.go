package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/common"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/grist"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/source"
)

// Config represents the main configuration structure
type Config struct {
	// Source configuration
	Source SourceConfig `json:"source"`

	// Destination Grist configuration
	Destination DestinationConfig `json:"destination"`

	// Sync behavior
	Sync common.SyncConfig `json:"sync"`

	// Field mappings applied in order; a later mapping to the same
	// destination column overwrites an earlier one
	Mappings []common.FieldMapping `json:"mappings"`

	// Retry configuration. Parsed and defaulted for forward compatibility;
	// the reconciliation path does not enforce it.
	RetryConfig RetryConfig `json:"retryConfig"`
}

// RetryConfig represents retry configuration
type RetryConfig struct {
	MaxRetries  int `json:"maxRetries"`  // Maximum number of retries
	BaseDelayMs int `json:"baseDelayMs"` // Base delay in milliseconds
	MaxDelayMs  int `json:"maxDelayMs"`  // Maximum delay in milliseconds
}

// SourceConfig selects and configures one source adapter
type SourceConfig struct {
	Type string `json:"type"` // "http", "file", "elasticsearch" or "mongodb"

	HTTP          source.HTTPConfig          `json:"http,omitempty"`
	File          string                     `json:"file,omitempty"`
	Elasticsearch source.ElasticsearchConfig `json:"elasticsearch,omitempty"`
	MongoDB       source.MongoConfig         `json:"mongodb,omitempty"`
}

// DestinationConfig represents the target Grist document configuration.
// URL may be any Grist document URL; explicit BaseURL/DocID/TableID fields
// take precedence over values derived from it.
type DestinationConfig struct {
	URL     string `json:"url,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
	DocID   string `json:"docId,omitempty"`
	TableID string `json:"tableId,omitempty"`
	APIKey  string `json:"apiKey,omitempty"` // falls back to GRIST_API_KEY

	ConnectionTimeout int `json:"connectionTimeout,omitempty"` // seconds
	ResponseTimeout   int `json:"responseTimeout,omitempty"`   // seconds
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	// Set default config path if not provided
	if configPath == "" {
		configPath = "grist_sync_config.json"
	}

	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse the config
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	applyDefaults(&config)

	// Validate the config
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Sync.Mode == "" {
		config.Sync.Mode = common.ModeUpsert
	}

	if config.Sync.FetchLimit <= 0 {
		config.Sync.FetchLimit = 1000
	}

	// The destination API key may come from the environment instead of the
	// config file, so it never has to be committed next to the mappings.
	if config.Destination.APIKey == "" {
		config.Destination.APIKey = os.Getenv("GRIST_API_KEY")
	}

	if config.Source.Type == "" {
		config.Source.Type = "http"
	}

	// Retry defaults are kept for configs that carry them, although the
	// sync path performs no automatic retry.
	if config.RetryConfig.MaxRetries <= 0 {
		config.RetryConfig.MaxRetries = 3
	}
	if config.RetryConfig.BaseDelayMs <= 0 {
		config.RetryConfig.BaseDelayMs = 100
	}
	if config.RetryConfig.MaxDelayMs <= 0 {
		config.RetryConfig.MaxDelayMs = 5000
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	// Validate source config
	switch config.Source.Type {
	case "http":
		if config.Source.HTTP.URL == "" {
			return fmt.Errorf("a source URL is required for the http source")
		}
	case "file":
		if config.Source.File == "" {
			return fmt.Errorf("a file path is required for the file source")
		}
	case "elasticsearch":
		if len(config.Source.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("at least one address is required for the elasticsearch source")
		}
		if config.Source.Elasticsearch.Index == "" {
			return fmt.Errorf("an index is required for the elasticsearch source")
		}
	case "mongodb":
		if config.Source.MongoDB.ConnectionString == "" {
			return fmt.Errorf("a connection string is required for the mongodb source")
		}
		if config.Source.MongoDB.Database == "" || config.Source.MongoDB.Collection == "" {
			return fmt.Errorf("a database and collection are required for the mongodb source")
		}
	default:
		return fmt.Errorf("invalid source type %q: must be 'http', 'file', 'elasticsearch' or 'mongodb'", config.Source.Type)
	}

	// Validate destination config: a document URL or explicit fields
	if err := resolveDestination(&config.Destination); err != nil {
		return err
	}

	// Validate sync config
	switch config.Sync.Mode {
	case common.ModeAdd, common.ModeUpdate, common.ModeUpsert:
	default:
		return fmt.Errorf("invalid sync mode %q: must be 'add', 'update' or 'upsert'", config.Sync.Mode)
	}

	if config.Sync.Mode != common.ModeAdd && config.Sync.UniqueKey == "" {
		return fmt.Errorf("a uniqueKey is required for sync mode %q", config.Sync.Mode)
	}

	// Validate mappings
	for i, mapping := range config.Mappings {
		if !mapping.IsEnabled() {
			continue
		}
		if mapping.DestinationColumn == "" {
			return fmt.Errorf("destinationColumn is required for mapping at index %d", i)
		}
		if mapping.SourcePath == "" {
			return fmt.Errorf("sourcePath is required for mapping at index %d", i)
		}
	}

	return nil
}

// resolveDestination fills BaseURL/DocID/TableID from the document URL when
// they are not set explicitly. Explicit fields always win.
func resolveDestination(dest *DestinationConfig) error {
	if dest.URL != "" {
		if endpoint := grist.ResolveDocURL(dest.URL); endpoint != nil {
			if dest.BaseURL == "" {
				dest.BaseURL = endpoint.BaseURL
			}
			if dest.DocID == "" {
				dest.DocID = endpoint.DocID
			}
			if dest.TableID == "" {
				dest.TableID = endpoint.TableID
			}
		}
	}

	if dest.BaseURL == "" {
		return fmt.Errorf("a destination base URL is required (set destination.baseUrl or a parseable destination.url)")
	}
	if dest.DocID == "" {
		return fmt.Errorf("a destination document id is required (set destination.docId or a parseable destination.url)")
	}
	if dest.TableID == "" {
		return fmt.Errorf("a destination table id is required (set destination.tableId or a destination.url with a table)")
	}
	return nil
}

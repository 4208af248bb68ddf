package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/common"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/config"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/grist"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/logger"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/mapper"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/source"
	syncer "github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/sync"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "grist_sync_config.json", "Path to configuration file")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	dryRun := flag.Bool("dry-run", false, "Classify rows and report without writing to the destination")
	generateMappings := flag.Bool("generate-mappings", false, "Fetch a sample record and print candidate field mappings as JSON")
	help := flag.Bool("help", false, "Display help information")
	flag.Parse()

	// Display help if requested
	if *help {
		displayUsage()
		os.Exit(0)
	}

	// Create logger
	log := logger.New()
	log.SetLevel(*logLevel)

	// Load configuration
	log.Info("Loading configuration...")
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dryRun {
		cfg.Sync.DryRun = true
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Info("Received interrupt signal. Shutting down...")
		cancel()
		// Give some time for graceful shutdown
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()

	// Fetch source records
	src, cleanup, err := buildSource(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to create source: %v", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	records, err := src.Fetch(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch source records: %v", err)
	}

	if *generateMappings {
		printCandidateMappings(log, records)
		return
	}

	// Map records to flat rows
	rows := mapper.NewRecordMapper(cfg.Mappings, log).MapRecords(records)

	// Create destination client
	dest, err := grist.NewClient(grist.ClientConfig{
		BaseURL:           cfg.Destination.BaseURL,
		DocID:             cfg.Destination.DocID,
		TableID:           cfg.Destination.TableID,
		APIKey:            cfg.Destination.APIKey,
		ConnectionTimeout: cfg.Destination.ConnectionTimeout,
		ResponseTimeout:   cfg.Destination.ResponseTimeout,
	}, log)
	if err != nil {
		log.Fatalf("Failed to create Grist client: %v", err)
	}

	// Run the sync
	startTime := time.Now()
	engine := syncer.NewSyncer(cfg.Sync, dest, log)

	if cfg.Sync.DryRun {
		result, err := engine.DryRun(ctx, rows)
		if err != nil {
			log.Fatalf("Dry run failed: %v", err)
		}
		printJSON(log, result)
	} else {
		result, err := engine.Sync(ctx, rows)
		if err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
		printJSON(log, result)
		if result.Errors > 0 {
			os.Exit(1)
		}
	}

	duration := time.Since(startTime)
	log.Infof("Completed in %.2f seconds", duration.Seconds())
}

// buildSource creates the configured source adapter. The returned cleanup
// function, when non-nil, must run after the fetch.
func buildSource(ctx context.Context, cfg *config.Config, log logger.Log) (source.Source, func(), error) {
	switch cfg.Source.Type {
	case "http":
		src, err := source.NewHTTPSource(cfg.Source.HTTP, log)
		return src, nil, err
	case "file":
		src, err := source.NewFileSource(cfg.Source.File, log)
		return src, nil, err
	case "elasticsearch":
		src, err := source.NewElasticsearchSource(cfg.Source.Elasticsearch, log)
		return src, nil, err
	case "mongodb":
		src, err := source.NewMongoSource(ctx, cfg.Source.MongoDB, log)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := src.Close(context.Background()); err != nil {
				log.Errorf("Error closing MongoDB connection: %v", err)
			}
		}
		return src, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

// printCandidateMappings walks the first source record and prints one
// enabled candidate mapping per reachable path, ready to paste into the
// config file.
func printCandidateMappings(log *logger.Logger, records []any) {
	if len(records) == 0 {
		log.Fatalf("Source returned no records to sample")
	}

	mappings := mapper.GenerateMappingsFromSample(records[0], 0)
	data, err := json.MarshalIndent(struct {
		Mappings []common.FieldMapping `json:"mappings"`
	}{Mappings: mappings}, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode mappings: %v", err)
	}
	fmt.Println(string(data))
}

func printJSON(log *logger.Logger, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Errorf("Failed to encode result: %v", err)
		return
	}
	fmt.Println(string(data))
}

// displayUsage displays usage information
func displayUsage() {
	fmt.Println("\nGrist Table Sync Tool")
	fmt.Println("=====================")
	fmt.Println("Usage: sync [options]")
	fmt.Println("Options:")
	fmt.Println("  -config string")
	fmt.Println("        Path to configuration file (default \"grist_sync_config.json\")")
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: debug, info, warn, error (default \"info\")")
	fmt.Println("  -dry-run")
	fmt.Println("        Classify rows and report without writing to the destination")
	fmt.Println("  -generate-mappings")
	fmt.Println("        Fetch a sample record and print candidate field mappings")
	fmt.Println("  -help")
	fmt.Println("        Display this help information")
	fmt.Println("Examples:")
	fmt.Println("  sync")
	fmt.Println("  sync -config=custom_config.json -dry-run")
}

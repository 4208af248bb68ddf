package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/logger"
)

// FileSource reads records from a local JSON file. Useful for one-off loads
// and for testing a mapping before pointing at a live API.
type FileSource struct {
	path string
	log  logger.Log
}

// NewFileSource creates a new file source.
func NewFileSource(path string, log logger.Log) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("source file path is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FileSource{path: path, log: log}, nil
}

// Fetch reads and unwraps the file contents.
func (s *FileSource) Fetch(ctx context.Context) ([]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}

	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to parse source file: %w", err)
	}

	records := UnwrapRecords(body)
	s.log.Infof("Read %d source records from %s", len(records), s.path)
	return records, nil
}

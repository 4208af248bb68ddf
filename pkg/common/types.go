package common

// SyncMode selects how incoming rows are reconciled against the destination.
type SyncMode string

const (
	ModeAdd    SyncMode = "add"
	ModeUpdate SyncMode = "update"
	ModeUpsert SyncMode = "upsert"
)

// SyncConfig controls a single sync run.
type SyncConfig struct {
	Mode              SyncMode `json:"mode"`
	UniqueKey         string   `json:"uniqueKey,omitempty"`
	AutoCreateColumns bool     `json:"autoCreateColumns"`
	DryRun            bool     `json:"dryRun"`

	// FetchLimit caps how many existing destination records are fetched
	// for classification. Zero means the destination default.
	FetchLimit int `json:"fetchLimit,omitempty"`
}

// ColumnType is a destination column type.
type ColumnType string

const (
	TypeText     ColumnType = "Text"
	TypeInt      ColumnType = "Int"
	TypeNumeric  ColumnType = "Numeric"
	TypeBool     ColumnType = "Bool"
	TypeDateTime ColumnType = "DateTime"
)

// Column describes an existing destination column.
type Column struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Type  ColumnType `json:"type"`
}

// Record is a destination record. ID is assigned by the destination and is
// never written by the engine; correlation uses the unique-key value.
type Record struct {
	ID     int64          `json:"id"`
	Fields map[string]any `json:"fields"`
}

// RecordUpdate is a pending update for one destination record.
type RecordUpdate struct {
	ID     int64          `json:"id"`
	Fields map[string]any `json:"fields"`
}

// FieldChange captures one differing field for dry-run reporting.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// UpdateCandidate is a classified row that matched an existing record but
// differs in at least one field.
type UpdateCandidate struct {
	ID      int64                  `json:"id"`
	Fields  MappedRow              `json:"fields"`
	Changes map[string]FieldChange `json:"changes"`
}

// MatchedRow is a classified row that matched an existing record with no
// differences.
type MatchedRow struct {
	ID     int64     `json:"id"`
	Fields MappedRow `json:"fields"`
}

// SyncResult summarizes a mutating sync run. Details preserves the order in
// which events happened.
type SyncResult struct {
	Added     int      `json:"added"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Errors    int      `json:"errors"`
	Details   []string `json:"details"`
}

// DryRunSummary holds the counts for a dry run.
type DryRunSummary struct {
	ToAdd     int `json:"toAdd"`
	ToUpdate  int `json:"toUpdate"`
	Unchanged int `json:"unchanged"`
}

// DryRunResult reports the full classification of a dry run. No mutating
// destination call is issued to produce it.
type DryRunResult struct {
	ToAdd     []MappedRow       `json:"toAdd"`
	ToUpdate  []UpdateCandidate `json:"toUpdate"`
	Unchanged []MatchedRow      `json:"unchanged"`
	Summary   DryRunSummary     `json:"summary"`
}

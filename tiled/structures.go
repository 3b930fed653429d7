package tiled

import (
	"github.com/segmentio/encoding/json"
)

// AppMetadata is the server self-description from /api/v1/.
type AppMetadata struct {
	APIVersion int64           `json:"api_version"`
	Meta       json.RawMessage `json:"meta"`
}

// ArrayStructure describes the shape of an array node.
type ArrayStructure struct {
	Shape    []int64         `json:"shape"`
	Chunks   json.RawMessage `json:"chunks"`
	DataType json.RawMessage `json:"data_type"`
}

// TableStructure describes a table node.
type TableStructure struct {
	Columns     []string `json:"columns"`
	NPartitions int64    `json:"npartitions"`
}

// ContainerMetadata is the bluesky metadata attached to a run container.
type ContainerMetadata struct {
	Start *StartDoc `json:"start"`
	Stop  *StopDoc  `json:"stop"`
}

// StartDoc is the bluesky start document for a run.
type StartDoc struct {
	UID               string  `json:"uid"`
	ScanID            int64   `json:"scan_id"`
	Time              float64 `json:"time"`
	InstrumentSession string  `json:"instrument_session"`
}

// StopDoc is the bluesky stop document for a run.
type StopDoc struct {
	ExitStatus string           `json:"exit_status"`
	Time       float64          `json:"time"`
	NumEvents  map[string]int64 `json:"num_events"`
}

// Table is the JSON form of a full table read: column name to values.
type Table map[string][]json.RawMessage

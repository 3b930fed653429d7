package tiled

import (
	"github.com/segmentio/encoding/json"
)

// Root is the envelope returned by search endpoints. Entries that cannot be
// decoded are dropped rather than failing the whole response: Tiled catalogs
// can contain nodes written by newer servers or broken ingests, and one bad
// run must not hide the rest of a session.
type Root struct {
	Data  []Data
	Links *Links
	Meta  json.RawMessage
}

func (r *Root) UnmarshalJSON(b []byte) error {
	var envelope struct {
		Data  []json.RawMessage `json:"data"`
		Links *Links            `json:"links"`
		Meta  json.RawMessage   `json:"meta"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return err
	}

	r.Links = envelope.Links
	r.Meta = envelope.Meta
	r.Data = make([]Data, 0, len(envelope.Data))
	for _, raw := range envelope.Data {
		var d Data
		if err := json.Unmarshal(raw, &d); err != nil {
			continue
		}
		r.Data = append(r.Data, d)
	}
	return nil
}

// Metadata is the envelope returned by the metadata endpoint.
type Metadata struct {
	Data  Data            `json:"data"`
	Links *Links          `json:"links"`
	Meta  json.RawMessage `json:"meta"`
}

// Data is a single catalog node.
type Data struct {
	ID         string     `json:"id"`
	Attributes Attributes `json:"attributes"`
	Links      *Links     `json:"links"`
}

// StructureFamily discriminates node attribute layouts.
type StructureFamily string

const (
	FamilyContainer StructureFamily = "container"
	FamilyArray     StructureFamily = "array"
	FamilyTable     StructureFamily = "table"
)

// Attributes holds the family-independent parts of a node decoded, with the
// family-specific structure and metadata kept raw until a caller asks for
// the typed view.
type Attributes struct {
	StructureFamily StructureFamily `json:"structure_family"`
	Ancestors       []string        `json:"ancestors"`
	Specs           []Spec          `json:"specs"`
	Metadata        json.RawMessage `json:"metadata"`
	Structure       json.RawMessage `json:"structure"`
	Sorting         []Sorting       `json:"sorting"`
	DataSources     []DataSource    `json:"data_sources"`
}

// ArrayStructure decodes the structure of an array node.
func (a Attributes) ArrayStructure() (ArrayStructure, error) {
	var s ArrayStructure
	err := json.Unmarshal(a.Structure, &s)
	return s, err
}

// TableStructure decodes the structure of a table node.
func (a Attributes) TableStructure() (TableStructure, error) {
	var s TableStructure
	err := json.Unmarshal(a.Structure, &s)
	return s, err
}

// ContainerMetadata decodes the metadata of a container node. Nodes without
// a start document yield a zero value.
func (a Attributes) ContainerMetadata() (ContainerMetadata, error) {
	var m ContainerMetadata
	if len(a.Metadata) == 0 {
		return m, nil
	}
	err := json.Unmarshal(a.Metadata, &m)
	return m, err
}

// Assets flattens the assets of every data source on the node.
func (a Attributes) Assets() []Asset {
	var assets []Asset
	for _, source := range a.DataSources {
		assets = append(assets, source.Assets...)
	}
	return assets
}

type Spec struct {
	Name    string  `json:"name"`
	Version *string `json:"version"`
}

type Sorting struct {
	Key       string `json:"key"`
	Direction int64  `json:"direction"`
}

// DataSource describes where a node's bytes live.
type DataSource struct {
	ID         *int64                     `json:"id"`
	Mimetype   *string                    `json:"mimetype"`
	Parameters map[string]json.RawMessage `json:"parameters"`
	Structure  json.RawMessage            `json:"structure"`
	Assets     []Asset                    `json:"assets"`
	Management Management                 `json:"management"`
}

// Management describes who owns a data source's files.
type Management string

const (
	ManagementExternal  Management = "external"
	ManagementImmutable Management = "immutable"
	ManagementLocked    Management = "locked"
	ManagementWritable  Management = "writable"
)

// Asset is one file (or directory) backing a data source.
type Asset struct {
	DataURI     string  `json:"data_uri"`
	IsDirectory bool    `json:"is_directory"`
	Parameter   *string `json:"parameter"`
	Num         *int64  `json:"num"`
	ID          *int64  `json:"id"`
}

type Links struct {
	Self          string  `json:"self"`
	Documentation *string `json:"documentation"`
	First         *string `json:"first"`
	Last          *string `json:"last"`
	Next          *string `json:"next"`
	Prev          *string `json:"prev"`
	Search        *string `json:"search"`
	Full          *string `json:"full"`
	Block         *string `json:"block"`
	Partition     *string `json:"partition"`
}

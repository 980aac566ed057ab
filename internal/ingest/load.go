package ingest

import (
	"fmt"

	"github.com/KaramelBytes/sigloom-cli/internal/measure"
)

// LoadOptions bundles the settings of one ingestion pass.
type LoadOptions struct {
	Read ReadOptions
	// Overrides are "field=column" edits applied on top of the proposed mapping.
	Overrides []string
	Normalize Options
}

// Pass is the outcome of one ingestion: the raw table, the mapping actually
// used, normalization stats, and the dataset built from them.
type Pass struct {
	Table   *Table
	Mapping FieldMapping
	Result  *Result
	Dataset *measure.Dataset
}

// Load reads CSV bytes, proposes a mapping, applies overrides and normalizes.
func Load(name string, data []byte, opt LoadOptions) (*Pass, error) {
	t, err := ReadTable(name, data, opt.Read)
	if err != nil {
		return nil, err
	}
	return build(t, opt)
}

// LoadFile is Load over a file on disk.
func LoadFile(path string, opt LoadOptions) (*Pass, error) {
	t, err := ReadFile(path, opt.Read)
	if err != nil {
		return nil, err
	}
	return build(t, opt)
}

func build(t *Table, opt LoadOptions) (*Pass, error) {
	mapping := Propose(t.Headers)
	if err := mapping.Apply(opt.Overrides, t.Headers); err != nil {
		return nil, fmt.Errorf("column mapping: %w", err)
	}
	res, err := Normalize(t, mapping, opt.Normalize)
	if err != nil {
		return nil, err
	}
	return &Pass{
		Table:   t,
		Mapping: mapping,
		Result:  res,
		Dataset: measure.NewDataset(t.Name, t.Headers, mapping, res.Records),
	}, nil
}

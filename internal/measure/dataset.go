package measure

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Dataset is the output of one ingestion pass. It is never mutated after
// construction; re-ingestion builds a new Dataset.
type Dataset struct {
	ID         string           `json:"id"`
	Source     string           `json:"source"`
	Headers    []string         `json:"headers"`
	Mapping    map[Field]string `json:"mapping"`
	Records    []Record         `json:"-"`
	IngestedAt time.Time        `json:"ingestedAt"`
}

// NewDataset stamps a fresh ID and ingestion time.
func NewDataset(source string, headers []string, mapping map[Field]string, records []Record) *Dataset {
	m := make(map[Field]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return &Dataset{
		ID:         uuid.NewString(),
		Source:     source,
		Headers:    append([]string(nil), headers...),
		Mapping:    m,
		Records:    records,
		IngestedAt: time.Now().UTC(),
	}
}

// Len returns the number of records; nil-safe.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Store holds the current dataset. Replace swaps it as a unit, so readers see
// either the previous or the new dataset, never a mix.
type Store struct {
	cur atomic.Pointer[Dataset]
}

// Load returns the current snapshot, or nil before the first ingestion.
func (s *Store) Load() *Dataset { return s.cur.Load() }

// Replace installs ds and returns the previous dataset.
func (s *Store) Replace(ds *Dataset) *Dataset { return s.cur.Swap(ds) }

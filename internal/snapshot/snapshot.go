// Package snapshot holds the in-memory form of one billing export: a
// read-only mapping from entity-type name to an ordered list of records.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Entity-type names as they appear at the top level of an export.
const (
	EntityInvoices       = "invoices"
	EntityCustomers      = "customers"
	EntitySubscriptions  = "subscriptions"
	EntityProducts       = "products"
	EntityPrices         = "prices"
	EntityPaymentMethods = "payment_methods"
	EntityPaymentIntents = "payment_intents"
	EntityCharges        = "charges"
)

// ErrMissingEntity is returned when a required top-level entity list is
// absent. It signals a malformed export and should abort the run.
var ErrMissingEntity = errors.New("snapshot: required entity list missing")

// Snapshot is one full point-in-time export. It is never mutated after
// construction.
type Snapshot struct {
	entities map[string][]Value
}

// New builds a Snapshot from entity lists. Slices are copied.
func New(entities map[string][]Value) *Snapshot {
	cp := make(map[string][]Value, len(entities))
	for name, records := range entities {
		rs := make([]Value, len(records))
		copy(rs, records)
		cp[name] = rs
	}
	return &Snapshot{entities: cp}
}

// Decode reads a JSON export: a top-level object whose values are arrays of
// records. Top-level keys whose value is not an array are ignored.
func Decode(r io.Reader) (*Snapshot, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("Decode: unmarshal snapshot: %w", err)
	}

	entities := make(map[string][]Value, len(raw))
	for name, list := range raw {
		items, ok := list.([]interface{})
		if !ok {
			continue
		}
		records := make([]Value, 0, len(items))
		for i, item := range items {
			v, err := FromInterface(item)
			if err != nil {
				return nil, fmt.Errorf("Decode: %s[%d]: %w", name, i, err)
			}
			records = append(records, v)
		}
		entities[name] = records
	}

	return &Snapshot{entities: entities}, nil
}

// Parse decodes a JSON export held in memory.
func Parse(data []byte) (*Snapshot, error) {
	return Decode(bytes.NewReader(data))
}

// Entities returns the records for name and whether the list was present.
// The returned slice must not be modified.
func (s *Snapshot) Entities(name string) ([]Value, bool) {
	if s == nil {
		return nil, false
	}
	records, ok := s.entities[name]
	return records, ok
}

// Require returns the records for name, failing with ErrMissingEntity when
// the list is absent. An empty list is not an error.
func (s *Snapshot) Require(name string) ([]Value, error) {
	records, ok := s.Entities(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingEntity, name)
	}
	return records, nil
}

// Count returns the number of records for name (0 when absent).
func (s *Snapshot) Count(name string) int {
	records, _ := s.Entities(name)
	return len(records)
}

// Names returns the entity-type names present, sorted.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.entities))
	for name := range s.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/oshokin/agrisecure/internal/config"
	"github.com/oshokin/agrisecure/internal/domain/security"
	"github.com/oshokin/agrisecure/internal/repository"
)

// document is the on-disk layout.
type document struct {
	ArmHistory []*security.ArmState `json:"arm_history"`
	Alarms     []*security.Alarm    `json:"alarms"`
	Nodes      []*security.Node     `json:"nodes"`
	Zones      []*security.Zone     `json:"zones"`
}

// clone copies the slice headers so that a failed write can be rolled back.
func (d *document) clone() *document {
	return &document{
		ArmHistory: slices.Clone(d.ArmHistory),
		Alarms:     slices.Clone(d.Alarms),
		Nodes:      slices.Clone(d.Nodes),
		Zones:      slices.Clone(d.Zones),
	}
}

// Store persists the engine state to a JSON file on disk.
type Store struct {
	// path is the filesystem location of the JSON state file.
	path string
	// doc is the cached document; nil until first use.
	doc *document
	// mu protects the cached document and the state file.
	mu sync.Mutex
}

var _ repository.Store = (*Store)(nil)

// NewStore creates a store that reads/writes JSON at the provided path.
func NewStore(path string) *Store {
	return &Store{
		path: filepath.Clean(path),
	}
}

// Close is a no-op; every change is already flushed.
func (s *Store) Close() error {
	return nil
}

// LoadArmHistory returns every arm state entry, oldest first.
func (s *Store) LoadArmHistory(_ context.Context) ([]*security.ArmState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	result := make([]*security.ArmState, 0, len(doc.ArmHistory))
	for _, state := range doc.ArmHistory {
		result = append(result, state.Clone())
	}

	return result, nil
}

// AppendArmState appends an entry to the arm history.
func (s *Store) AppendArmState(_ context.Context, state *security.ArmState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(doc *document) error {
		for _, existing := range doc.ArmHistory {
			if existing.Version == state.Version {
				return fmt.Errorf("%w: %d", repository.ErrVersionConflict, state.Version)
			}
		}

		doc.ArmHistory = append(doc.ArmHistory, state.Clone())

		return nil
	})
}

// LoadAlarms returns every stored alarm.
func (s *Store) LoadAlarms(_ context.Context) ([]*security.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	result := make([]*security.Alarm, 0, len(doc.Alarms))
	for _, alarm := range doc.Alarms {
		result = append(result, alarm.Clone())
	}

	return result, nil
}

// SaveAlarm inserts or replaces an alarm.
func (s *Store) SaveAlarm(_ context.Context, alarm *security.Alarm) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(doc *document) error {
		idx := slices.IndexFunc(doc.Alarms, func(a *security.Alarm) bool { return a.ID == alarm.ID })
		if idx < 0 {
			doc.Alarms = append(doc.Alarms, alarm.Clone())
		} else {
			doc.Alarms[idx] = alarm.Clone()
		}

		return nil
	})
}

// LoadNodes returns every stored node.
func (s *Store) LoadNodes(_ context.Context) ([]*security.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	result := make([]*security.Node, 0, len(doc.Nodes))
	for _, node := range doc.Nodes {
		result = append(result, node.Clone())
	}

	return result, nil
}

// SaveNode inserts or replaces a node.
func (s *Store) SaveNode(_ context.Context, node *security.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(doc *document) error {
		idx := slices.IndexFunc(doc.Nodes, func(n *security.Node) bool { return n.ID == node.ID })
		if idx < 0 {
			doc.Nodes = append(doc.Nodes, node.Clone())
		} else {
			doc.Nodes[idx] = node.Clone()
		}

		return nil
	})
}

// LoadZones returns every stored zone.
func (s *Store) LoadZones(_ context.Context) ([]*security.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	result := make([]*security.Zone, 0, len(doc.Zones))
	for _, zone := range doc.Zones {
		result = append(result, zone.Clone())
	}

	return result, nil
}

// SaveZone inserts or replaces a zone.
func (s *Store) SaveZone(_ context.Context, zone *security.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(doc *document) error {
		idx := slices.IndexFunc(doc.Zones, func(z *security.Zone) bool { return z.ID == zone.ID })
		if idx < 0 {
			doc.Zones = append(doc.Zones, zone.Clone())
		} else {
			doc.Zones[idx] = zone.Clone()
		}

		return nil
	})
}

// load reads the document from disk once. A missing file is an empty document.
// Callers must hold mu.
func (s *Store) load() (*document, error) {
	if s.doc != nil {
		return s.doc, nil
	}

	contents, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.doc = new(document)

			return s.doc, nil
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	doc := new(document)
	if err = json.Unmarshal(contents, doc); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	s.doc = doc

	return s.doc, nil
}

// update applies mutate to a copy of the document and swaps it in only when
// the file was written. Callers must hold mu.
func (s *Store) update(mutate func(doc *document) error) error {
	current, err := s.load()
	if err != nil {
		return err
	}

	next := current.clone()
	if err = mutate(next); err != nil {
		return err
	}

	if err = s.write(next); err != nil {
		return err
	}

	s.doc = next

	return nil
}

// write stores the document through a temporary file and a rename.
func (s *Store) write(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	if err = os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// Package history stores migration records as numbered JSON files and
// rebuilds the recorded view state by replaying them in order.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pgschema/viewmig/internal/fingerprint"
	"github.com/pgschema/viewmig/internal/ir"
	"github.com/pgschema/viewmig/internal/logger"
)

// Record is one persisted migration: an ordered list of operations
type Record struct {
	Name       string         `json:"name"`
	Checksum   string         `json:"checksum"`
	CreatedAt  time.Time      `json:"created_at"`
	Operations []ir.Operation `json:"operations"`
}

// ChecksumError is returned when a record no longer matches its checksum
type ChecksumError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("migration %s was modified after it was written (checksum %s, computed %s)",
		e.Name, short(e.Expected), short(e.Actual))
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

var (
	recordFile   = regexp.MustCompile(`^(\d{4})_([a-z0-9_]+)\.json$`)
	nameReplacer = regexp.MustCompile(`[^a-z0-9]+`)
)

// Store reads and writes records in a directory
type Store struct {
	Dir string
	// Now returns the creation time of new records; defaults to time.Now
	Now func() time.Time
}

// NewStore creates a store for dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{Dir: dir, Now: time.Now}
}

// Load reads every record in name order and verifies its checksum. A missing
// directory yields no records.
func (s *Store) Load() ([]*Record, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory %s: %w", s.Dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !recordFile.MatchString(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	records := make([]*Record, 0, len(files))
	for _, file := range files {
		record, err := readRecord(filepath.Join(s.Dir, file))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	logger.Get().Debug("loaded migration history", "dir", s.Dir, "records", len(records))
	return records, nil
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration %s: %w", path, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse migration %s: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), ".json")
	if record.Name == "" {
		record.Name = base
	}
	if record.Name != base {
		return nil, fmt.Errorf("migration %s declares name %q", path, record.Name)
	}

	fp, err := fingerprint.ComputeFingerprint(record.Operations)
	if err != nil {
		return nil, err
	}
	if fp.Hash != record.Checksum {
		return nil, &ChecksumError{Name: record.Name, Expected: record.Checksum, Actual: fp.Hash}
	}
	return &record, nil
}

// Write persists ops as the next record and returns it. An empty name gets
// an automatic one based on the creation time.
func (s *Store) Write(ops []ir.Operation, name string) (*Record, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}

	number := 1
	if len(records) > 0 {
		last := records[len(records)-1].Name
		n, err := strconv.Atoi(last[:4])
		if err != nil {
			return nil, fmt.Errorf("invalid migration name %q: %w", last, err)
		}
		number = n + 1
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	createdAt := now().UTC()

	slug := sanitizeName(name)
	if slug == "" {
		slug = "auto_" + createdAt.Format("20060102_1504")
	}

	if ops == nil {
		ops = []ir.Operation{}
	}
	fp, err := fingerprint.ComputeFingerprint(ops)
	if err != nil {
		return nil, err
	}

	record := &Record{
		Name:       fmt.Sprintf("%04d_%s", number, slug),
		Checksum:   fp.Hash,
		CreatedAt:  createdAt,
		Operations: ops,
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode migration: %w", err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory %s: %w", s.Dir, err)
	}
	path := filepath.Join(s.Dir, record.Name+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write migration %s: %w", path, err)
	}

	logger.Get().Info("wrote migration", "name", record.Name, "operations", len(ops))
	return record, nil
}

func sanitizeName(name string) string {
	slug := nameReplacer.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(slug, "_")
}

// Replay rebuilds the recorded state by applying the forward actions of
// every record in order
func Replay(records []*Record) (*ir.StateSet, error) {
	states := ir.NewStateSet()
	for _, record := range records {
		for _, op := range record.Operations {
			if err := states.ApplyAll(op.Forward); err != nil {
				return nil, fmt.Errorf("replaying migration %s: %w", record.Name, err)
			}
		}
	}
	return states, nil
}

// SPDX-License-Identifier: MPL-2.0

package baseline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/slowli/yab/internal/cachegrind"
	"github.com/slowli/yab/pkg/benchid"
)

// DefaultName is the rolling baseline every run compares against and
// advances, unless a named baseline is requested.
const DefaultName = "base"

const (
	fullFile  = "cachegrind.out"
	calibFile = "calibration.out"
	oldSuffix = ".old"
	metaFile  = "meta.toml"
)

type (
	// Store persists cachegrind output files under
	// <root>/<baseline-name>/<safe(id)>/. Files are stored verbatim as
	// cachegrind wrote them; the store never rewrites their contents.
	//
	// The store performs no locking of its own: the scheduler never runs
	// the same benchmark id twice concurrently, so per-id directories have
	// a single writer per run.
	Store struct {
		root string
	}

	// Record is the pair of outputs a measurement produces: the full run
	// and the calibration run whose subtraction removes harness overhead.
	Record struct {
		Full        *cachegrind.Output
		Calibration *cachegrind.Output
	}

	// Meta describes a stored measurement. It is serialized as TOML next
	// to the output files.
	Meta struct {
		SavedAt    time.Time `toml:"saved_at"`
		Cachegrind string    `toml:"cachegrind,omitempty"`
		Iterations uint64    `toml:"iterations"`
	}
)

// New creates a store rooted at <targetDir>/yab.
func New(targetDir string) *Store {
	return &Store{root: filepath.Join(targetDir, "yab")}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// TmpDir returns the scratch directory for in-flight cachegrind outputs.
func (s *Store) TmpDir() string { return filepath.Join(s.root, "tmp") }

// TmpOutPath returns a fresh unique path for a cachegrind output file.
// Uniqueness per (id, capture, attempt) keeps concurrent children and
// retries from clobbering each other.
func (s *Store) TmpOutPath(id benchid.ID, capture benchid.Capture) string {
	name := fmt.Sprintf("%s.%s.out", id.Safe(), uuid.NewString())
	if capture != "" {
		name = fmt.Sprintf("%s.%s.%s.out", id.Safe(), captureSafe(capture), uuid.NewString())
	}
	return filepath.Join(s.TmpDir(), name)
}

// RecoverInterrupted unlinks stray temp files left behind by an
// interrupted run. Called once at host startup.
func (s *Store) RecoverInterrupted() error {
	entries, err := os.ReadDir(s.TmpDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed scanning temp directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.TmpDir(), entry.Name())); err != nil {
			return fmt.Errorf("failed removing stray temp file: %w", err)
		}
	}
	return nil
}

// Dir returns the directory holding outputs for the given baseline name
// and benchmark id.
func (s *Store) Dir(name string, id benchid.ID) string {
	return filepath.Join(s.root, name, id.Safe())
}

func captureSafe(capture benchid.Capture) string {
	return benchid.ID{Name: string(capture)}.Safe()
}

func unitFiles(capture benchid.Capture) (full, calib string) {
	if capture == "" {
		return fullFile, calibFile
	}
	prefix := "capture." + captureSafe(capture)
	return prefix + ".out", prefix + ".calibration.out"
}

// Load reads the current record for (name, id, capture). It returns
// (nil, nil) when no record is stored.
func (s *Store) Load(name string, id benchid.ID, capture benchid.Capture) (*Record, error) {
	return s.load(name, id, capture, "")
}

// LoadPrior reads the previous record (the ".old" twins), if any.
func (s *Store) LoadPrior(name string, id benchid.ID, capture benchid.Capture) (*Record, error) {
	return s.load(name, id, capture, oldSuffix)
}

func (s *Store) load(name string, id benchid.ID, capture benchid.Capture, suffix string) (*Record, error) {
	dir := s.Dir(name, id)
	fullName, calibName := unitFiles(capture)

	full, err := parseIfExists(filepath.Join(dir, fullName+suffix))
	if full == nil || err != nil {
		return nil, err
	}
	calib, err := parseIfExists(filepath.Join(dir, calibName+suffix))
	if err != nil {
		return nil, err
	}
	return &Record{Full: full, Calibration: calib}, nil
}

func parseIfExists(path string) (*cachegrind.Output, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return cachegrind.ParseFile(path)
}

// Promote atomically installs a measured unit: the previous files (if
// any) are first renamed to their ".old" twins, then the temp files are
// renamed into place. Callers invoke this only after the cachegrind child
// exited cleanly and the parser accepted both files, so an interrupted
// run leaves either the previous record or the new one, never a mix of
// temp state.
func (s *Store) Promote(name string, id benchid.ID, capture benchid.Capture, fullTmp, calibTmp string) error {
	dir := s.Dir(name, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed creating baseline directory: %w", err)
	}
	fullName, calibName := unitFiles(capture)

	for _, f := range []struct{ tmp, final string }{
		{calibTmp, filepath.Join(dir, calibName)},
		{fullTmp, filepath.Join(dir, fullName)},
	} {
		if _, err := os.Stat(f.final); err == nil {
			if err := os.Rename(f.final, f.final+oldSuffix); err != nil {
				return fmt.Errorf("failed backing up previous output: %w", err)
			}
		}
		if err := os.Rename(f.tmp, f.final); err != nil {
			return fmt.Errorf("failed promoting cachegrind output: %w", err)
		}
	}
	return nil
}

// Discard removes in-flight temp files of a unit that failed or was
// canceled mid-measurement.
func (s *Store) Discard(paths ...string) {
	for _, path := range paths {
		if path != "" {
			_ = os.Remove(path)
		}
	}
}

// SaveMeta writes the id's measurement metadata.
func (s *Store) SaveMeta(name string, id benchid.ID, meta Meta) error {
	dir := s.Dir(name, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed creating baseline directory: %w", err)
	}
	data, err := toml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed encoding baseline metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), data, 0o644); err != nil {
		return fmt.Errorf("failed writing baseline metadata: %w", err)
	}
	return nil
}

// LoadMeta reads the id's measurement metadata; (nil, nil) when absent.
func (s *Store) LoadMeta(name string, id benchid.ID) (*Meta, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(name, id), metaFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed reading baseline metadata: %w", err)
	}
	var meta Meta
	if err := toml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed decoding baseline metadata: %w", err)
	}
	return &meta, nil
}

// Net returns the record's stats with calibration overhead subtracted.
func (r *Record) Net() cachegrind.Stats {
	if r.Calibration == nil {
		return r.Full.Summary
	}
	return r.Full.Summary.Sub(r.Calibration.Summary)
}

// NetOutput returns the full output diff including the per-function
// breakdown, with calibration overhead subtracted.
func (r *Record) NetOutput() *cachegrind.Output {
	if r.Calibration == nil {
		return r.Full
	}
	return r.Full.Sub(r.Calibration)
}

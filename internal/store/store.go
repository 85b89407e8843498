package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/overlayd/internal/platform"
	"github.com/1broseidon/overlayd/internal/profile"
)

// ProfilesKey is the KV key holding the persisted record set.
const ProfilesKey = "profiles"

// DefaultName is the protected profile that always exists.
const DefaultName = profile.DefaultProfileID

// Options configures a Store.
type Options struct {
	// Default seeds the protected profile when the store has none.
	// Zero value uses profile.BuiltinDefault.
	Default *profile.GeometryProfile
	Now     func() time.Time
	Logger  *slog.Logger
}

// LoadReport summarizes what Open found in the KV.
type LoadReport struct {
	Loaded       int
	Skipped      int
	Errors       []error
	Bootstrapped bool
}

// ImportResult counts what an import did with each incoming record.
type ImportResult struct {
	Added     int
	Replaced  int
	Skipped   int
	Malformed int
	Errors    []error
}

// Imported returns the number of records written by the import.
func (r ImportResult) Imported() int {
	return r.Added + r.Replaced
}

// Stats summarizes the stored profiles.
type Stats struct {
	Total    int    `json:"total"`
	Elevated int    `json:"elevated"`
	Oldest   string `json:"oldest,omitempty"`
	Newest   string `json:"newest,omitempty"`
}

// Store holds named profiles and persists the full set to a KV after every
// mutation. Mutations are serialized.
type Store struct {
	mu      sync.Mutex
	kv      platform.KV
	records []Record
	now     func() time.Time
	logger  *slog.Logger
	report  LoadReport
	def     profile.GeometryProfile
}

// Open loads the record set from kv, skipping malformed records, and makes
// sure the protected default profile exists.
func Open(kv platform.KV, opts Options) (*Store, error) {
	s := &Store{
		kv:     kv,
		now:    opts.Now,
		logger: opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.def = profile.BuiltinDefault()
	if opts.Default != nil {
		s.def = *opts.Default
	}
	s.def.ID = DefaultName

	if err := s.load(); err != nil {
		return nil, err
	}
	if err := s.ensureDefault(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the record set from the KV, picking up writes made by
// other processes. On error the in-memory set is left unchanged.
func (s *Store) Reload() (LoadReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevRecords, prevReport := s.records, s.report
	s.records, s.report = nil, LoadReport{}
	if err := s.load(); err != nil {
		s.records, s.report = prevRecords, prevReport
		return prevReport, err
	}
	if err := s.ensureDefault(); err != nil {
		s.records, s.report = prevRecords, prevReport
		return prevReport, err
	}
	return s.report, nil
}

func (s *Store) ensureDefault() error {
	if s.index(DefaultName) >= 0 {
		return nil
	}
	rec := RecordFromProfile(s.def, s.now())
	next := append(s.cloneRecords(), rec)
	if err := s.persist(next); err != nil {
		return err
	}
	s.records = next
	s.report.Bootstrapped = true
	return nil
}

func (s *Store) load() error {
	data, ok, err := s.kv.Get(ProfilesKey)
	if err != nil {
		return fmt.Errorf("failed to read profiles: %w", err)
	}
	if !ok || len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	raws, err := decodeEnvelope(data)
	if err != nil {
		return &ConfigurationError{Index: -1, Reason: "stored profile set is unreadable", Err: err}
	}

	now := s.now()
	seen := make(map[string]bool, len(raws))
	for i, raw := range raws {
		rec, err := decodeRecord(raw, i, now)
		if err == nil && seen[rec.Name] {
			err = &ConfigurationError{Name: rec.Name, Index: i, Reason: "duplicate name"}
		}
		if err != nil {
			s.report.Skipped++
			s.report.Errors = append(s.report.Errors, err)
			s.logger.Warn("skipping stored profile", "index", i, "error", err)
			continue
		}
		seen[rec.Name] = true
		s.records = append(s.records, rec)
	}
	s.report.Loaded = len(s.records)
	return nil
}

// decodeEnvelope accepts the versioned envelope or a bare record array.
func decodeEnvelope(data []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, err
		}
		return raws, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.FormatVersion > FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", env.FormatVersion)
	}
	return env.Profiles, nil
}

func encodeEnvelope(records []Record, exportedAt int64) ([]byte, error) {
	env := struct {
		FormatVersion int      `json:"formatVersion"`
		ExportedAt    int64    `json:"exportedAt,omitempty"`
		Profiles      []Record `json:"profiles"`
	}{
		FormatVersion: FormatVersion,
		ExportedAt:    exportedAt,
		Profiles:      records,
	}
	if env.Profiles == nil {
		env.Profiles = []Record{}
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode profiles: %w", err)
	}
	return append(data, '\n'), nil
}

func (s *Store) persist(records []Record) error {
	data, err := encodeEnvelope(records, 0)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ProfilesKey, data); err != nil {
		return fmt.Errorf("failed to persist profiles: %w", err)
	}
	return nil
}

// mutate applies fn to a copy of the record set and persists the result. The
// in-memory set only changes when persistence succeeds.
func (s *Store) mutate(fn func(records []Record) ([]Record, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.cloneRecords())
	if err != nil {
		return err
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.records = next
	return nil
}

func (s *Store) cloneRecords() []Record {
	return append([]Record(nil), s.records...)
}

func (s *Store) index(name string) int {
	return indexOf(s.records, name)
}

func indexOf(records []Record, name string) int {
	for i, r := range records {
		if r.Name == name {
			return i
		}
	}
	return -1
}

// LoadReport returns what Open found.
func (s *Store) LoadReport() LoadReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Save creates name with fields, or updates its fields and modification time.
func (s *Store) Save(name string, fields Fields) (Record, error) {
	name = strings.TrimSpace(name)
	if cerr := validateFields(name, fields); cerr != nil {
		return Record{}, cerr
	}

	var saved Record
	err := s.mutate(func(records []Record) ([]Record, error) {
		now := s.now().UnixMilli()
		if i := indexOf(records, name); i >= 0 {
			records[i].apply(fields)
			records[i].ModifiedAt = now
			saved = records[i]
			return records, nil
		}
		rec := Record{ID: uuid.NewString(), Name: name, CreatedAt: now, ModifiedAt: now}
		rec.apply(fields)
		saved = rec
		return append(records, rec), nil
	})
	if err != nil {
		return Record{}, err
	}
	return saved, nil
}

// Delete removes name. The default profile cannot be deleted.
func (s *Store) Delete(name string) error {
	if name == DefaultName {
		return fmt.Errorf("cannot delete %q: %w", name, ErrProtected)
	}
	return s.mutate(func(records []Record) ([]Record, error) {
		i := indexOf(records, name)
		if i < 0 {
			return nil, &NotFoundError{Name: name}
		}
		return append(records[:i], records[i+1:]...), nil
	})
}

// Duplicate copies srcName to newName with fresh timestamps.
func (s *Store) Duplicate(srcName, newName string) (Record, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return Record{}, &ConfigurationError{Index: -1, Reason: "new name is required"}
	}

	var dup Record
	err := s.mutate(func(records []Record) ([]Record, error) {
		src := indexOf(records, srcName)
		if src < 0 {
			return nil, &NotFoundError{Name: srcName}
		}
		if indexOf(records, newName) >= 0 {
			return nil, fmt.Errorf("duplicate %q to %q: %w", srcName, newName, ErrExists)
		}
		now := s.now().UnixMilli()
		dup = records[src]
		dup.ID = uuid.NewString()
		dup.Name = newName
		dup.CreatedAt = now
		dup.ModifiedAt = now
		return append(records, dup), nil
	})
	if err != nil {
		return Record{}, err
	}
	return dup, nil
}

// List returns every record in insertion order.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneRecords()
}

// Get returns the named record or a *NotFoundError.
func (s *Store) Get(name string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(name); i >= 0 {
		return s.records[i], nil
	}
	return Record{}, &NotFoundError{Name: name}
}

// Profiles returns every record converted to a geometry profile.
func (s *Store) Profiles() []profile.GeometryProfile {
	records := s.List()
	out := make([]profile.GeometryProfile, 0, len(records))
	for _, r := range records {
		out = append(out, r.Profile())
	}
	return out
}

// Export writes every record to path. The destination is either fully
// replaced or left untouched.
func (s *Store) Export(path string) error {
	records := s.List()
	data, err := encodeEnvelope(records, s.now().UnixMilli())
	if err != nil {
		return &IOError{Op: "export", Path: path, Err: err}
	}
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return &IOError{Op: "export", Path: path, Err: err}
	}
	return nil
}

// Import merges the records in path into the store. Names not yet present are
// added. Present names are replaced only when overwrite is set and skipped
// otherwise. Malformed records are skipped and counted.
func (s *Store) Import(path string, overwrite bool) (ImportResult, error) {
	var res ImportResult

	data, err := os.ReadFile(path)
	if err != nil {
		return res, &IOError{Op: "import", Path: path, Err: err}
	}
	raws, err := decodeEnvelope(data)
	if err != nil {
		return res, &IOError{Op: "import", Path: path, Err: err}
	}

	now := s.now()
	incoming := make([]Record, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for i, raw := range raws {
		rec, err := decodeRecord(raw, i, now)
		if err == nil && seen[rec.Name] {
			err = &ConfigurationError{Name: rec.Name, Index: i, Reason: "duplicate name"}
		}
		if err != nil {
			res.Malformed++
			res.Errors = append(res.Errors, err)
			continue
		}
		seen[rec.Name] = true
		incoming = append(incoming, rec)
	}

	err = s.mutate(func(records []Record) ([]Record, error) {
		for _, rec := range incoming {
			i := indexOf(records, rec.Name)
			switch {
			case i < 0:
				records = append(records, rec)
				res.Added++
			case overwrite:
				records[i] = rec
				res.Replaced++
			default:
				res.Skipped++
			}
		}
		return records, nil
	})
	if err != nil {
		return ImportResult{Malformed: res.Malformed, Errors: res.Errors}, err
	}

	s.logger.Info("profiles imported",
		"path", path,
		"added", res.Added,
		"replaced", res.Replaced,
		"skipped", res.Skipped,
		"malformed", res.Malformed)
	return res, nil
}

// Stats returns counts and the oldest and newest profiles by creation time.
func (s *Store) Stats() Stats {
	records := s.List()
	st := Stats{Total: len(records)}
	var oldest, newest *Record
	for i := range records {
		r := &records[i]
		if r.RequiresElevatedMode {
			st.Elevated++
		}
		if oldest == nil || r.CreatedAt < oldest.CreatedAt {
			oldest = r
		}
		if newest == nil || r.CreatedAt > newest.CreatedAt {
			newest = r
		}
	}
	if oldest != nil {
		st.Oldest = oldest.Name
		st.Newest = newest.Name
	}
	return st
}

// Cleanup removes profiles not modified within olderThan. The default profile
// is never removed. It returns the removed names sorted.
func (s *Store) Cleanup(olderThan time.Duration) ([]string, error) {
	if olderThan <= 0 {
		return nil, fmt.Errorf("cleanup age must be positive")
	}
	cutoff := s.now().Add(-olderThan).UnixMilli()

	var removed []string
	err := s.mutate(func(records []Record) ([]Record, error) {
		kept := records[:0]
		for _, r := range records {
			if r.Name != DefaultName && r.ModifiedAt < cutoff {
				removed = append(removed, r.Name)
				continue
			}
			kept = append(kept, r)
		}
		return kept, nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(removed)
	return removed, nil
}

package schema

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/logging"
)

// MetadataProvider enumerates live table metadata from a database
type MetadataProvider interface {
	ListTables(ctx context.Context) ([]Table, error)
}

// persistedCache is the on-disk layout of the snapshot container plus cache
// metadata, so SQL generation keeps working when the database is unreachable
type persistedCache struct {
	Source      Source           `json:"source"`
	CreatedAt   time.Time        `json:"created_at"`
	Tables      map[string]Table `json:"tables"`
	LastRefresh time.Time        `json:"last_refresh"`
	TTLSeconds  int              `json:"ttl_seconds"`
}

// Manager owns the active schema snapshot. The snapshot is replaced by an
// immutable-pointer swap under a mutex, so concurrent readers observe either
// the old or the new snapshot in full, never a mix. A stale snapshot is
// advisory only and is never discarded when a refresh fails.
type Manager struct {
	mu          sync.RWMutex
	snapshot    *Snapshot
	lastRefresh time.Time

	ttl          time.Duration
	snapshotFile string
	now          func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithSnapshotFile enables JSON persistence of the active snapshot
func WithSnapshotFile(path string) Option {
	return func(m *Manager) { m.snapshotFile = path }
}

// WithClock overrides the time source (used by tests)
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a schema manager with the given TTL
func NewManager(ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		snapshot: EmptySnapshot(),
		ttl:      ttl,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Load builds a snapshot from the given source without touching the active
// cache entry. Payload type depends on the source: a MetadataProvider for
// introspection, raw tabular rows ([][]string) or normalized []Table for
// import, and optional []Table for manual (nil falls back to the built-ins).
func (m *Manager) Load(ctx context.Context, source Source, payload interface{}) (*Snapshot, error) {
	switch source {
	case SourceIntrospection:
		provider, ok := payload.(MetadataProvider)
		if !ok || provider == nil {
			return nil, errors.New(errors.ErrTypeInternal,
				"introspection load requires a metadata provider")
		}

		return loadIntrospection(ctx, provider)
	case SourceImport:
		switch rows := payload.(type) {
		case [][]string:
			tables, err := NormalizeImport(rows)
			if err != nil {
				return nil, err
			}

			return NewSnapshot(SourceImport, tables), nil
		case []Table:
			if len(rows) == 0 {
				return nil, errors.New(errors.ErrTypeSchemaFormat, "import contains no tables")
			}

			return NewSnapshot(SourceImport, rows), nil
		default:
			return nil, errors.New(errors.ErrTypeInternal,
				"import load requires tabular rows or table definitions")
		}
	case SourceManual:
		tables, ok := payload.([]Table)
		if !ok || len(tables) == 0 {
			tables = ManualTables()
		}

		return NewSnapshot(SourceManual, tables), nil
	default:
		return nil, errors.Newf(errors.ErrTypeInternal, "unknown schema source: %s", source)
	}
}

func loadIntrospection(ctx context.Context, provider MetadataProvider) (*Snapshot, error) {
	tables, err := provider.ListTables(ctx)
	if err != nil {
		return nil, errors.NewConnectivityError("failed to introspect database schema", err)
	}

	if len(tables) == 0 {
		return nil, errors.New(errors.ErrTypeSchemaEmpty,
			"introspection returned zero tables").
			WithSuggestion("Check that the configured credentials can see the expected tables")
	}

	return NewSnapshot(SourceIntrospection, tables), nil
}

// Refresh loads from the source and, only on success, atomically replaces
// the active cache entry and resets the last-refresh timestamp. On failure
// the active entry is left untouched and the error is surfaced.
func (m *Manager) Refresh(ctx context.Context, source Source, payload interface{}) error {
	snapshot, err := m.Load(ctx, source, payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.snapshot = snapshot
	m.lastRefresh = m.now()
	m.mu.Unlock()

	m.persist(snapshot)

	return nil
}

// ActiveSnapshot returns the current snapshot regardless of staleness and
// never blocks on a refresh
func (m *Manager) ActiveSnapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshot
}

// LastRefresh returns when the active snapshot was last refreshed
func (m *Manager) LastRefresh() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lastRefresh
}

// IsStale reports whether the active entry has outlived its TTL. Staleness
// is advisory: a stale snapshot is still usable if a refresh fails.
func (m *Manager) IsStale() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastRefresh.IsZero() {
		return true
	}

	return m.now().Sub(m.lastRefresh) > m.ttl
}

// persist writes the snapshot container and cache metadata to disk.
// Persistence failures are logged, never surfaced: the in-memory swap has
// already succeeded.
func (m *Manager) persist(snapshot *Snapshot) {
	if m.snapshotFile == "" {
		return
	}

	m.mu.RLock()
	cache := persistedCache{
		Source:      snapshot.Source,
		CreatedAt:   snapshot.CreatedAt,
		Tables:      snapshot.Tables,
		LastRefresh: m.lastRefresh,
		TTLSeconds:  int(m.ttl / time.Second),
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		logging.GetLogger().ErrorWithErr("failed to marshal schema snapshot", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(m.snapshotFile), 0755); err != nil {
		logging.GetLogger().ErrorWithErr("failed to create snapshot directory", err)
		return
	}

	if err := os.WriteFile(m.snapshotFile, data, 0600); err != nil {
		logging.GetLogger().ErrorWithErr("failed to persist schema snapshot", err)
	}
}

// Restore loads a previously persisted snapshot from disk into the active
// entry. A missing file is not an error; a corrupt file is surfaced but the
// empty snapshot stays active.
func (m *Manager) Restore() error {
	if m.snapshotFile == "" {
		return nil
	}

	data, err := os.ReadFile(m.snapshotFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return errors.Wrap(err, errors.ErrTypeInternal, "failed to read schema snapshot file")
	}

	var cache persistedCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return errors.Wrap(err, errors.ErrTypeSchemaFormat, "failed to parse schema snapshot file")
	}

	if len(cache.Tables) == 0 {
		return nil
	}

	snapshot := &Snapshot{
		Source:    cache.Source,
		CreatedAt: cache.CreatedAt,
		Tables:    cache.Tables,
	}

	m.mu.Lock()
	m.snapshot = snapshot
	m.lastRefresh = cache.LastRefresh
	m.mu.Unlock()

	return nil
}

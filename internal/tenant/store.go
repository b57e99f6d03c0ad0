// Package tenant resolves tenant identifiers to immutable masking tables.
//
// Each tenant is a directory of resource files (word sets, domain filter
// lists, regex templates). Loaded tables are cached as immutable snapshots;
// template updates and file changes build a fresh snapshot and swap it
// atomically, so in-flight masking never observes a partially updated
// pattern list.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/whitemask/maskd/internal/mask"
)

var (
	// ErrUnknownTenant means the tenant identifier matches no tenant
	// directory.
	ErrUnknownTenant = errors.New("unknown tenant")

	// ErrMissingResource means the tenant exists but a required resource
	// file is absent or unreadable.
	ErrMissingResource = errors.New("missing tenant resource")
)

// Store loads and caches per-tenant masking tables from a root directory.
type Store struct {
	dir    string
	logger *zap.Logger

	// updateMu serializes whole read-compute-persist-swap sequences
	// (template updates, disk reloads) against each other. mu only guards
	// the snapshot map, so readers never block on a slow update.
	updateMu sync.Mutex

	mu       sync.RWMutex
	tenants  map[string]*mask.Tables
	onChange func(tenantID string)
}

// NewStore creates a Store over the given tenants directory. Tenants load
// lazily on first use.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("tenants directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tenants directory %s is not a directory", dir)
	}
	return &Store{
		dir:     dir,
		logger:  logger.With(zap.String("component", "tenant")),
		tenants: make(map[string]*mask.Tables),
	}, nil
}

// Tables returns the current snapshot for the tenant, loading it on first
// use. Returns ErrUnknownTenant or ErrMissingResource as appropriate.
func (s *Store) Tables(tenantID string) (*mask.Tables, error) {
	s.mu.RLock()
	tables, ok := s.tenants[tenantID]
	s.mu.RUnlock()
	if ok {
		return tables, nil
	}
	return s.reload(tenantID)
}

// OnChange registers a callback invoked whenever an already-loaded tenant's
// snapshot is replaced or removed. Callers use it to invalidate derived
// state, such as cached masked lines keyed on the old tables.
func (s *Store) OnChange(fn func(tenantID string)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// IDs lists the tenant directories currently on disk, loaded or not.
func (s *Store) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// reload builds a fresh snapshot from disk and swaps it in.
func (s *Store) reload(tenantID string) (*mask.Tables, error) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()
	return s.loadLocked(tenantID)
}

// loadLocked does the disk load and swap. Callers hold updateMu.
func (s *Store) loadLocked(tenantID string) (*mask.Tables, error) {
	dir, err := s.tenantDir(tenantID)
	if err != nil {
		return nil, err
	}

	tables, terrs, err := loadTables(dir)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, err)
	}
	for _, te := range terrs {
		s.logger.Warn("skipping tenant template",
			zap.String("tenant", tenantID),
			zap.String("template", te.Template),
			zap.String("error", te.Err))
	}

	s.mu.Lock()
	_, replaced := s.tenants[tenantID]
	s.tenants[tenantID] = tables
	onChange := s.onChange
	s.mu.Unlock()

	// A first load cannot have derived state keyed on an older snapshot.
	if replaced && onChange != nil {
		onChange(tenantID)
	}

	s.logger.Info("tenant tables loaded",
		zap.String("tenant", tenantID),
		zap.Int("whitelist", len(tables.Whitelist)),
		zap.Int("names", len(tables.Names)),
		zap.Int("geolocations", len(tables.Geolocations)),
		zap.Int("profanities", len(tables.Profanities)),
		zap.Int("templates", len(tables.Templates)))
	return tables, nil
}

// tenantDir validates the identifier and resolves it to a directory on disk.
func (s *Store) tenantDir(tenantID string) (string, error) {
	if tenantID == "" || strings.ContainsAny(tenantID, `/\`) || strings.Contains(tenantID, "..") {
		return "", fmt.Errorf("%w: %q", ErrUnknownTenant, tenantID)
	}
	dir := filepath.Join(s.dir, tenantID)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTenant, tenantID)
	}
	return dir, nil
}

// UpdateResult reports the outcome of a template update, per template.
type UpdateResult struct {
	Updated []mask.TemplateSpec  `json:"updated,omitempty"`
	Removed []string             `json:"removed,omitempty"`
	Errors  []mask.TemplateError `json:"errors,omitempty"`
}

// UpdateTemplates applies removals first, then additions, to the tenant's
// template list. Invalid additions are skipped and reported; valid ones are
// compiled into a new snapshot which is swapped in atomically and persisted
// to the tenant directory. An addition whose pattern matches an existing
// template replaces it.
func (s *Store) UpdateTemplates(tenantID string, updates []mask.TemplateSpec, removals []string) (*UpdateResult, error) {
	// The whole read-compute-persist-swap runs under updateMu so concurrent
	// updates (or an update racing a directory reload) cannot lose changes
	// or interleave template file writes.
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	dir, err := s.tenantDir(tenantID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	tables, ok := s.tenants[tenantID]
	s.mu.RUnlock()
	if !ok {
		if tables, err = s.loadLocked(tenantID); err != nil {
			return nil, err
		}
	}

	result := &UpdateResult{}
	current := make([]mask.Template, 0, len(tables.Templates)+len(updates))
	current = append(current, tables.Templates...)

	for _, pattern := range removals {
		pattern = strings.TrimSpace(pattern)
		kept := current[:0]
		removed := false
		for _, t := range current {
			if t.Pattern.String() == pattern {
				removed = true
				continue
			}
			kept = append(kept, t)
		}
		current = kept
		if removed {
			result.Removed = append(result.Removed, pattern)
		} else {
			result.Errors = append(result.Errors, mask.TemplateError{
				Template: pattern,
				Err:      "no such template.",
			})
		}
	}

	compiled, terrs := mask.CompileTemplates(updates)
	result.Errors = append(result.Errors, terrs...)
	for _, t := range compiled {
		replaced := false
		for i, existing := range current {
			if existing.Pattern.String() == t.Pattern.String() {
				current[i] = t
				replaced = true
				break
			}
		}
		if !replaced {
			current = append(current, t)
		}
		result.Updated = append(result.Updated, t.Spec())
	}

	next := *tables
	next.Templates = current

	specs := make([]mask.TemplateSpec, len(current))
	for i, t := range current {
		specs[i] = t.Spec()
	}
	if err := writeTemplateConfig(dir, next.MaskNumbers, specs); err != nil {
		return nil, fmt.Errorf("tenant %s: persisting templates: %w", tenantID, err)
	}

	s.mu.Lock()
	s.tenants[tenantID] = &next
	onChange := s.onChange
	s.mu.Unlock()
	if onChange != nil {
		onChange(tenantID)
	}

	s.logger.Info("tenant templates updated",
		zap.String("tenant", tenantID),
		zap.Int("updated", len(result.Updated)),
		zap.Int("removed", len(result.Removed)),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// Watch reloads tenants whose resource files change on disk. It blocks until
// the context is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tenant watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("tenant watcher: %w", err)
	}
	ids, err := s.IDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := watcher.Add(filepath.Join(s.dir, id)); err != nil {
			s.logger.Warn("cannot watch tenant directory", zap.String("tenant", id), zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("tenant watcher error", zap.Error(err))
		}
	}
}

func (s *Store) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	rel, err := filepath.Rel(s.dir, event.Name)
	if err != nil || rel == "." {
		return
	}
	tenantID := strings.Split(filepath.ToSlash(rel), "/")[0]

	// A directory created at the root is a new tenant.
	if event.Op&fsnotify.Create != 0 && tenantID == rel {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := watcher.Add(event.Name); err != nil {
				s.logger.Warn("cannot watch tenant directory", zap.String("tenant", tenantID), zap.Error(err))
			}
			return
		}
	}

	// Only reload tenants that are already cached; others load lazily with
	// fresh state anyway.
	s.mu.RLock()
	_, loaded := s.tenants[tenantID]
	s.mu.RUnlock()
	if !loaded {
		return
	}

	if event.Op&fsnotify.Remove != 0 && tenantID == rel {
		s.mu.Lock()
		delete(s.tenants, tenantID)
		onChange := s.onChange
		s.mu.Unlock()
		if onChange != nil {
			onChange(tenantID)
		}
		s.logger.Info("tenant removed", zap.String("tenant", tenantID))
		return
	}

	if _, err := s.reload(tenantID); err != nil {
		s.logger.Warn("tenant reload failed", zap.String("tenant", tenantID), zap.Error(err))
	}
}

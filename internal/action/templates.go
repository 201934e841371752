package action

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tmarsden/edgeflow-core/internal/configpack"
)

// DefaultTemplateLimit bounds the in-memory template table.
const DefaultTemplateLimit = 32

// Template is a named, reusable action definition with usage statistics.
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`

	Action Action `json:"action"`

	// Async makes Execute fire-and-forget. The embedded action's own
	// async flag has the same effect.
	Async bool `json:"async,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	UseCount   uint64     `json:"use_count"`
}

// Validate checks the template's own fields and its embedded action.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	if err := t.Action.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return nil
}

// DeepCopy returns an independent copy.
func (t *Template) DeepCopy() *Template {
	out := *t
	out.Action = t.Action.DeepCopy()
	if t.LastUsedAt != nil {
		v := *t.LastUsedAt
		out.LastUsedAt = &v
	}
	return &out
}

// TemplatesConfig controls the template store and its persistence tiers.
type TemplatesConfig struct {
	// Limit caps the table size. Zero means DefaultTemplateLimit.
	Limit int

	// ExportDir is the removable per-item directory. Empty disables the
	// removable tiers entirely.
	ExportDir string

	// LegacyFile is the single-file predecessor of ExportDir. When it
	// yields templates they are migrated into per-item form and the file
	// is renamed aside.
	LegacyFile string
}

func (c *TemplatesConfig) applyDefaults() {
	if c.Limit <= 0 {
		c.Limit = DefaultTemplateLimit
	}
}

// Templates owns the in-memory template table and its three persistence
// tiers: removable per-item directory, legacy single file, local blob
// store. Mutations persist best-effort; an I/O failure is logged and the
// in-memory state stands.
type Templates struct {
	cfg    TemplatesConfig
	engine *Engine
	repo   TemplateRepository
	codec  *configpack.Codec
	logger Logger

	mu    sync.Mutex
	items map[string]*Template
}

// NewTemplates creates a template store bound to an engine. repo may be
// nil (no local tier); codec may be nil (plaintext removable tier only).
func NewTemplates(cfg TemplatesConfig, engine *Engine, repo TemplateRepository, codec *configpack.Codec, logger Logger) *Templates {
	cfg.applyDefaults()
	if logger == nil {
		logger = noopLogger{}
	}
	return &Templates{
		cfg:    cfg,
		engine: engine,
		repo:   repo,
		codec:  codec,
		logger: logger,
		items:  make(map[string]*Template),
	}
}

// Add inserts a new template. An empty id gets a generated one. The
// usage fields are normalized regardless of caller input.
func (t *Templates) Add(ctx context.Context, tpl Template) (*Template, error) {
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	tpl.CreatedAt = time.Now().UTC()
	tpl.LastUsedAt = nil
	tpl.UseCount = 0

	t.mu.Lock()
	if _, exists := t.items[tpl.ID]; exists {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTemplateExists, tpl.ID)
	}
	if len(t.items) >= t.cfg.Limit {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %d templates", ErrTemplateLimit, t.cfg.Limit)
	}
	t.items[tpl.ID] = tpl.DeepCopy()
	t.mu.Unlock()

	t.persist(ctx, &tpl)
	t.logger.Info("template added", "template_id", tpl.ID, "name", tpl.Name)
	return tpl.DeepCopy(), nil
}

// Get returns a copy of a template by id.
func (t *Templates) Get(id string) (*Template, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tpl, ok := t.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return tpl.DeepCopy(), nil
}

// List returns copies of all templates sorted by name, then id.
func (t *Templates) List() []Template {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Template, 0, len(t.items))
	for _, tpl := range t.items {
		out = append(out, *tpl.DeepCopy())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Update replaces a template's definition. The creation and usage
// fields are preserved from the stored copy no matter what the caller
// supplies.
func (t *Templates) Update(ctx context.Context, tpl Template) (*Template, error) {
	if err := tpl.Validate(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	current, ok := t.items[tpl.ID]
	if !ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, tpl.ID)
	}
	tpl.CreatedAt = current.CreatedAt
	tpl.UseCount = current.UseCount
	tpl.LastUsedAt = current.LastUsedAt
	t.items[tpl.ID] = tpl.DeepCopy()
	t.mu.Unlock()

	t.persist(ctx, &tpl)
	t.logger.Info("template updated", "template_id", tpl.ID, "name", tpl.Name)
	return tpl.DeepCopy(), nil
}

// Remove deletes a template from memory and every persistence tier.
func (t *Templates) Remove(ctx context.Context, id string) error {
	t.mu.Lock()
	if _, ok := t.items[id]; !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	delete(t.items, id)
	t.mu.Unlock()

	if t.repo != nil {
		if err := t.repo.Delete(ctx, id); err != nil {
			t.logger.Warn("template blob delete failed", "template_id", id, "error", err)
		}
	}
	t.removeExport(id)
	t.logger.Info("template removed", "template_id", id)
	return nil
}

// Count returns the number of stored templates.
func (t *Templates) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Execute runs a template through the engine. Disabled templates fail
// fast before any resource is touched. Usage statistics update after
// the dispatch attempt regardless of its outcome.
func (t *Templates) Execute(ctx context.Context, id string) (Result, error) {
	t.mu.Lock()
	tpl, ok := t.items[id]
	if !ok {
		t.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
		return Result{Status: StatusFailed, Output: err.Error(), Timestamp: time.Now()}, err
	}
	if !tpl.Enabled {
		t.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrTemplateDisabled, id)
		return Result{Status: StatusFailed, Output: err.Error(), Timestamp: time.Now()}, err
	}
	run := tpl.DeepCopy()
	t.mu.Unlock()

	var result Result
	var err error
	if run.Async || run.Action.Async {
		err = t.engine.EnqueueAsync(run.Action, nil)
		result = Result{Status: StatusQueued, Output: "queued", Timestamp: time.Now()}
		if err != nil {
			result = Result{Status: StatusFailed, Output: err.Error(), Timestamp: time.Now()}
		}
	} else {
		result, err = t.engine.ExecuteSync(run.Action)
	}

	t.touchUsage(ctx, id)
	return result, err
}

// touchUsage bumps use_count and last_used_at for an execution.
func (t *Templates) touchUsage(ctx context.Context, id string) {
	t.mu.Lock()
	tpl, ok := t.items[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	tpl.UseCount++
	tpl.LastUsedAt = &now
	snapshot := tpl.DeepCopy()
	t.mu.Unlock()

	t.persist(ctx, snapshot)
}

// ─── Persistence ────────────────────────────────────────────────────────────

// legacyEnvelope is the single-file format that predates the per-item
// directory.
type legacyEnvelope struct {
	Templates []Template `json:"templates"`
}

// Load fills the table from the first tier that yields templates:
// removable per-item directory, legacy single file, local blob store.
// A removable load is promoted into the blob store so a later start
// without removable storage still has the data.
func (t *Templates) Load(ctx context.Context) error {
	if loaded := t.loadFromDir(); len(loaded) > 0 {
		t.install(loaded)
		t.logger.Info("templates loaded", "tier", "export_dir", "count", len(loaded))
		t.promote(ctx)
		return nil
	}

	if loaded := t.loadFromLegacy(); len(loaded) > 0 {
		t.install(loaded)
		t.logger.Info("templates loaded", "tier", "legacy_file", "count", len(loaded))
		t.migrateLegacy(loaded)
		t.promote(ctx)
		return nil
	}

	if t.repo == nil {
		return nil
	}
	payloads, err := t.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("action: load templates: %w", err)
	}
	loaded := make([]Template, 0, len(payloads))
	for id, payload := range payloads {
		var tpl Template
		if err := json.Unmarshal(payload, &tpl); err != nil {
			t.logger.Warn("skipping corrupt template blob", "template_id", id, "error", err)
			continue
		}
		loaded = append(loaded, tpl)
	}
	t.install(loaded)
	if len(loaded) > 0 {
		t.logger.Info("templates loaded", "tier", "blob_store", "count", len(loaded))
	}
	return nil
}

// install replaces the table contents, honoring the limit.
func (t *Templates) install(loaded []Template) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items = make(map[string]*Template, len(loaded))
	for i := range loaded {
		if len(t.items) >= t.cfg.Limit {
			t.logger.Warn("template limit reached during load", "limit", t.cfg.Limit)
			return
		}
		tpl := loaded[i]
		if err := tpl.Validate(); err != nil {
			t.logger.Warn("skipping invalid template", "template_id", tpl.ID, "error", err)
			continue
		}
		if tpl.ID == "" {
			tpl.ID = uuid.NewString()
		}
		t.items[tpl.ID] = tpl.DeepCopy()
	}
}

// loadFromDir reads the per-item directory tier. Encrypted packs win
// over plaintext siblings per item.
func (t *Templates) loadFromDir() []Template {
	if t.cfg.ExportDir == "" {
		return nil
	}
	entries, err := os.ReadDir(t.cfg.ExportDir)
	if err != nil {
		return nil
	}

	var loaded []Template
	seen := make(map[string]bool)

	read := func(id string, content []byte, encrypted bool) {
		var tpl Template
		if err := json.Unmarshal(content, &tpl); err != nil {
			t.logger.Warn("skipping unreadable template file", "template_id", id, "error", err)
			return
		}
		seen[id] = true
		loaded = append(loaded, tpl)
		t.logger.Debug("template file read", "template_id", id, "encrypted", encrypted)
	}

	// Encrypted packs first so a plaintext sibling never shadows one.
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, configpack.Ext) || t.codec == nil {
			continue
		}
		id := strings.TrimSuffix(name, configpack.Ext)
		content, err := t.codec.OpenFile(filepath.Join(t.cfg.ExportDir, name))
		if err != nil {
			t.logger.Warn("skipping unreadable template pack", "file", name, "error", err)
			continue
		}
		read(id, content, true)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if seen[id] {
			continue
		}
		content, err := os.ReadFile(filepath.Join(t.cfg.ExportDir, name))
		if err != nil {
			t.logger.Warn("skipping unreadable template file", "file", name, "error", err)
			continue
		}
		read(id, content, false)
	}
	return loaded
}

// loadFromLegacy reads the single-file tier.
func (t *Templates) loadFromLegacy() []Template {
	if t.cfg.LegacyFile == "" {
		return nil
	}
	content, _, err := configpack.LoadWithPriority(t.codec, t.cfg.LegacyFile)
	if err != nil {
		return nil
	}
	var envelope legacyEnvelope
	if err := json.Unmarshal(content, &envelope); err != nil {
		t.logger.Warn("legacy template file unreadable", "file", t.cfg.LegacyFile, "error", err)
		return nil
	}
	return envelope.Templates
}

// migrateLegacy exports the legacy set into per-item form and renames
// the legacy file aside so the next load takes the directory tier.
func (t *Templates) migrateLegacy(loaded []Template) {
	if t.cfg.ExportDir != "" {
		for i := range loaded {
			t.exportItem(&loaded[i])
		}
	}
	aside := t.cfg.LegacyFile + ".migrated"
	if err := os.Rename(t.cfg.LegacyFile, aside); err != nil {
		t.logger.Warn("legacy template file rename failed", "file", t.cfg.LegacyFile, "error", err)
		return
	}
	t.logger.Info("legacy template file migrated", "count", len(loaded), "moved_to", aside)
}

// promote re-persists the whole table into the blob store after a
// removable-tier load.
func (t *Templates) promote(ctx context.Context) {
	if t.repo == nil {
		return
	}
	if err := t.repo.Clear(ctx); err != nil {
		t.logger.Warn("template blob clear failed", "error", err)
		return
	}
	for _, tpl := range t.List() {
		payload, err := json.Marshal(&tpl)
		if err != nil {
			continue
		}
		if err := t.repo.Upsert(ctx, tpl.ID, payload); err != nil {
			t.logger.Warn("template promote failed", "template_id", tpl.ID, "error", err)
		}
	}
}

// persist writes one template to the blob store synchronously, then
// exports it to the removable directory best-effort.
func (t *Templates) persist(ctx context.Context, tpl *Template) {
	payload, err := json.Marshal(tpl)
	if err != nil {
		t.logger.Error("template marshal failed", "template_id", tpl.ID, "error", err)
		return
	}
	if t.repo != nil {
		if err := t.repo.Upsert(ctx, tpl.ID, payload); err != nil {
			t.logger.Warn("template blob write failed", "template_id", tpl.ID, "error", err)
		}
	}
	t.exportItem(tpl)
}

// exportItem writes one plaintext per-item file. Read-side encrypted
// packs are provisioned externally; the engine never seals on its own.
func (t *Templates) exportItem(tpl *Template) {
	if t.cfg.ExportDir == "" {
		return
	}
	if err := os.MkdirAll(t.cfg.ExportDir, 0o755); err != nil {
		t.logger.Warn("template export dir create failed", "dir", t.cfg.ExportDir, "error", err)
		return
	}
	payload, err := json.MarshalIndent(tpl, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(t.cfg.ExportDir, tpl.ID+".json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.logger.Warn("template export failed", "template_id", tpl.ID, "error", err)
	}
}

// removeExport deletes both per-item representations of a template.
func (t *Templates) removeExport(id string) {
	if t.cfg.ExportDir == "" {
		return
	}
	os.Remove(filepath.Join(t.cfg.ExportDir, id+".json"))
	os.Remove(filepath.Join(t.cfg.ExportDir, id+configpack.Ext))
}

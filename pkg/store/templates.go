package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fieldgate/taskgen/pkg/models"
)

// TemplatesFileName is the single JSON document holding user templates.
const TemplatesFileName = "templates.json"

// TemplateRegistry manages built-in and user task templates. Built-ins
// are immutable; user templates persist to templates.json, rewritten
// atomically on every change.
type TemplateRegistry struct {
	path string

	mu       sync.RWMutex
	builtins map[string]models.Template
	user     map[string]models.Template
}

// NewTemplateRegistry loads (or initializes) the registry under the
// tasks directory.
func NewTemplateRegistry(dir string) (*TemplateRegistry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tasks dir: %w", err)
	}
	r := &TemplateRegistry{
		path:     filepath.Join(dir, TemplatesFileName),
		builtins: make(map[string]models.Template),
		user:     make(map[string]models.Template),
	}
	for _, t := range models.BuiltinTemplates() {
		r.builtins[t.ID] = t
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// templatesDoc is the on-disk shape of templates.json.
type templatesDoc struct {
	Templates []models.Template `json:"templates"`
}

func (r *TemplateRegistry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading templates file: %w", err)
	}
	var doc templatesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing templates file: %w", err)
	}
	for _, t := range doc.Templates {
		// A built-in id in the user file is stale state; built-ins win.
		if _, isBuiltin := r.builtins[t.ID]; isBuiltin {
			continue
		}
		t.BuiltIn = false
		r.user[t.ID] = t
	}
	return nil
}

// persistLocked rewrites templates.json atomically. Caller holds r.mu.
func (r *TemplateRegistry) persistLocked() error {
	doc := templatesDoc{Templates: make([]models.Template, 0, len(r.user))}
	for _, t := range r.user {
		doc.Templates = append(doc.Templates, t)
	}
	sort.Slice(doc.Templates, func(i, j int) bool { return doc.Templates[i].ID < doc.Templates[j].ID })

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling templates: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), TemplatesFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp templates file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp templates file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp templates file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp templates file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing templates file: %w", err)
	}
	return nil
}

// List returns all templates, built-ins first, then user templates, each
// sorted by id.
func (r *TemplateRegistry) List() []models.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Template, 0, len(r.builtins)+len(r.user))
	for _, t := range r.builtins {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	user := make([]models.Template, 0, len(r.user))
	for _, t := range r.user {
		user = append(user, t)
	}
	sort.Slice(user, func(i, j int) bool { return user[i].ID < user[j].ID })
	return append(out, user...)
}

// Get returns a template by id.
func (r *TemplateRegistry) Get(id string) (models.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.builtins[id]; ok {
		return t, nil
	}
	if t, ok := r.user[id]; ok {
		return t, nil
	}
	return models.Template{}, fmt.Errorf("%w: template %s", ErrNotFound, id)
}

// Create adds a new user template. Built-in ids are reserved.
func (r *TemplateRegistry) Create(t models.Template) error {
	t.BuiltIn = false
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builtins[t.ID]; ok {
		return fmt.Errorf("%w: %s", ErrBuiltinTemplate, t.ID)
	}
	if _, ok := r.user[t.ID]; ok {
		return fmt.Errorf("%w: template %s", ErrAlreadyExists, t.ID)
	}
	r.user[t.ID] = t
	if err := r.persistLocked(); err != nil {
		delete(r.user, t.ID)
		return err
	}
	return nil
}

// Update replaces an existing user template.
func (r *TemplateRegistry) Update(t models.Template) error {
	t.BuiltIn = false
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builtins[t.ID]; ok {
		return fmt.Errorf("%w: %s", ErrBuiltinTemplate, t.ID)
	}
	prev, ok := r.user[t.ID]
	if !ok {
		return fmt.Errorf("%w: template %s", ErrNotFound, t.ID)
	}
	r.user[t.ID] = t
	if err := r.persistLocked(); err != nil {
		r.user[t.ID] = prev
		return err
	}
	return nil
}

// Delete removes a user template.
func (r *TemplateRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builtins[id]; ok {
		return fmt.Errorf("%w: %s", ErrBuiltinTemplate, id)
	}
	prev, ok := r.user[id]
	if !ok {
		return fmt.Errorf("%w: template %s", ErrNotFound, id)
	}
	delete(r.user, id)
	if err := r.persistLocked(); err != nil {
		r.user[id] = prev
		return err
	}
	return nil
}

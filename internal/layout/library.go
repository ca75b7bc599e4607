package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/moonback/photoboot/internal/assets"
)

// ErrTemplateNotFound is returned by Library.Get for unknown names.
var ErrTemplateNotFound = errors.New("template not found")

// Library holds named templates: the built-in set plus any loaded from a
// directory, which override built-ins of the same name.
type Library struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewLibrary returns a library holding the built-in templates.
func NewLibrary() (*Library, error) {
	l := &Library{templates: make(map[string]*Template)}
	n, err := l.load(assets.Templates, assets.TemplatesDir, true)
	if err != nil {
		return nil, fmt.Errorf("load built-in templates: %w", err)
	}
	log.Debug().Int("count", n).Msg("Built-in templates loaded")
	return l, nil
}

// LoadDir adds the *.json, *.yaml and *.yml templates in dir. Malformed or
// invalid documents are logged and skipped.
func (l *Library) LoadDir(dir string) (int, error) {
	n, err := l.load(os.DirFS(dir), ".", false)
	if err != nil {
		return n, err
	}
	log.Info().Str("dir", dir).Int("count", n).Msg("Templates loaded")
	return n, nil
}

func (l *Library) load(fsys fs.FS, dir string, strict bool) (int, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("read template dir: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := path.Ext(e.Name())
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)

		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return loaded, fmt.Errorf("read template %s: %w", e.Name(), err)
		}
		t, err := ParseTemplate(name, data, ext != ".json")
		if err != nil {
			if strict {
				return loaded, err
			}
			log.Warn().Err(err).Str("file", e.Name()).Msg("Skipping template")
			continue
		}

		l.mu.Lock()
		l.templates[name] = t
		l.mu.Unlock()
		loaded++
		log.Debug().Str("template", name).Int("slots", t.Slots()).Msg("Template loaded")
	}
	return loaded, nil
}

// ParseTemplate decodes and validates a template document.
func ParseTemplate(name string, data []byte, isYAML bool) (*Template, error) {
	var t Template
	var err error
	if isYAML {
		err = yaml.Unmarshal(data, &t)
	} else {
		err = json.Unmarshal(data, &t)
	}
	if err != nil {
		return nil, &InvalidTemplateError{Template: name, Reason: err.Error()}
	}
	t.Name = name
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Add registers t under t.Name after validating it.
func (l *Library) Add(t *Template) error {
	if t.Name == "" {
		return &InvalidTemplateError{Reason: "template name is required"}
	}
	if err := t.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.templates[t.Name] = t
	l.mu.Unlock()
	return nil
}

// Get returns the named template.
func (l *Library) Get(name string) (*Template, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return t, nil
}

// Names returns the template names in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the templates sorted by name.
func (l *Library) List() []*Template {
	names := l.Names()
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Template, 0, len(names))
	for _, name := range names {
		out = append(out, l.templates[name])
	}
	return out
}

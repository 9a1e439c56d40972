package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownTemplate is returned when no template is registered under a name.
var ErrUnknownTemplate = errors.New("template not found")

// Template formats.
const (
	FormatText = "text"
	FormatJSON = "json" // placeholders are JSON-string escaped
)

var varRegex = regexp.MustCompile(`\{\{\s*([\w.-]+)\s*\}\}`)

// Vars holds template values. Nested maps are addressed with dotted paths.
type Vars map[string]any

// TemplateEngine manages prompt and narration templates
type TemplateEngine struct {
	templates map[string]*Template
	mu        sync.RWMutex
}

// Template is a text with {{path}} placeholders.
type Template struct {
	Name        string   `json:"name"`
	Content     string   `json:"content"`
	Variables   []string `json:"variables"`
	Description string   `json:"description"`
	Format      string   `json:"format,omitempty"`
}

// NewTemplateEngine creates a new template engine
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{
		templates: make(map[string]*Template),
	}
}

// RegisterTemplate registers a new template
func (e *TemplateEngine) RegisterTemplate(tmpl *Template) error {
	if tmpl == nil || tmpl.Name == "" {
		return fmt.Errorf("template must have a name")
	}
	if len(tmpl.Variables) == 0 {
		tmpl.Variables = ParseTemplateVariables(tmpl.Content)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[tmpl.Name] = tmpl
	return nil
}

// GetTemplate retrieves a template by name
func (e *TemplateEngine) GetTemplate(name string) (*Template, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tmpl, ok := e.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	return tmpl, nil
}

func (e *TemplateEngine) HasTemplate(name string) bool {
	_, err := e.GetTemplate(name)
	return err == nil
}

// Render fills a template. Unresolved placeholders are left in place.
func (e *TemplateEngine) Render(name string, vars Vars) (string, error) {
	tmpl, err := e.GetTemplate(name)
	if err != nil {
		return "", err
	}
	return renderTemplate(tmpl, vars), nil
}

func renderTemplate(tmpl *Template, vars Vars) string {
	escape := tmpl.Format == FormatJSON
	return varRegex.ReplaceAllStringFunc(tmpl.Content, func(match string) string {
		path := varRegex.FindStringSubmatch(match)[1]
		value, ok := lookup(vars, path)
		if !ok {
			return match
		}
		text := stringify(value)
		if escape {
			return jsonEscape(text)
		}
		return text
	})
}

func lookup(vars Vars, path string) (any, bool) {
	var current any = map[string]any(vars)
	for _, key := range strings.Split(path, ".") {
		switch m := current.(type) {
		case map[string]any:
			v, ok := m[key]
			if !ok {
				return nil, false
			}
			current = v
		case Vars:
			v, ok := m[key]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case map[string]any, Vars, []any, []string:
		data, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
	return fmt.Sprint(v)
}

func jsonEscape(s string) string {
	data, _ := json.Marshal(s)
	return string(data[1 : len(data)-1])
}

// ParseTemplateVariables extracts variables from a template
func ParseTemplateVariables(templateContent string) []string {
	matches := varRegex.FindAllStringSubmatch(templateContent, -1)

	uniqueVars := make(map[string]bool)
	for _, match := range matches {
		if len(match) > 1 {
			uniqueVars[match[1]] = true
		}
	}

	vars := make([]string, 0, len(uniqueVars))
	for v := range uniqueVars {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// ExportTemplate exports a template as JSON
func (e *TemplateEngine) ExportTemplate(name string) (string, error) {
	tmpl, err := e.GetTemplate(name)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(tmpl, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal template: %w", err)
	}

	return string(data), nil
}

// Names lists the registered templates.
func (e *TemplateEngine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.templates))
	for name := range e.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadOverrides imports every *.json template in dir, replacing any built-in
// of the same name. A missing dir is not an error. Files are applied in name
// order and the imported template names are returned.
func (e *TemplateEngine) LoadOverrides(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
	}
	sort.Strings(paths)

	var imported []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return imported, fmt.Errorf("failed to read template %s: %w", path, err)
		}
		name, err := e.importTemplate(string(data))
		if err != nil {
			return imported, fmt.Errorf("template %s: %w", path, err)
		}
		imported = append(imported, name)
	}
	return imported, nil
}

// ImportTemplate imports a template from JSON
func (e *TemplateEngine) ImportTemplate(jsonData string) error {
	_, err := e.importTemplate(jsonData)
	return err
}

func (e *TemplateEngine) importTemplate(jsonData string) (string, error) {
	var tmpl Template
	if err := json.Unmarshal([]byte(jsonData), &tmpl); err != nil {
		return "", fmt.Errorf("failed to unmarshal template: %w", err)
	}
	if strings.TrimSpace(tmpl.Content) == "" {
		return "", fmt.Errorf("template %q has no content", tmpl.Name)
	}
	switch tmpl.Format {
	case "", FormatText, FormatJSON:
	default:
		return "", fmt.Errorf("template %q has unknown format %q", tmpl.Name, tmpl.Format)
	}

	tmpl.Variables = ParseTemplateVariables(tmpl.Content)
	if err := e.RegisterTemplate(&tmpl); err != nil {
		return "", err
	}
	return tmpl.Name, nil
}

package templates

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"
)

// Renderer holds a fixed set of named message templates, parsed once with
// strict missing-key semantics.
type Renderer struct {
	set *template.Template
}

// New parses every template in texts. Names are the map keys.
func New(texts map[string]string) (*Renderer, error) {
	names := make([]string, 0, len(texts))
	for name := range texts {
		names = append(names, name)
	}
	sort.Strings(names)

	set := template.New("messages").Option("missingkey=error")
	for _, name := range names {
		if texts[name] == "" {
			return nil, fmt.Errorf("templates: template text required for %q", name)
		}
		if _, err := set.New(name).Parse(texts[name]); err != nil {
			return nil, fmt.Errorf("templates: parse %s: %w", name, err)
		}
	}
	return &Renderer{set: set}, nil
}

// Render executes the named template with data.
func (r *Renderer) Render(name string, data any) (string, error) {
	t := r.set.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("templates: unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute %s: %w", name, err)
	}
	return buf.String(), nil
}

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"sigs.k8s.io/yaml"
)

// Render encodes doc as JSON with two-space indentation and a trailing
// newline. Output always validates again to an equal document.
func Render(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("rendering document %q: %w", doc.Name(), err)
	}
	return buf.Bytes(), nil
}

// RenderYAML encodes doc as YAML for display. Stored documents are always JSON.
func RenderYAML(doc *Document) ([]byte, error) {
	raw, err := Render(doc)
	if err != nil {
		return nil, err
	}
	out, err := yaml.JSONToYAML(raw)
	if err != nil {
		return nil, fmt.Errorf("converting document %q to YAML: %w", doc.Name(), err)
	}
	return out, nil
}

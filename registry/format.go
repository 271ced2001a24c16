package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dlclark/regexp2/v2"
)

// FormatEntry is one chat-template format: a Jinja-style text template
// (rendered with Go's text/template, given a role-tagged message list and
// an AddGenerationPrompt flag; no special-token values are passed to the
// template) that turns a thread into the raw prompt
// text a local model expects, plus the regex patterns matching the model
// identifiers it applies to.
type FormatEntry struct {
	Template string
	Patterns []string
}

// rawFormatEntry is a format's on-disk shape: {"template": "...", "match":
// "regex" | ["regex", ...]}.
type rawFormatEntry struct {
	Template string          `json:"template"`
	Match    json.RawMessage `json:"match"`
}

func (e rawFormatEntry) patterns() ([]string, error) {
	if len(e.Match) == 0 {
		return nil, nil
	}
	var one string
	if err := json.Unmarshal(e.Match, &one); err == nil {
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(e.Match, &many); err != nil {
		return nil, fmt.Errorf("match must be a string or list of strings: %w", err)
	}
	return many, nil
}

// formatsDoc holds a parsed formats.json document plus the key declaration
// order, since pattern resolution is first-match-wins in declaration order.
type formatsDoc struct {
	order   []string
	entries map[string]FormatEntry
	links   map[string]string
}

// parseFormatsDoc reads raw as a formats.json document, preserving object
// key order (encoding/json's map decoding does not) by walking the decoder
// token-by-token rather than unmarshaling into a map.
func parseFormatsDoc(raw []byte) (*formatsDoc, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("registry: parse formats: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("registry: formats file must be a JSON object")
	}

	doc := &formatsDoc{entries: map[string]FormatEntry{}, links: map[string]string{}}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("registry: parse formats: %w", err)
		}
		name, _ := keyTok.(string)

		var body json.RawMessage
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("registry: parse format %q: %w", name, err)
		}

		var link string
		if err := json.Unmarshal(body, &link); err == nil {
			doc.links[name] = link
			doc.order = append(doc.order, name)
			continue
		}

		var raw rawFormatEntry
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("registry: parse format %q: %w", name, err)
		}
		patterns, err := raw.patterns()
		if err != nil {
			return nil, fmt.Errorf("registry: parse format %q: %w", name, err)
		}
		doc.entries[name] = FormatEntry{Template: raw.Template, Patterns: patterns}
		doc.order = append(doc.order, name)
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, fmt.Errorf("registry: parse formats: %w", err)
	}
	return doc, nil
}

func (r *Registry) mergeFormats(raw []byte) error {
	doc, err := parseFormatsDoc(raw)
	if err != nil {
		return err
	}
	for _, name := range doc.order {
		if _, known := r.formats[name]; !known {
			if _, known := r.formatLinks[name]; !known {
				r.formatOrder = append(r.formatOrder, name)
			}
		}
		if f, ok := doc.entries[name]; ok {
			r.formats[name] = f
			delete(r.formatLinks, name)
		}
		if link, ok := doc.links[name]; ok {
			r.formatLinks[name] = link
			delete(r.formats, name)
		}
	}
	return nil
}

// AddFormats merges a JSON formats file into the format directory, used the
// same way AddFile extends the model directory.
func (r *Registry) AddFormats(path string) error {
	raw, err := readFile(path)
	if err != nil {
		return err
	}
	return r.mergeFormats(raw)
}

// ResolveFormat returns the named format (following string links), or the
// first format whose pattern list matches modelName when name is empty.
// Pattern candidates are tried in declaration order; the first match wins.
func (r *Registry) ResolveFormat(name, modelName string) (FormatEntry, error) {
	if name != "" {
		return r.resolveFormatName(name, map[string]bool{})
	}

	for _, candidate := range r.formatOrder {
		f, ok := r.formats[candidate]
		if !ok {
			continue // a pure link entry has no patterns of its own
		}
		for _, pattern := range f.Patterns {
			matched, err := matchPattern(pattern, modelName)
			if err != nil {
				return FormatEntry{}, err
			}
			if matched {
				return f, nil
			}
		}
	}
	return FormatEntry{}, fmt.Errorf("registry: no format matches model %q", modelName)
}

func (r *Registry) resolveFormatName(name string, visited map[string]bool) (FormatEntry, error) {
	if visited[name] {
		return FormatEntry{}, fmt.Errorf("registry: cyclic format link resolving %q", name)
	}
	visited[name] = true

	if f, ok := r.formats[name]; ok {
		return f, nil
	}
	if link, ok := r.formatLinks[name]; ok {
		return r.resolveFormatName(link, visited)
	}
	return FormatEntry{}, fmt.Errorf("registry: unknown format %q", name)
}

// ResolveFormatForModelFile resolves the chat-template format for a local
// model file at modelPath, consulting a models.json/formats.json pair
// co-located in the model's own directory before falling back to the
// registry's own format directory.
func (r *Registry) ResolveFormatForModelFile(modelPath, modelName string) (FormatEntry, error) {
	dir := filepath.Dir(modelPath)

	if name, ok := collocatedFormatName(dir, modelName); ok {
		if f, err := r.resolveCollocatedOrOwn(dir, name, modelName); err == nil {
			return f, nil
		}
	}

	if f, ok, err := collocatedFormatMatch(dir, modelName); err != nil {
		return FormatEntry{}, err
	} else if ok {
		return f, nil
	}

	return r.ResolveFormat("", modelName)
}

// resolveCollocatedOrOwn resolves a named format first against a
// co-located formats.json (if present), then against the registry's own
// format directory.
func (r *Registry) resolveCollocatedOrOwn(dir, name, modelName string) (FormatEntry, error) {
	path := filepath.Join(dir, "formats.json")
	if fileExists(path) {
		if raw, err := os.ReadFile(path); err == nil {
			if doc, err := parseFormatsDoc(raw); err == nil {
				if f, ok := doc.entries[name]; ok {
					return f, nil
				}
			}
		}
	}
	return r.ResolveFormat(name, modelName)
}

// collocatedFormatName reads dir/models.json for a "local" model entry
// named modelName and returns the format name it names, if any.
func collocatedFormatName(dir, modelName string) (string, bool) {
	path := filepath.Join(dir, "models.json")
	if !fileExists(path) {
		return "", false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var doc map[string]map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", false
	}
	entries, ok := doc["local"]
	if !ok {
		return "", false
	}
	entry, ok := entries[modelName].(map[string]any)
	if !ok {
		return "", false
	}
	name, ok := entry["format"].(string)
	return name, ok && name != ""
}

// collocatedFormatMatch pattern-matches modelName against a co-located
// formats.json's own entries, independent of any models.json reference.
func collocatedFormatMatch(dir, modelName string) (FormatEntry, bool, error) {
	path := filepath.Join(dir, "formats.json")
	if !fileExists(path) {
		return FormatEntry{}, false, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return FormatEntry{}, false, nil
	}
	doc, err := parseFormatsDoc(raw)
	if err != nil {
		return FormatEntry{}, false, err
	}
	for _, name := range doc.order {
		f, ok := doc.entries[name]
		if !ok {
			continue
		}
		for _, pattern := range f.Patterns {
			matched, err := matchPattern(pattern, modelName)
			if err != nil {
				return FormatEntry{}, false, err
			}
			if matched {
				return f, true, nil
			}
		}
	}
	return FormatEntry{}, false, nil
}

// matchPattern reports whether name matches the case-insensitive regular
// expression pattern, using regexp2 rather than stdlib regexp so the same
// engine the rest of the directory uses for pattern work handles this too.
func matchPattern(pattern, name string) (bool, error) {
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
	if err != nil {
		return false, fmt.Errorf("registry: compile pattern %q: %w", pattern, err)
	}
	return re.MatchString(name)
}

// Package registry unifies model and chat-format configuration behind
// short resource names like "openai:gpt-4o" or an alias like "sonnet", so
// callers can swap providers and models without touching call sites.
package registry

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed base.json formats.json
var embedded embed.FS

// ModelEntry is one resolved provider:model configuration.
type ModelEntry struct {
	Provider string
	Name     string
	Format   string
	Args     map[string]any
}

// Registry holds a two-layer (base + local overlay) model directory plus a
// format directory, along with the search path used to locate local model
// files.
type Registry struct {
	base        map[string]map[string]any
	local       map[string]map[string]any
	formats     map[string]FormatEntry
	formatLinks map[string]string
	formatOrder []string
	searchPath  []string
}

const (
	envDirConf    = "SIBILA_MODEL_DIR_CONF"
	envSearchPath = "SIBILA_MODEL_SEARCH_PATH"
)

var allProviders = map[string]bool{
	"openai": true, "anthropic": true, "google": true,
	"mistral": true, "groq": true, "fireworks": true, "together": true,
	"local": true, "alias": true,
}

// New loads the embedded base directory, then loads models.json and
// formats.json (where present) from each directory in SIBILA_MODELS (a
// ';'-delimited list), overlays SIBILA_MODEL_DIR_CONF (a ';'-delimited list
// of JSON config file paths) and extends the search path from
// SIBILA_MODEL_SEARCH_PATH.
func New() (*Registry, error) {
	r := &Registry{
		base:        map[string]map[string]any{},
		local:       map[string]map[string]any{},
		formats:     map[string]FormatEntry{},
		formatLinks: map[string]string{},
	}

	if err := r.loadEmbeddedJSON("base.json", r.base); err != nil {
		return nil, err
	}
	if err := r.loadEmbeddedFormats("formats.json"); err != nil {
		return nil, err
	}

	if dirs := os.Getenv("SIBILA_MODELS"); dirs != "" {
		for _, dir := range strings.FieldsFunc(dirs, func(c rune) bool { return c == ';' }) {
			if p := filepath.Join(expandHome(dir), "models.json"); fileExists(p) {
				if err := r.AddFile(p); err != nil {
					return nil, err
				}
			}
			if p := filepath.Join(expandHome(dir), "formats.json"); fileExists(p) {
				if err := r.AddFormats(p); err != nil {
					return nil, err
				}
			}
		}
	}
	if paths := os.Getenv(envDirConf); paths != "" {
		for _, p := range strings.Split(paths, ";") {
			if err := r.AddFile(p); err != nil {
				return nil, err
			}
		}
	}
	if paths := os.Getenv(envSearchPath); paths != "" {
		r.AddSearchPath(strings.Split(paths, ";"))
	}

	return r, nil
}

func (r *Registry) loadEmbeddedJSON(name string, into map[string]map[string]any) error {
	raw, err := embedded.ReadFile(name)
	if err != nil {
		return fmt.Errorf("registry: read embedded %s: %w", name, err)
	}
	var doc map[string]map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("registry: parse embedded %s: %w", name, err)
	}
	for k, v := range doc {
		into[k] = v
	}
	return nil
}

func (r *Registry) loadEmbeddedFormats(name string) error {
	raw, err := embedded.ReadFile(name)
	if err != nil {
		return fmt.Errorf("registry: read embedded %s: %w", name, err)
	}
	return r.mergeFormats(raw)
}

// AddFile merges a JSON model-directory file into the local overlay, and
// prepends its containing folder to the model search path.
func (r *Registry) AddFile(path string) error {
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return fmt.Errorf("registry: resolve path %q: %w", path, err)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("registry: read %q: %w", abs, err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("registry: parse %q: %w", abs, err)
	}
	r.AddSearchPath([]string{filepath.Dir(abs)})
	for provider, body := range doc {
		var entries map[string]any
		if err := json.Unmarshal(body, &entries); err != nil {
			return fmt.Errorf("registry: parse provider %q in %q: %w", provider, abs, err)
		}
		if r.local[provider] == nil {
			r.local[provider] = map[string]any{}
		}
		for name, v := range entries {
			r.local[provider][name] = v
		}
	}
	return nil
}

// AddSearchPath prepends paths to the model search path used to locate
// local model files by filename.
func (r *Registry) AddSearchPath(paths []string) {
	for i := len(paths) - 1; i >= 0; i-- {
		p := expandHome(paths[i])
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		r.searchPath = removeString(r.searchPath, abs)
		r.searchPath = append([]string{abs}, r.searchPath...)
	}
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// LocateFile searches the model search path for a named local model file.
func (r *Registry) LocateFile(name string) (string, bool) {
	if filepath.IsAbs(name) {
		if fileExists(name) {
			return name, true
		}
		return "", false
	}
	for _, dir := range r.searchPath {
		full := filepath.Join(dir, name)
		if fileExists(full) {
			return full, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readFile(path string) ([]byte, error) {
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("registry: resolve path %q: %w", path, err)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("registry: read %q: %w", abs, err)
	}
	return raw, nil
}

// Set writes (or overwrites) a model entry at provider:name in the local
// overlay.
func (r *Registry) Set(provider, name string, entry map[string]any) error {
	if !allProviders[provider] {
		return fmt.Errorf("registry: unknown provider %q", provider)
	}
	if r.local[provider] == nil {
		r.local[provider] = map[string]any{}
	}
	r.local[provider][name] = entry
	return nil
}

// SetLink writes a string alias/link at provider:name pointing at target.
func (r *Registry) SetLink(provider, name, target string) error {
	if !allProviders[provider] {
		return fmt.Errorf("registry: unknown provider %q", provider)
	}
	if r.local[provider] == nil {
		r.local[provider] = map[string]any{}
	}
	r.local[provider][name] = target
	return nil
}

// Delete removes a local overlay entry, refusing if another local entry
// links to it.
func (r *Registry) Delete(provider, name string) error {
	for p, entries := range r.local {
		for n, v := range entries {
			if p == provider && n == name {
				continue
			}
			if link, ok := v.(string); ok && resolvesTo(p, link, provider, name) {
				return fmt.Errorf("registry: %s:%s is linked from %s:%s, unlink first", provider, name, p, n)
			}
		}
	}
	if r.local[provider] != nil {
		delete(r.local[provider], name)
	}
	return nil
}

func resolvesTo(fromProvider, link, provider, name string) bool {
	p, n := splitURN(fromProvider, link)
	return p == provider && n == name
}

// List returns the names of the entries under provider that have the given
// prefix, from both the base and local layers, each name once.
func (r *Registry) List(provider, prefix string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(m map[string]any) {
		for name := range m {
			if name == "default" {
				continue
			}
			if strings.HasPrefix(name, prefix) && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	add(anyMap(r.base[provider]))
	add(r.local[provider])
	return out
}

func anyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return m
}

// Resolve follows alias and link entries starting at urn ("provider:name"
// or a bare alias) until it reaches a concrete model entry, merging
// default -> named entry -> overrides, and returns the fully materialised
// ModelEntry.
func (r *Registry) Resolve(urn string, overrides map[string]any) (ModelEntry, error) {
	provider, name, err := r.resolveURN(urn, map[string]bool{})
	if err != nil {
		return ModelEntry{}, err
	}

	merged := map[string]any{}
	if def, ok := r.lookup(provider, "default"); ok {
		if defMap, ok := def.(map[string]any); ok {
			mergeInto(merged, defMap)
		}
	}
	entryVal, found := r.lookup(provider, name)
	if found {
		if entryMap, ok := entryVal.(map[string]any); ok {
			mergeInto(merged, entryMap)
		}
	} else {
		merged["name"] = name
	}
	mergeInto(merged, overrides)

	format, _ := merged["format"].(string)
	return ModelEntry{Provider: provider, Name: name, Format: format, Args: merged}, nil
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

// lookup reads provider:name, local overlay first, then base.
func (r *Registry) lookup(provider, name string) (any, bool) {
	if entries, ok := r.local[provider]; ok {
		if v, ok := entries[name]; ok {
			return v, true
		}
	}
	if entries, ok := r.base[provider]; ok {
		if v, ok := entries[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (r *Registry) resolveURN(urn string, visited map[string]bool) (provider, name string, err error) {
	if visited[urn] {
		return "", "", fmt.Errorf("registry: cyclic link resolving %q", urn)
	}
	visited[urn] = true

	provider, name = splitURN("alias", urn)
	if !allProviders[provider] {
		return "", "", fmt.Errorf("registry: unknown provider %q in %q", provider, urn)
	}

	v, ok := r.lookup(provider, name)
	if ok {
		if link, isLink := v.(string); isLink {
			next := link
			if !strings.Contains(next, ":") {
				if provider == "alias" {
					return "", "", fmt.Errorf("registry: alias %q must link to provider:name", name)
				}
				next = provider + ":" + next
			}
			return r.resolveURN(next, visited)
		}
		return provider, name, nil
	}

	if provider == "alias" {
		return "", "", fmt.Errorf("registry: alias %q not found", name)
	}
	// Not found as a concrete entry: name passes through as-is (e.g. a raw
	// upstream model name the directory has no config for).
	return provider, name, nil
}

func splitURN(defaultProvider, urn string) (provider, name string) {
	if i := strings.Index(urn, ":"); i >= 0 {
		return urn[:i], urn[i+1:]
	}
	return defaultProvider, urn
}

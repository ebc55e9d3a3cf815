// Package prompts serves the LLM prompt templates embedded in the binary.
// Each JSON file maps a prompt key to its template text.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
)

//go:embed *.json
var files embed.FS

// parsed holds filename -> map[string]string.
var parsed sync.Map

// Get returns the prompt stored under key in filename, e.g. "matching.json".
func Get(filename, key string) (string, error) {
	set, err := load(filename)
	if err != nil {
		return "", err
	}
	prompt, ok := set[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// MustGet is Get for prompts the binary cannot run without.
func MustGet(filename, key string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return prompt
}

// Format fills {{.Name}} placeholders from data. Placeholders without a value
// are left as they are.
func Format(template string, data map[string]string) string {
	if len(data) == 0 {
		return template
	}
	pairs := make([]string, 0, 2*len(data))
	for name, value := range data {
		pairs = append(pairs, "{{."+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// List returns the prompt keys defined in filename, sorted.
func List(filename string) ([]string, error) {
	set, err := load(filename)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

// ClearCache forgets every parsed file.
func ClearCache() {
	parsed.Clear()
}

func load(filename string) (map[string]string, error) {
	if set, ok := parsed.Load(filename); ok {
		return set.(map[string]string), nil
	}

	raw, err := files.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}
	var set map[string]string
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	actual, _ := parsed.LoadOrStore(filename, set)
	return actual.(map[string]string), nil
}

package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// sections are the top-level keys of Config.
var sections = map[string]bool{
	"shapes":     true,
	"channels":   true,
	"activation": true,
	"media":      true,
	"commands":   true,
	"admin":      true,
	"logging":    true,
}

var secretFields = map[string]bool{
	"apiKey":   true,
	"token":    true,
	"password": true,
}

// Document is the config file as a YAML tree, edited by dotted key such as
// "channels.irc.server". Edits that no longer decode into Config are
// rejected.
type Document struct {
	path string
	root map[string]any
}

// OpenDocument reads the config file at path. A missing file yields an
// empty document.
func OpenDocument(path string) (*Document, error) {
	d := &Document{path: path, root: map[string]any{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &d.root); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if d.root == nil {
		d.root = map[string]any{}
	}
	return d, nil
}

// Save writes the document back to its file.
func (d *Document) Save() error {
	data, err := yaml.Marshal(d.root)
	if err != nil {
		return err
	}
	return os.WriteFile(d.path, data, 0o600)
}

// Get returns the value at key.
func (d *Document) Get(key string) (any, error) {
	parts, err := splitKey(key)
	if err != nil {
		return nil, err
	}
	var cur any = d.root
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, notFound(key)
		}
		if cur, ok = m[p]; !ok {
			return nil, notFound(key)
		}
	}
	return cur, nil
}

// Set stores value at key, creating intermediate sections. The document
// is left unchanged when the result is not a valid config.
func (d *Document) Set(key string, value any) error {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}
	parent := d.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := parent[p].(map[string]any)
		if !ok {
			if _, exists := parent[p]; exists {
				return &ConfigError{Message: fmt.Sprintf("%s is not a section", key)}
			}
			next = map[string]any{}
			parent[p] = next
		}
		parent = next
	}

	last := parts[len(parts)-1]
	prev, existed := parent[last]
	parent[last] = value
	if err := d.check(); err != nil {
		if existed {
			parent[last] = prev
		} else {
			delete(parent, last)
		}
		return err
	}
	return nil
}

// Unset removes key.
func (d *Document) Unset(key string) error {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}
	parent := d.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := parent[p].(map[string]any)
		if !ok {
			return notFound(key)
		}
		parent = next
	}
	last := parts[len(parts)-1]
	if _, ok := parent[last]; !ok {
		return notFound(key)
	}
	delete(parent, last)
	return nil
}

// check decodes the tree into Config, rejecting unknown fields and
// mistyped values.
func (d *Document) check() error {
	data, err := yaml.Marshal(d.root)
	if err != nil {
		return err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return &ConfigError{Message: "invalid value: " + err.Error()}
	}
	return nil
}

// ParseValue types a command-line value the way YAML would: "true",
// "18790" and "[a, b]" become a bool, an int and a list.
func ParseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	if _, ok := v.(map[string]any); ok {
		return s
	}
	return v
}

// IsSecret reports whether key names a credential.
func IsSecret(key string) bool {
	i := strings.LastIndexByte(key, '.')
	return secretFields[key[i+1:]]
}

func splitKey(key string) ([]string, error) {
	if key == "" {
		return nil, &ConfigError{Message: "empty config key"}
	}
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: fmt.Sprintf("config key %q has an empty segment", key)}
		}
	}
	if !sections[parts[0]] {
		return nil, &ConfigError{Message: fmt.Sprintf("unknown config section %q", parts[0])}
	}
	return parts, nil
}

func notFound(key string) error {
	return &ConfigError{Message: fmt.Sprintf("key %q not found", key)}
}

// Package frontmatter implements the engine's one permitted direct file
// write: updating the structured metadata block at the top of a local
// task file (spec.md §4.11). It edits a gopkg.in/yaml.v3 node tree in
// place rather than decoding into a map, so keys the engine doesn't own
// keep their original order, comments, and scalar style.
package frontmatter

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Keys owned exclusively by the writer. Any other key found in the
// block is left untouched.
const (
	KeyRemoteKey string = "remote_key"
	KeyRemoteURL string = "remote_url"
	KeyLastSync  string = "last_sync"
	KeySyncState string = "sync_state"
)

var ownedKeys = map[string]bool{
	KeyRemoteKey: true,
	KeyRemoteURL: true,
	KeyLastSync:  true,
	KeySyncState: true,
}

// Update holds the values to set for the owned keys. A nil pointer
// leaves that key untouched; a pointer to "" removes the key (spec.md
// §4.11 "setting a key to absent removes it").
type Update struct {
	RemoteKey *string
	RemoteURL *string
	LastSync  *string
	SyncState *string
}

func (u Update) fields() map[string]*string {
	return map[string]*string{
		KeyRemoteKey: u.RemoteKey,
		KeyRemoteURL: u.RemoteURL,
		KeyLastSync:  u.LastSync,
		KeySyncState: u.SyncState,
	}
}

// ApplyToFile reads the task file at path, applies u to its frontmatter
// block (creating one if none exists), and writes the result back via a
// temp-file-plus-rename so a reader never observes a partial write. The
// body is never touched.
func ApplyToFile(path string, u Update) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read task file %s: %w", path, err)
	}

	updated, err := Apply(data, u)
	if err != nil {
		return fmt.Errorf("update frontmatter in %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, updated, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// Apply is the pure transformation ApplyToFile wraps: given the full
// file content, returns the content with the frontmatter block updated.
func Apply(content []byte, u Update) ([]byte, error) {
	block, body, found := splitFrontmatter(content)

	var doc yaml.Node
	if found && strings.TrimSpace(block) != "" {
		if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
			return nil, fmt.Errorf("parse frontmatter: %w", err)
		}
	}

	mapping := rootMapping(&doc)
	applyFields(mapping, u.fields())

	var rendered []byte
	if len(mapping.Content) > 0 {
		out, err := yaml.Marshal(mapping)
		if err != nil {
			return nil, fmt.Errorf("marshal frontmatter: %w", err)
		}
		rendered = out
	}

	var buf bytes.Buffer
	if len(rendered) > 0 {
		buf.WriteString(delimiter)
		buf.WriteString("\n")
		buf.Write(rendered)
		buf.WriteString(delimiter)
		buf.WriteString("\n")
	}
	buf.WriteString(body)

	return buf.Bytes(), nil
}

// splitFrontmatter locates the block between the first two top-of-file
// `---` sentinels. found is false if the file has no frontmatter block,
// in which case body is the entire original content.
func splitFrontmatter(content []byte) (block, body string, found bool) {
	str := string(content)
	if !strings.HasPrefix(str, delimiter) {
		return "", str, false
	}

	rest := str[len(delimiter):]
	idx := strings.Index(rest, "\n"+delimiter)
	if idx == -1 {
		return "", str, false
	}

	block = strings.TrimPrefix(rest[:idx], "\n")
	body = strings.TrimPrefix(rest[idx+len("\n"+delimiter):], "\n")
	return block, body, true
}

// rootMapping returns the document's root mapping node, creating an
// empty one if doc is the zero value (no prior frontmatter block).
func rootMapping(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	if doc.Kind == yaml.MappingNode {
		return doc
	}
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// applyFields sets, replaces, or removes the engine's owned keys on
// mapping in place. Keys not in fields are left exactly as parsed:
// same node, same position, same style.
func applyFields(mapping *yaml.Node, fields map[string]*string) {
	for key, val := range fields {
		if val == nil {
			continue
		}
		if idx := findKeyIndex(mapping, key); idx != -1 {
			if *val == "" {
				mapping.Content = append(mapping.Content[:idx], mapping.Content[idx+2:]...)
				continue
			}
			mapping.Content[idx+1] = scalarNode(*val)
			continue
		}
		if *val == "" {
			continue
		}
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			scalarNode(*val),
		)
	}
}

// findKeyIndex returns the index of key's key-node within a mapping
// node's flat Content slice ([k0, v0, k1, v1, ...]), or -1.
func findKeyIndex(mapping *yaml.Node, key string) int {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

// OwnsKey reports whether key is one of the four keys this writer ever
// touches; used by callers that want to warn on frontmatter drift.
func OwnsKey(key string) bool {
	return ownedKeys[key]
}

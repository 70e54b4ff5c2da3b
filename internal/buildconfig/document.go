package buildconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the external, partially specified representation of a
// BuildConfig. Nil fields are absent and take their defaults on resolution;
// non-nil fields, including empty sequences, are used verbatim.
type Document struct {
	EntryPoints   map[string]string   `yaml:"entryPoints,omitempty" json:"entryPoints,omitempty"`
	Output        *OutputDocument     `yaml:"output,omitempty" json:"output,omitempty"`
	RootDirectory *string             `yaml:"rootDirectory,omitempty" json:"rootDirectory,omitempty"`
	Mode          *string             `yaml:"mode,omitempty" json:"mode,omitempty"`
	Resolution    *ResolutionDocument `yaml:"resolution,omitempty" json:"resolution,omitempty"`
	Externals     *[]string           `yaml:"externals,omitempty" json:"externals,omitempty"`
	Runtime       *RuntimeDocument    `yaml:"runtime,omitempty" json:"runtime,omitempty"`
}

// OutputDocument is the external form of OutputSettings.
type OutputDocument struct {
	Path             *string `yaml:"path,omitempty" json:"path,omitempty"`
	PublicPath       *string `yaml:"publicPath,omitempty" json:"publicPath,omitempty"`
	FilenameTemplate *string `yaml:"filenameTemplate,omitempty" json:"filenameTemplate,omitempty"`
}

// ResolutionDocument is the external form of ResolutionSettings.
type ResolutionDocument struct {
	Alias          map[string]string `yaml:"alias,omitempty" json:"alias,omitempty"`
	MainFields     *[]string         `yaml:"mainFields,omitempty" json:"mainFields,omitempty"`
	MainFiles      *[]string         `yaml:"mainFiles,omitempty" json:"mainFiles,omitempty"`
	Extensions     *[]string         `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	Conditions     *[]string         `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	FollowSymlinks *bool             `yaml:"followSymlinks,omitempty" json:"followSymlinks,omitempty"`
}

// RuntimeDocument is the external form of RuntimeSettings.
type RuntimeDocument struct {
	RuntimePath *string   `yaml:"runtimePath,omitempty" json:"runtimePath,omitempty"`
	Plugins     *[]string `yaml:"plugins,omitempty" json:"plugins,omitempty"`
}

// Overrides are shell-level values (CLI flags) layered over a document before
// resolution. Nil fields leave the document untouched.
type Overrides struct {
	Mode          *string
	RootDirectory *string
	OutputPath    *string
}

var topLevelFields = fieldSet("entryPoints", "output", "rootDirectory", "mode", "resolution", "externals", "runtime")

var sectionFields = map[string]map[string]struct{}{
	"output":     fieldSet("path", "publicPath", "filenameTemplate"),
	"resolution": fieldSet("alias", "mainFields", "mainFiles", "extensions", "conditions", "followSymlinks"),
	"runtime":    fieldSet("runtimePath", "plugins"),
}

// Parse decodes a YAML or JSON document. Duplicate mapping keys collapse to
// their last occurrence. Keys the document model does not recognise are
// returned as dotted paths (e.g. "output.hash") and otherwise ignored; the
// caller decides whether they are fatal. A recognised field set to null is
// rejected with ErrInvalidConfig; omit the field to get its default.
func Parse(data []byte) (Document, []string, error) {
	var doc Document
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return doc, nil, nil
	}

	body, err := parseTree(trimmed)
	if err != nil {
		return Document{}, nil, err
	}
	if body.Kind == 0 || body.Kind == yaml.DocumentNode || isNull(body) {
		return doc, nil, nil
	}
	if body.Kind != yaml.MappingNode {
		return Document{}, nil, fmt.Errorf("%w: line %d: top level must be a mapping", ErrMalformedConfig, body.Line)
	}

	collapseDuplicateKeys(body)
	if nulls := nullFields(body); len(nulls) > 0 {
		return Document{}, nil, fmt.Errorf("%w: %s must not be null", ErrInvalidConfig, strings.Join(nulls, ", "))
	}
	unknown := unknownFields(body)

	if err := body.Decode(&doc); err != nil {
		return Document{}, nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	return doc, unknown, nil
}

// parseTree returns the root content node of the document. JSON objects go
// through encoding/json first: YAML is not a strict superset of JSON string
// escapes (e.g. "\/").
func parseTree(data []byte) (*yaml.Node, error) {
	if data[0] == '{' && json.Valid(data) {
		var value any
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
		}
		var node yaml.Node
		if err := node.Encode(value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
		}
		return &node, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		return root.Content[0], nil
	}
	return &root, nil
}

// Override returns a copy of the document with the non-nil overrides applied.
func (d Document) Override(o Overrides) Document {
	if o.Mode != nil {
		d.Mode = o.Mode
	}
	if o.RootDirectory != nil {
		d.RootDirectory = o.RootDirectory
	}
	if o.OutputPath != nil {
		var out OutputDocument
		if d.Output != nil {
			out = *d.Output
		}
		out.Path = o.OutputPath
		d.Output = &out
	}
	return d
}

// collapseDuplicateKeys rewrites every mapping in the tree so that only the
// last occurrence of each key survives.
func collapseDuplicateKeys(n *yaml.Node) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range n.Content {
			collapseDuplicateKeys(child)
		}
	case yaml.MappingNode:
		last := make(map[string]int, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			if key := n.Content[i]; isPlainKey(key) {
				last[key.Value] = i
			}
		}

		kept := n.Content[:0]
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			if isPlainKey(key) && last[key.Value] != i {
				continue
			}
			collapseDuplicateKeys(value)
			kept = append(kept, key, value)
		}
		n.Content = kept
	}
}

func isPlainKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Value != "<<"
}

func unknownFields(body *yaml.Node) []string {
	var unknown []string
	for i := 0; i+1 < len(body.Content); i += 2 {
		keyNode, value := body.Content[i], body.Content[i+1]
		if !isPlainKey(keyNode) {
			continue
		}
		key := keyNode.Value
		if _, ok := topLevelFields[key]; !ok {
			unknown = append(unknown, key)
			continue
		}

		known, isSection := sectionFields[key]
		if !isSection {
			continue
		}
		value = deref(value)
		if value.Kind != yaml.MappingNode {
			// Shape mismatches are reported by Decode.
			continue
		}
		for j := 0; j+1 < len(value.Content); j += 2 {
			if !isPlainKey(value.Content[j]) {
				continue
			}
			child := value.Content[j].Value
			if _, ok := known[child]; !ok {
				unknown = append(unknown, key+"."+child)
			}
		}
	}
	return unknown
}

// nullFields lists recognised fields whose value is an explicit null,
// including null entries inside entryPoints, alias and the sequences.
func nullFields(body *yaml.Node) []string {
	var nulls []string
	for i := 0; i+1 < len(body.Content); i += 2 {
		keyNode, value := body.Content[i], deref(body.Content[i+1])
		key := keyNode.Value
		if _, ok := topLevelFields[key]; !ok || !isPlainKey(keyNode) {
			continue
		}
		if isNull(value) {
			nulls = append(nulls, key)
			continue
		}

		known, isSection := sectionFields[key]
		if !isSection {
			nulls = append(nulls, nullEntries(key, value)...)
			continue
		}
		if value.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(value.Content); j += 2 {
			childKey, child := value.Content[j], deref(value.Content[j+1])
			if _, ok := known[childKey.Value]; !ok || !isPlainKey(childKey) {
				continue
			}
			path := key + "." + childKey.Value
			if isNull(child) {
				nulls = append(nulls, path)
				continue
			}
			nulls = append(nulls, nullEntries(path, child)...)
		}
	}
	return nulls
}

// nullEntries reports null values directly inside a map or sequence field.
func nullEntries(path string, n *yaml.Node) []string {
	var nulls []string
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			if isNull(deref(n.Content[i+1])) {
				nulls = append(nulls, path+"."+n.Content[i].Value)
			}
		}
	case yaml.SequenceNode:
		for i, item := range n.Content {
			if isNull(deref(item)) {
				nulls = append(nulls, fmt.Sprintf("%s[%d]", path, i))
			}
		}
	}
	return nulls
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func deref(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		return n.Alias
	}
	return n
}

func fieldSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

package buildconfig

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Format selects the encoding used by MarshalFormat.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat validates a user-supplied output format name.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatYAML, FormatJSON:
		return Format(raw), nil
	default:
		return "", fmt.Errorf("unsupported format %q", raw)
	}
}

// ToDocument converts a resolved configuration back into a fully explicit
// document. Resolving the result against any working directory reproduces cfg.
func ToDocument(cfg BuildConfig) Document {
	mode := cfg.Mode.String()
	return Document{
		EntryPoints:   cloneMap(cfg.EntryPoints),
		RootDirectory: ptr(cfg.RootDirectory),
		Mode:          &mode,
		Output: &OutputDocument{
			Path:             ptr(cfg.Output.Path),
			PublicPath:       ptr(cfg.Output.PublicPath),
			FilenameTemplate: ptr(cfg.Output.FilenameTemplate),
		},
		Resolution: &ResolutionDocument{
			Alias:          cloneMap(cfg.Resolution.Alias),
			MainFields:     ptr(cloneStrings(cfg.Resolution.MainFields)),
			MainFiles:      ptr(cloneStrings(cfg.Resolution.MainFiles)),
			Extensions:     ptr(cloneStrings(cfg.Resolution.Extensions)),
			Conditions:     ptr(cloneStrings(cfg.Resolution.Conditions)),
			FollowSymlinks: ptr(cfg.Resolution.FollowSymlinks),
		},
		Externals: ptr(cloneStrings(cfg.Externals)),
		Runtime: &RuntimeDocument{
			RuntimePath: ptr(cfg.Runtime.RuntimePath),
			Plugins:     ptr(cloneStrings(cfg.Runtime.Plugins)),
		},
	}
}

// Marshal encodes cfg as a YAML document. Map keys are sorted, so equal
// configurations encode to identical bytes.
func Marshal(cfg BuildConfig) ([]byte, error) {
	return MarshalFormat(cfg, FormatYAML)
}

// MarshalFormat encodes cfg as a document in the requested format.
func MarshalFormat(cfg BuildConfig, format Format) ([]byte, error) {
	doc := ToDocument(cfg)
	switch format {
	case FormatYAML:
		out, err := yaml.Marshal(&doc)
		if err != nil {
			return nil, fmt.Errorf("encode YAML: %w", err)
		}
		return out, nil
	case FormatJSON:
		out, err := json.MarshalIndent(&doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode JSON: %w", err)
		}
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func ptr[T any](v T) *T {
	return &v
}

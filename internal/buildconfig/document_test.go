package buildconfig

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseReportsUnknownFields(t *testing.T) {
	t.Parallel()

	input := []byte(`
mode: production
bogus: 1
output:
  path: dist
  hash: true
resolution:
  symlinks: false
entryPoints:
  anything: src/anything.ts
`)
	_, unknown, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"bogus", "output.hash", "resolution.symlinks"}, unknown); diff != "" {
		t.Fatalf("unexpected unknown fields (-want +got):\n%s", diff)
	}
}

func TestResolverRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	input := []byte("bogus: 1\nruntime:\n  path: runtime.js\n")
	_, err := NewResolver().ResolveBytes(input, testWorkingDir)
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 aggregated errors, got %d: %v", got, err)
	}
	if !strings.Contains(err.Error(), `"runtime.path"`) {
		t.Fatalf("expected nested field in error, got %v", err)
	}
}

func TestResolverWarnsOnUnknownFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	resolver := NewResolver(
		WithLogger(zap.New(core)),
		WithUnknownFieldPolicy(UnknownFieldsWarn),
	)

	cfg, err := resolver.ResolveBytes([]byte("mode: production\nbogus: 1\n"), testWorkingDir)
	if err != nil {
		t.Fatalf("ResolveBytes returned error: %v", err)
	}
	if cfg.Mode != ModeProduction {
		t.Fatalf("expected known fields to be applied, got mode %s", cfg.Mode)
	}

	entries := logs.FilterMessage("ignoring unknown configuration field").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(entries))
	}
	if field := entries[0].ContextMap()["field"]; field != "bogus" {
		t.Fatalf("unexpected field in warning: %v", field)
	}
}

func TestParseMalformedDocuments(t *testing.T) {
	t.Parallel()

	inputs := map[string]string{
		"SyntaxError":          "mode: [production\n",
		"TopLevelSequence":     "- a\n- b\n",
		"TopLevelScalar":       "production\n",
		"SectionNotMapping":    "output: 3\n",
		"SequenceNotList":      "resolution:\n  extensions: 5\n",
		"BooleanNotBoolean":    "resolution:\n  followSymlinks: maybe\n",
		"EntryPointsNotStrMap": "entryPoints: [a, b]\n",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, _, err := Parse([]byte(input))
			if !errors.Is(err, ErrMalformedConfig) {
				t.Fatalf("expected ErrMalformedConfig, got %v", err)
			}
		})
	}
}

func TestParseResolverPolicy(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"reject", "warn"} {
		if _, err := ParseUnknownFieldPolicy(raw); err != nil {
			t.Fatalf("ParseUnknownFieldPolicy(%q) returned error: %v", raw, err)
		}
	}
	if _, err := ParseUnknownFieldPolicy("ignore"); err == nil {
		t.Fatalf("expected error for unsupported policy")
	}
	if got := NewResolver().Policy(); got != UnknownFieldsReject {
		t.Fatalf("expected reject by default, got %q", got)
	}
}

func TestParseJSONEscapes(t *testing.T) {
	t.Parallel()

	input := []byte(`{"output": {"publicPath": "\/cdn\/", "filenameTemplate": "[name].js"}, "externals": ["café"]}`)
	cfg, err := NewResolver().ResolveBytes(input, testWorkingDir)
	if err != nil {
		t.Fatalf("ResolveBytes returned error: %v", err)
	}

	if cfg.Output.PublicPath != "/cdn/" {
		t.Fatalf("expected unescaped public path, got %q", cfg.Output.PublicPath)
	}
	if cfg.Output.FilenameTemplate != "[name].js" {
		t.Fatalf("expected unescaped filename template, got %q", cfg.Output.FilenameTemplate)
	}
	if diff := cmp.Diff([]string{"café"}, cfg.Externals); diff != "" {
		t.Fatalf("unexpected externals (-want +got):\n%s", diff)
	}
}

func TestParseJSONUnknownFieldsAndDuplicates(t *testing.T) {
	t.Parallel()

	input := []byte(`{"output": {"path": "a", "path": "b", "hash": true}}`)
	doc, unknown, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if doc.Output == nil || doc.Output.Path == nil || *doc.Output.Path != "b" {
		t.Fatalf("expected last path to win, got %+v", doc.Output)
	}
	if diff := cmp.Diff([]string{"output.hash"}, unknown); diff != "" {
		t.Fatalf("unexpected unknown fields (-want +got):\n%s", diff)
	}
}

func TestParseRejectsExplicitNull(t *testing.T) {
	t.Parallel()

	inputs := map[string]string{
		"ModeNull":          "mode: null\n",
		"ModeTilde":         "mode: ~\n",
		"ModeBare":          "mode:\n",
		"SectionNull":       "output: null\n",
		"NestedBool":        "resolution: {followSymlinks: null}\n",
		"NestedSequence":    "resolution:\n  extensions: null\n",
		"SequenceItem":      "externals: [react, null]\n",
		"EntryPointValue":   "entryPoints:\n  main: ~\n",
		"JSONNull":          `{"mode": null}`,
		"JSONNestedNull":    `{"runtime": {"plugins": null}}`,
		"AliasToNull":       "base: &none ~\nmode: *none\n",
		"TopLevelExternals": "externals: ~\n",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := NewResolver(WithUnknownFieldPolicy(UnknownFieldsWarn)).ResolveBytes([]byte(input), testWorkingDir)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParseNullInUnknownFieldIsIgnored(t *testing.T) {
	t.Parallel()

	_, unknown, err := Parse([]byte("legacy: null\nmode: production\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"legacy"}, unknown); diff != "" {
		t.Fatalf("unexpected unknown fields (-want +got):\n%s", diff)
	}
}

func TestParseAcceptsMergeKeys(t *testing.T) {
	t.Parallel()

	input := []byte(`
defaults: &out
  publicPath: /x/
output:
  <<: *out
  path: out
`)
	_, unknown, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"defaults"}, unknown); diff != "" {
		t.Fatalf("merge key reported as unknown (-want +got):\n%s", diff)
	}

	cfg, err := NewResolver().ResolveBytes([]byte("output:\n  <<: {publicPath: /x/}\n  path: out\n"), testWorkingDir)
	if err != nil {
		t.Fatalf("ResolveBytes returned error: %v", err)
	}
	if cfg.Output.PublicPath != "/x/" || cfg.Output.Path != "out" {
		t.Fatalf("unexpected output settings: %+v", cfg.Output)
	}
}

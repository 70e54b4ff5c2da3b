package buildconfig

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// UnknownFieldPolicy decides what happens to keys the document model does not recognise.
type UnknownFieldPolicy string

const (
	// UnknownFieldsReject fails resolution with ErrUnknownField.
	UnknownFieldsReject UnknownFieldPolicy = "reject"
	// UnknownFieldsWarn logs each unknown key and ignores it.
	UnknownFieldsWarn UnknownFieldPolicy = "warn"
)

// ParseUnknownFieldPolicy validates a policy name.
func ParseUnknownFieldPolicy(raw string) (UnknownFieldPolicy, error) {
	switch UnknownFieldPolicy(raw) {
	case UnknownFieldsReject, UnknownFieldsWarn:
		return UnknownFieldPolicy(raw), nil
	default:
		return "", fmt.Errorf("unknown field policy must be %q or %q, got %q", UnknownFieldsReject, UnknownFieldsWarn, raw)
	}
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger used for warnings and debug output.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithUnknownFieldPolicy overrides the default reject policy.
func WithUnknownFieldPolicy(policy UnknownFieldPolicy) ResolverOption {
	return func(r *Resolver) {
		r.policy = policy
	}
}

// Resolver resolves raw documents under a fixed unknown-field policy.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	logger *zap.Logger
	policy UnknownFieldPolicy
}

// NewResolver constructs a Resolver. Without options it rejects unknown
// fields and logs nothing.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		logger: zap.NewNop(),
		policy: UnknownFieldsReject,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy reports the active unknown-field policy.
func (r *Resolver) Policy() UnknownFieldPolicy {
	return r.policy
}

// Parse decodes raw document bytes and applies the unknown-field policy.
func (r *Resolver) Parse(data []byte) (Document, error) {
	doc, unknown, err := Parse(data)
	if err != nil {
		return Document{}, err
	}
	if err := r.checkUnknown(unknown); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Resolve resolves an already decoded document.
func (r *Resolver) Resolve(doc Document, workingDirectory string) (BuildConfig, error) {
	cfg, err := Resolve(doc, workingDirectory)
	if err != nil {
		return BuildConfig{}, err
	}
	r.logger.Debug("configuration resolved",
		zap.Stringer("mode", cfg.Mode),
		zap.String("root_directory", cfg.RootDirectory),
		zap.Int("entry_points", len(cfg.EntryPoints)),
	)
	return cfg, nil
}

// ResolveBytes parses and resolves a raw document in one step.
func (r *Resolver) ResolveBytes(data []byte, workingDirectory string) (BuildConfig, error) {
	doc, err := r.Parse(data)
	if err != nil {
		return BuildConfig{}, err
	}
	return r.Resolve(doc, workingDirectory)
}

func (r *Resolver) checkUnknown(fields []string) error {
	if len(fields) == 0 {
		return nil
	}

	if r.policy == UnknownFieldsWarn {
		for _, field := range fields {
			r.logger.Warn("ignoring unknown configuration field", zap.String("field", field))
		}
		return nil
	}

	var err error
	for _, field := range fields {
		err = multierr.Append(err, fmt.Errorf("%w: %q", ErrUnknownField, field))
	}
	return err
}

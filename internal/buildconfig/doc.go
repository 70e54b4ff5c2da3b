// Package buildconfig turns a partially specified, user-authored bundler
// configuration document into a fully populated BuildConfig. Absent fields take
// documented defaults, present fields are used verbatim, and ordered sequences
// (extensions, main fields, main files, conditions) replace their defaults
// wholesale. The resulting value is shared read-only by the module resolver,
// the output emitter, the runtime-injection system and the build driver.
package buildconfig

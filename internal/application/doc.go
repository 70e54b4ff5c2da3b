// Package application wires the resolver, the active-configuration storage,
// the document watcher and the inspection API into a runnable server, keeping
// the main package focused on CLI parsing and orchestration.
package application

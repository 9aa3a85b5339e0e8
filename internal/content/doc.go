// Package content owns the on-disk collection of playables.
//
// Each playable lives in its own directory under a single store root, named
// by an identifier of the form {millis}_{name}. The package provides:
//   - [Store]: create, list, locate the entry HTML file in, and delete
//     playable directories
//   - [Extractor]: bounded, entry-by-entry ZIP extraction into a directory
//   - [Store.Ingest]: turns a staged upload (single HTML file or ZIP) into a
//     new playable, removing the directory again if anything fails
//
// Every archive entry name, identifier and joined path is re-checked with
// package pathutil at the point of use. Extraction enforces a maximum entry
// count, a per-entry size and a cumulative size.
package content

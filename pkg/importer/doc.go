// Package importer implements the import-and-reconciliation engine for
// action packages. An import validates the package directory, resolves
// its environment manifest, provisions (or reuses) an execution
// environment keyed by the manifest hash, gates on the discovery-tool
// version, enumerates the package's actions via the tool, and reconciles
// the discovered set against the catalog inside a single transaction.
//
// Every stage fails fast: the catalog is never partially updated, and
// package and action IDs are preserved across re-imports so external
// references (run history, schedules) stay valid.
package importer

// Package catalog provides the persistence layer for imported action
// packages and their actions. It includes SQLite-based storage with WAL
// mode, embedded schema migrations, and the transactional primitives the
// importer relies on for atomic reconciliation.
package catalog

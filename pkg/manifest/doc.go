// Package manifest loads and validates the environment manifest of an
// action package. The manifest declares the dependency environment the
// package's actions run in; its hash keys provisioned environments so
// that formatting-only edits never invalidate a cached environment.
package manifest

// Package provision defines the interface to the environment bootstrap
// subsystem. The importer consumes it as a black box: given a manifest
// and its dependency hash it either returns a ready-to-use interpreter
// plus environment variables, or a structured failure. Provisioning
// failures carry their own retry policy; the importer never retries.
package provision

// Package discovery invokes the external discovery tool inside a
// provisioned environment to enumerate the actions of a package. It
// covers the version probe of the tool and the listing command, and
// classifies the listing outcome three ways: a parsed action list,
// a structured lint failure, or a hard failure.
package discovery

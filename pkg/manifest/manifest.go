package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// PrimaryFilename is the manifest filename new packages should use.
	PrimaryFilename = "action-server.yaml"

	// LegacyFilename is the deprecated manifest filename, still accepted
	// for backward compatibility.
	LegacyFilename = "conda.yaml"
)

// UnmanagedHash is the sentinel dependency hash for packages imported
// without a manifest. Their actions run in the ambient environment of
// the host process instead of a provisioned one.
const UnmanagedHash = "<unmanaged>"

// Manifest is the canonical parsed form of a package's dependency
// declaration, or the unmanaged sentinel when no manifest file exists.
type Manifest struct {
	// Path is the manifest file the declaration was loaded from.
	// Empty when the package is unmanaged.
	Path string

	// Hash is a deterministic hash of the parsed structure. Formatting
	// and comment changes do not affect it. UnmanagedHash for unmanaged
	// packages.
	Hash string

	// Unmanaged is true when no manifest file was found.
	Unmanaged bool

	root *yaml.Node
}

// Options controls manifest resolution.
type Options struct {
	// Frozen requires a managed environment: a missing manifest file
	// becomes a validation error instead of the unmanaged fallback.
	Frozen bool
}

// Load locates and parses the environment manifest of the package at dir.
//
// The primary filename is tried first, then the legacy one (with a
// deprecation warning). If neither exists the unmanaged sentinel is
// returned, unless opts.Frozen is set, in which case loading fails.
func Load(dir string, opts Options, logger zerolog.Logger) (*Manifest, error) {
	primary := filepath.Join(dir, PrimaryFilename)
	path := primary
	exists := fileExists(path)

	if !exists {
		path = filepath.Join(dir, LegacyFilename)
		exists = fileExists(path)
		if exists {
			logger.Warn().
				Str("path", path).
				Msgf("Deprecated: the file for defining the environment is now `%s`. Please rename `%s` to `%s`", PrimaryFilename, LegacyFilename, PrimaryFilename)
		}
	}

	if !exists {
		if opts.Frozen {
			return nil, fmt.Errorf("unable to import actions: no `%s` is available at: %s (a managed environment is required)", PrimaryFilename, primary)
		}
		logger.Info().
			Str("dir", dir).
			Msg("Adding action package without a managed environment (no manifest file); actions will run in the ambient environment")
		return &Manifest{Hash: UnmanagedHash, Unmanaged: true}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s does not seem to be valid yaml: %w", path, err)
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s has no mapping as top-level", path)
	}

	deps := mappingValue(root, "dependencies")
	if deps == nil || isEmptyNode(deps) {
		return nil, fmt.Errorf("%s has no 'dependencies' specified", path)
	}

	// The hash is based only on the parsed structure, not on the raw file
	// bytes, so comment or whitespace changes keep cached environments valid.
	sum := sha256.Sum256([]byte(canonicalString(root)))

	return &Manifest{
		Path: path,
		Hash: hex.EncodeToString(sum[:]),
		root: root,
	}, nil
}

// Dependencies returns the declared dependency entries rendered as strings,
// in document order. Nil for unmanaged manifests.
func (m *Manifest) Dependencies() []string {
	if m.root == nil {
		return nil
	}
	deps := mappingValue(m.root, "dependencies")
	if deps == nil || deps.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]string, 0, len(deps.Content))
	for _, item := range deps.Content {
		out = append(out, strings.TrimSpace(canonicalString(item)))
	}
	return out
}

// mappingValue returns the value node for key in a mapping node, or nil.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// isEmptyNode reports whether a node carries no usable content
// (null scalar, empty string, or empty collection).
func isEmptyNode(n *yaml.Node) bool {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Tag == "!!null" || n.Value == ""
	case yaml.SequenceNode, yaml.MappingNode:
		return len(n.Content) == 0
	case yaml.AliasNode:
		return isEmptyNode(n.Alias)
	default:
		return true
	}
}

// canonicalString renders a parsed yaml node as a deterministic string.
// Two documents that parse to the same structure render identically
// regardless of their original formatting.
func canonicalString(n *yaml.Node) string {
	var b strings.Builder
	writeCanonical(&b, n)
	return b.String()
}

func writeCanonical(b *strings.Builder, n *yaml.Node) {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			writeCanonical(b, c)
		}
	case yaml.MappingNode:
		b.WriteString("{")
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				b.WriteString(", ")
			}
			writeCanonical(b, n.Content[i])
			b.WriteString(": ")
			writeCanonical(b, n.Content[i+1])
		}
		b.WriteString("}")
	case yaml.SequenceNode:
		b.WriteString("[")
		for i, c := range n.Content {
			if i > 0 {
				b.WriteString(", ")
			}
			writeCanonical(b, c)
		}
		b.WriteString("]")
	case yaml.ScalarNode:
		// The tag keeps typed scalars apart ("1" the string vs 1 the int).
		fmt.Fprintf(b, "%s %q", n.ShortTag(), n.Value)
	case yaml.AliasNode:
		writeCanonical(b, n.Alias)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

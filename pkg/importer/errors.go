package importer

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an import failure. Every failure of Import is an
// *ImportError carrying exactly one kind, so callers can react to the
// class without parsing messages.
type ErrorKind string

const (
	// ErrorKindStructural indicates the import path is missing or not a
	// directory.
	ErrorKindStructural ErrorKind = "structural"

	// ErrorKindManifest indicates the manifest is present but unparsable,
	// not a mapping, missing dependencies, or absent in frozen mode.
	ErrorKindManifest ErrorKind = "manifest"

	// ErrorKindProvisioning indicates the environment bootstrap reported
	// failure or returned no usable result.
	ErrorKindProvisioning ErrorKind = "provisioning"

	// ErrorKindVersionGate indicates the version probe could not run or
	// the tool version is below the minimum.
	ErrorKindVersionGate ErrorKind = "version_gate"

	// ErrorKindLint indicates discovery reported static-check violations.
	ErrorKindLint ErrorKind = "lint"

	// ErrorKindDiscovery indicates any other discovery failure, including
	// malformed JSON on the success path.
	ErrorKindDiscovery ErrorKind = "discovery"

	// ErrorKindStorage indicates the reconciliation transaction failed;
	// the catalog was rolled back to its pre-import state.
	ErrorKindStorage ErrorKind = "storage"
)

// ImportError is a classified import failure.
type ImportError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	if e.Message != "" && e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ImportError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *ImportError) Is(target error) bool {
	t, ok := target.(*ImportError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newImportError(kind ErrorKind, message string, err error) *ImportError {
	return &ImportError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of an import failure, or the empty string when
// err is not an *ImportError.
func KindOf(err error) ErrorKind {
	var e *ImportError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsStructural reports whether err is a structural import failure.
func IsStructural(err error) bool { return KindOf(err) == ErrorKindStructural }

// IsManifestError reports whether err is a manifest validation failure.
func IsManifestError(err error) bool { return KindOf(err) == ErrorKindManifest }

// IsProvisioningFailure reports whether err is a provisioning failure.
func IsProvisioningFailure(err error) bool { return KindOf(err) == ErrorKindProvisioning }

// IsVersionGateFailure reports whether err is a version-gate failure.
func IsVersionGateFailure(err error) bool { return KindOf(err) == ErrorKindVersionGate }

// IsLintFailure reports whether err is a lint failure.
func IsLintFailure(err error) bool { return KindOf(err) == ErrorKindLint }

// IsDiscoveryFailure reports whether err is a discovery hard failure.
func IsDiscoveryFailure(err error) bool { return KindOf(err) == ErrorKindDiscovery }

// IsStorageFailure reports whether err is a storage failure.
func IsStorageFailure(err error) bool { return KindOf(err) == ErrorKindStorage }

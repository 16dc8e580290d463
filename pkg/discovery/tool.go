package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Default invocation of the actions SDK that ships the discovery tool.
var (
	DefaultProbeArgs = []string{"-c", "import actions;print(actions.__version__)"}
	DefaultListArgs  = []string{"-m", "actions", "list"}
)

// DefaultSkipLintArg is appended to the list command to skip static checks.
const DefaultSkipLintArg = "--skip-lint"

// outputLimit caps how much of a captured stream is echoed in error
// messages.
const outputLimit = 4096

// ActionRecord is one entry of the tool's JSON action listing.
type ActionRecord struct {
	File         string          `json:"file" validate:"required"`
	Name         string          `json:"name" validate:"required"`
	Docs         string          `json:"docs"`
	Line         int             `json:"line" validate:"gte=0"`
	InputSchema  json.RawMessage `json:"input_schema" validate:"required"`
	OutputSchema json.RawMessage `json:"output_schema" validate:"required"`
	Options      *ActionOptions  `json:"options"`
}

// ActionOptions is the optional options mapping of an action record.
type ActionOptions struct {
	IsConsequential *bool `json:"is_consequential"`
}

// Consequential extracts the boolean-or-absent consequential flag.
func (r ActionRecord) Consequential() *bool {
	if r.Options == nil {
		return nil
	}
	return r.Options.IsConsequential
}

// Outcome is the classified result of a listing run. Exactly one of the
// two fields is set: Actions on success, Lint when the tool reported
// static-check violations. Hard failures are returned as errors instead.
type Outcome struct {
	Actions []ActionRecord
	Lint    *LintResult
}

// Tool invokes the discovery tool as a subprocess inside a provisioned
// environment, with the package directory as working directory.
type Tool struct {
	// Interpreter is the interpreter hosting the tool.
	Interpreter string

	// Env is the full launch environment. Nil inherits the process env.
	Env []string

	// Dir is the working directory for tool subprocesses; it must be the
	// package directory so relative source paths resolve.
	Dir string

	// ProbeArgs and ListArgs override the default tool invocation.
	ProbeArgs []string
	ListArgs  []string

	// SkipLintArg overrides the default skip-lint flag.
	SkipLintArg string

	logger   zerolog.Logger
	validate *validator.Validate
}

// NewTool creates a Tool for the package directory at dir.
func NewTool(interpreter, dir string, env []string, logger zerolog.Logger) *Tool {
	return &Tool{
		Interpreter: interpreter,
		Env:         env,
		Dir:         dir,
		logger:      logger.With().Str("component", "discovery").Logger(),
		validate:    validator.New(),
	}
}

// Probe runs the version probe and parses its stdout. Launch failures,
// non-zero exits and unparsable output all collapse into one probe error:
// the caller cannot act differently on the distinction, and the usual
// cause is the same (the tool is not installed in the environment).
func (t *Tool) Probe(ctx context.Context) (Version, error) {
	args := t.ProbeArgs
	if args == nil {
		args = DefaultProbeArgs
	}

	stdout, _, exitCode, err := t.run(ctx, args)
	if err == nil && exitCode == 0 {
		if v, perr := ParseVersion(string(stdout)); perr == nil {
			return v, nil
		}
	}

	return nil, fmt.Errorf(`unable to probe the discovery tool version.

This usually means that the actions SDK is not installed in the
environment (if a manifest file is present, make sure the SDK is declared
in its dependencies, otherwise make sure it is installed in the same
environment used to run the import).

Interpreter being used:
%s`, t.Interpreter)
}

// List runs the listing command and classifies its outcome.
//
// Exit 0 with a valid JSON array yields Outcome.Actions; any stderr
// output is logged as a warning. Exit 1 with a decodable lint report
// yields Outcome.Lint. Everything else, including malformed JSON on the
// success path, is a hard failure.
func (t *Tool) List(ctx context.Context, skipLint bool) (*Outcome, error) {
	args := t.ListArgs
	if args == nil {
		args = DefaultListArgs
	}
	if skipLint {
		flag := t.SkipLintArg
		if flag == "" {
			flag = DefaultSkipLintArg
		}
		args = append(append([]string{}, args...), flag)
	}

	stdout, stderr, exitCode, err := t.run(ctx, args)
	if err != nil {
		return nil, t.hardFailure(args, stdout, stderr, err)
	}

	switch exitCode {
	case 0:
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			t.logger.Warn().Str("stderr", msg).Msg("Discovery tool reported warnings")
		}

		var records []ActionRecord
		if err := json.Unmarshal(stdout, &records); err != nil {
			return nil, fmt.Errorf("it was not possible to load the action listing as json (contents >>%s<<): %w",
				truncate(string(stdout)), err)
		}
		for i, rec := range records {
			if err := t.validate.Struct(rec); err != nil {
				return nil, fmt.Errorf("action record %d (%q) is incomplete: %w", i, rec.Name, err)
			}
		}
		return &Outcome{Actions: records}, nil

	case 1:
		// Exit 1 may carry a structured lint report on stdout.
		if lint := decodeLintResult(stdout); lint != nil {
			return &Outcome{Lint: lint}, nil
		}
		return nil, t.hardFailure(args, stdout, stderr, nil)

	default:
		return nil, t.hardFailure(args, stdout, stderr, nil)
	}
}

// run executes the interpreter with args, capturing both output streams
// fully. exec.Cmd drains the pipes concurrently with the wait, so the
// child never blocks on a full pipe buffer.
func (t *Tool) run(ctx context.Context, args []string) (stdout, stderr []byte, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, t.Interpreter, args...)
	cmd.Dir = t.Dir
	cmd.Env = t.Env

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout = outBuf.Bytes()
	stderr = errBuf.Bytes()

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return stdout, stderr, exitErr.ExitCode(), nil
		}
		return stdout, stderr, -1, fmt.Errorf("failed to launch %s: %w", t.Interpreter, runErr)
	}
	return stdout, stderr, 0, nil
}

// hardFailure builds the generic discovery error with everything needed
// to diagnose the run.
func (t *Tool) hardFailure(args []string, stdout, stderr []byte, cause error) error {
	cmdline := t.Interpreter + " " + strings.Join(args, " ")
	msg := fmt.Sprintf("it was not possible to list the actions.\ncmdline: %s\ncwd: %s\nstdout: %s\nstderr: %s",
		cmdline, t.Dir, truncate(string(stdout)), truncate(string(stderr)))
	if cause != nil {
		return fmt.Errorf("%s\ncause: %w", msg, cause)
	}
	return fmt.Errorf("%s", msg)
}

// decodeLintResult extracts a usable lint report from exit-1 stdout.
// Returns nil when stdout is not a JSON object, has no lint_result, or
// the report carries no violations; those cases fall through to the
// generic failure.
func decodeLintResult(stdout []byte) *LintResult {
	var payload struct {
		LintResult *LintResult `json:"lint_result"`
	}
	if err := json.Unmarshal(stdout, &payload); err != nil {
		return nil
	}
	if payload.LintResult == nil || len(payload.LintResult.Errors) == 0 {
		return nil
	}
	return payload.LintResult
}

func truncate(s string) string {
	if len(s) <= outputLimit {
		return s
	}
	return s[:outputLimit] + "... (truncated)"
}

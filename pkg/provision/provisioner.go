package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
)

// EnvResult carries a provisioned execution environment.
type EnvResult struct {
	// InterpreterPath is the interpreter to launch tool subprocesses with.
	InterpreterPath string `json:"interpreter_path"`

	// Env is the environment-variable mapping the environment needs.
	Env map[string]string `json:"env"`
}

// EnvInfo is the outcome of a provisioning request.
type EnvInfo struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Result  *EnvResult `json:"result,omitempty"`
}

// Provisioner materializes or reuses an isolated execution environment
// for a dependency manifest, keyed by the manifest's content hash so an
// unchanged dependency set reuses the cached environment.
type Provisioner interface {
	Provision(ctx context.Context, manifestPath, hash string) (*EnvInfo, error)
}

// CommandProvisioner shells out to an external bootstrap binary that
// builds the environment and prints an EnvInfo document as JSON.
type CommandProvisioner struct {
	// Binary is the bootstrap executable.
	Binary string

	// Args are prepended before the manifest and hash arguments.
	Args []string

	logger zerolog.Logger
}

// NewCommandProvisioner creates a provisioner backed by the given
// bootstrap binary.
func NewCommandProvisioner(binary string, args []string, logger zerolog.Logger) *CommandProvisioner {
	return &CommandProvisioner{
		Binary: binary,
		Args:   args,
		logger: logger.With().Str("component", "provisioner").Logger(),
	}
}

// Provision runs the bootstrap binary and decodes its JSON output.
// This can be a slow operation: building a fresh environment may take
// a long time. A reused hash returns quickly.
func (p *CommandProvisioner) Provision(ctx context.Context, manifestPath, hash string) (*EnvInfo, error) {
	args := append(append([]string{}, p.Args...), manifestPath, hash)
	cmd := exec.CommandContext(ctx, p.Binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.logger.Debug().
		Str("binary", p.Binary).
		Str("manifest", manifestPath).
		Str("hash", hash).
		Msg("Bootstrapping environment")

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("environment bootstrap failed: %w\nstderr: %s", err, stderr.String())
	}

	var info EnvInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("failed to decode bootstrap output: %w", err)
	}

	return &info, nil
}

// BuildLaunchEnv merges the provisioned environment variables over the
// ambient process environment, producing the environment subprocesses
// are launched with.
func BuildLaunchEnv(vars map[string]string) []string {
	env := os.Environ()
	for k, v := range vars {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

package nix

import (
	"os"
	"os/exec"
)

// Options selects what one extraction run evaluates. The zero System means
// the host system (the evaluator falls back to builtins.currentSystem).
type Options struct {
	FlakeRef    string
	System      string
	RuntimeOnly bool
	Offline     bool
}

// Driver runs the two evaluator programs through the nix CLI. It is safe for
// concurrent use; every call spawns its own subprocess.
type Driver struct {
	nixPath  string
	programs *Programs
	opts     Options
}

// NewDriver locates the nix binary and materialises the evaluator programs.
// The caller owns the returned driver and must Close it.
func NewDriver(opts Options) (*Driver, error) {
	nixPath, err := exec.LookPath("nix")
	if err != nil {
		return nil, &SpawnError{Err: err}
	}

	programs, err := MaterializePrograms()
	if err != nil {
		return nil, err
	}

	return &Driver{nixPath: nixPath, programs: programs, opts: opts}, nil
}

// Close releases the materialised evaluator programs.
func (d *Driver) Close() error {
	return d.programs.Close()
}

// args builds the nix CLI invocation for one evaluator program. All
// invocations use --impure (for builtins.getEnv and currentSystem) and enable
// the flakes and nix-command experimental features.
func (d *Driver) args(programPath string) []string {
	args := []string{
		"eval",
		"--json",
		"--impure",
		"--extra-experimental-features", "nix-command flakes",
		"--file", programPath,
	}
	if d.opts.Offline {
		args = append(args, "--offline")
	}
	return args
}

// env builds the subprocess environment. The evaluator programs take all of
// their inputs from environment variables; nix reads these as plain strings,
// never as expressions.
func (d *Driver) env(attributePath string) []string {
	env := append(os.Environ(),
		"TARGET_FLAKE_REF="+d.opts.FlakeRef,
		"NIXPKGS_ALLOW_UNFREE=1",
		"NIXPKGS_ALLOW_INSECURE=1",
		"NIXPKGS_ALLOW_BROKEN=1",
		"XDG_CACHE_HOME="+d.programs.CacheDir(),
	)
	if d.opts.System != "" {
		env = append(env, "TARGET_SYSTEM="+d.opts.System)
	}
	if attributePath != "" {
		env = append(env, "TARGET_ATTRIBUTE_PATH="+attributePath)
	}
	if d.opts.RuntimeOnly {
		env = append(env, "RUNTIME_ONLY=1")
	} else {
		env = append(env, "RUNTIME_ONLY=0")
	}
	return env
}

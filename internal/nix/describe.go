package nix

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"nixtract/internal/derivation"
)

// Describe spawns the describer program for one attribute path and parses its
// stdout into a Record. Non-zero exits become EvalErrors carrying the
// attribute path and a stderr tail; malformed stdout becomes a ParseError.
func (d *Driver) Describe(ctx context.Context, attributePath string) (*derivation.Record, error) {
	cmd := exec.CommandContext(ctx, d.nixPath, d.args(d.programs.DescriberPath())...)
	cmd.Env = d.env(attributePath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if _, isExit := err.(*exec.ExitError); !isExit {
			return nil, &SpawnError{Err: err}
		}
		return nil, &EvalError{
			AttributePath: attributePath,
			ExitCode:      cmd.ProcessState.ExitCode(),
			Stderr:        tailOf(stderr.String()),
		}
	}

	var record derivation.Record
	out := strings.TrimSpace(stdout.String())
	if err := json.Unmarshal([]byte(out), &record); err != nil {
		return nil, &ParseError{Input: out, Err: err}
	}

	// The describer computes parsed_name with builtins.parseDrvName; fill it
	// in locally if an older program version left it empty.
	if record.ParsedName == (derivation.ParsedName{}) && record.Name != "" {
		record.ParsedName = derivation.ParseDrvName(record.Name)
	}

	return &record, nil
}

func tailOf(stderr string) string {
	lines := strings.Split(strings.TrimRight(stderr, "\n"), "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	return strings.Join(lines, "\n")
}

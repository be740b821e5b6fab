package nix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// Substituters combines the substituters from the local nix configuration
// with the target flake's declared extra-substituters. The result is the list
// of binary caches worth probing for narinfo documents.
func (d *Driver) Substituters(ctx context.Context) ([]string, error) {
	fromConf, err := d.substitutersFromConfig(ctx)
	if err != nil {
		return nil, err
	}
	fromFlake, err := d.substitutersFromFlake(ctx)
	if err != nil {
		return nil, err
	}
	return append(fromConf, fromFlake...), nil
}

func (d *Driver) substitutersFromConfig(ctx context.Context) ([]string, error) {
	stdout, err := d.runForJSON(ctx, "config", "show", "--json")
	if err != nil {
		return nil, err
	}

	var config struct {
		Substituters struct {
			Value []string `json:"value"`
		} `json:"substituters"`
	}
	if err := json.Unmarshal(stdout, &config); err != nil {
		return nil, &ParseError{Input: string(stdout), Err: err}
	}
	return config.Substituters.Value, nil
}

func (d *Driver) substitutersFromFlake(ctx context.Context) ([]string, error) {
	expr := fmt.Sprintf(
		"(import ((builtins.getFlake %q).outPath + \"/flake.nix\")).nixConfig.extra-substituters or []",
		d.opts.FlakeRef,
	)
	stdout, err := d.runForJSON(ctx, "eval", "--json", "--impure",
		"--extra-experimental-features", "nix-command flakes",
		"--expr", expr)
	if err != nil {
		return nil, err
	}

	var extra []string
	if err := json.Unmarshal(stdout, &extra); err != nil {
		return nil, &ParseError{Input: string(stdout), Err: err}
	}
	return extra, nil
}

func (d *Driver) runForJSON(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, d.nixPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if _, isExit := err.(*exec.ExitError); !isExit {
			return nil, &SpawnError{Err: err}
		}
		return nil, &EvalError{
			ExitCode: cmd.ProcessState.ExitCode(),
			Stderr:   tailOf(stderr.String()),
		}
	}
	return bytes.TrimSpace(stdout.Bytes()), nil
}

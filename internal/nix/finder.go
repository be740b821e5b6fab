package nix

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// FoundDrv is one top-level derivation reported by the finder. For
// multi-output derivations the finder emits one entry per output, with the
// attribute path suffixed by the output name.
type FoundDrv struct {
	AttributePath  string
	DerivationPath *string
	OutputPath     *string
}

// UnmarshalJSON tolerates the occasional non-string junk (typically false)
// that some nixpkgs attributes evaluate to in place of a store path.
func (d *FoundDrv) UnmarshalJSON(data []byte) error {
	var raw struct {
		AttributePath  string `json:"attributePath"`
		DerivationPath any    `json:"derivationPath"`
		OutputPath     any    `json:"outputPath"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.AttributePath = raw.AttributePath
	d.DerivationPath = asString(raw.DerivationPath)
	d.OutputPath = asString(raw.OutputPath)
	return nil
}

func asString(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

const tracePrefix = "trace: "

// tracePayload is the JSON document the finder traces to stderr.
type tracePayload struct {
	FoundDrvs []FoundDrv `json:"foundDrvs"`
}

// parseTraceLine extracts the foundDrvs batch from one stderr line. ok is
// false for lines without the trace prefix; err is set for trace lines whose
// payload does not parse (most likely a trace from nixpkgs itself).
func parseTraceLine(line string) (drvs []FoundDrv, ok bool, err error) {
	payload, found := strings.CutPrefix(line, tracePrefix)
	if !found {
		return nil, false, nil
	}
	var parsed tracePayload
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, true, &ParseError{Input: line, Err: err}
	}
	return parsed.FoundDrvs, true, nil
}

// RunFinder spawns the finder program and streams its discoveries to onFound
// as they appear on stderr, so description can start before enumeration
// completes. It returns once the finder has exited: nil on a clean exit, an
// EvalError otherwise. Malformed trace lines are skipped with a warning.
func (d *Driver) RunFinder(ctx context.Context, onFound func(FoundDrv)) error {
	cmd := exec.CommandContext(ctx, d.nixPath, d.args(d.programs.FinderPath())...)
	cmd.Env = d.env("")
	cmd.Stdout = io.Discard

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnError{Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &SpawnError{Err: err}
	}

	var tail stderrTail
	scanner := bufio.NewScanner(stderr)
	// Trace batches for large attribute sets can be long lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		drvs, ok, err := parseTraceLine(line)
		if !ok {
			tail.add(line)
			slog.Debug("finder stderr", "line", line)
			continue
		}
		if err != nil {
			slog.Warn("skipping malformed finder trace line", "error", err)
			continue
		}
		for _, drv := range drvs {
			onFound(drv)
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return &EvalError{ExitCode: cmd.ProcessState.ExitCode(), Stderr: tail.String()}
	}
	if scanErr != nil {
		return fmt.Errorf("failed to read finder stderr: %w", scanErr)
	}
	return nil
}

// stderrTail keeps the last few non-trace diagnostic lines for error reports.
type stderrTail struct {
	lines []string
}

const stderrTailLines = 20

func (t *stderrTail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > stderrTailLines {
		t.lines = t.lines[1:]
	}
}

func (t *stderrTail) String() string {
	return strings.Join(t.lines, "\n")
}

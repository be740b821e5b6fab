package nix

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

// The evaluator programs are data, not code, from the driver's point of view:
// they are embedded in the binary and written to a temporary directory at
// startup so the tool stays self-contained. The programs import lib.nix by
// relative path, so all three files must live in the same directory.

//go:embed expr/lib.nix expr/find-attribute-paths.nix expr/describe-derivation.nix
var exprFS embed.FS

const (
	libFile      = "lib.nix"
	finderFile   = "find-attribute-paths.nix"
	describeFile = "describe-derivation.nix"
)

// Programs is the on-disk materialisation of the embedded evaluator programs.
// Its lifetime is scoped to one run; Close removes the directory.
type Programs struct {
	dir string
}

// MaterializePrograms writes the embedded programs to a fresh temp directory.
func MaterializePrograms() (*Programs, error) {
	dir, err := os.MkdirTemp("", "nixtract-")
	if err != nil {
		return nil, fmt.Errorf("failed to create program directory: %w", err)
	}

	for _, name := range []string{libFile, finderFile, describeFile} {
		data, err := exprFS.ReadFile("expr/" + name)
		if err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("failed to read embedded program %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("failed to write program %s: %w", name, err)
		}
	}

	// Subprocesses get a private evaluation cache scoped to this run, so
	// concurrent runs never contend on the user's cache.
	if err := os.Mkdir(filepath.Join(dir, "cache"), 0o755); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Programs{dir: dir}, nil
}

// CacheDir is the run-scoped evaluation cache directory.
func (p *Programs) CacheDir() string {
	return filepath.Join(p.dir, "cache")
}

// FinderPath is the on-disk path of the finder program.
func (p *Programs) FinderPath() string {
	return filepath.Join(p.dir, finderFile)
}

// DescriberPath is the on-disk path of the describer program.
func (p *Programs) DescriberPath() string {
	return filepath.Join(p.dir, describeFile)
}

// Close removes the materialised programs.
func (p *Programs) Close() error {
	return os.RemoveAll(p.dir)
}

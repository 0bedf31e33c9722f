//go:build mage

// Package main contains Mage build targets for evidence-annotator developer
// tooling.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories the annotator expects.
var projectDirs = []string{
	"documents",
	"annotations",
	"annotations/export",
	".secrets",
}

const (
	binDir  = "bin"
	binName = "annotator"
	cmdPkg  = "./cmd/annotator"

	// sqliteTags enables the FTS5 extension compiled into go-sqlite3.
	sqliteTags = "sqlite_fts5"
)

// Init creates the project directory structure.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

// Build compiles the CLI binary into bin/.
func Build() error {
	mg.Deps(Init)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || version == "" {
		version = "dev"
	}
	if err := sh.RunV("go", "build", "-tags", sqliteTags,
		"-ldflags", "-X main.version="+version, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", out, version)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "-tags", sqliteTags, "./...")
}

// Stats prints project metrics: Go production/test LOC and documentation word count.
func Stats() error {
	prodLines, testLines, err := countGoLines(".")
	if err != nil {
		return err
	}
	docWords, err := countDocWords(".")
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	fmt.Printf("Words (documentation):           %d\n", docWords)
	return nil
}

// skipped reports paths outside the module's own sources.
func skipped(path string) bool {
	return strings.HasPrefix(path, "_") || strings.HasPrefix(path, ".") || strings.HasPrefix(path, binDir+"/")
}

// countGoLines counts non-blank lines in production and test Go files.
func countGoLines(root string) (prod, test int, err error) {
	matches, err := doublestar.Glob(os.DirFS(root), "**/*.go", doublestar.WithFilesOnly())
	if err != nil {
		return 0, 0, err
	}
	for _, path := range matches {
		if skipped(path) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, path))
		if err != nil {
			return 0, 0, fmt.Errorf("reading %s: %w", path, err)
		}
		n := 0
		for _, line := range bytes.Split(data, []byte("\n")) {
			if len(bytes.TrimSpace(line)) > 0 {
				n++
			}
		}
		if strings.HasSuffix(path, "_test.go") {
			test += n
		} else {
			prod += n
		}
	}
	return prod, test, nil
}

// countDocWords counts words in Markdown files.
func countDocWords(root string) (int, error) {
	matches, err := doublestar.Glob(os.DirFS(root), "**/*.md", doublestar.WithFilesOnly())
	if err != nil {
		return 0, err
	}
	total := 0
	for _, path := range matches {
		if skipped(path) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, path))
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", path, err)
		}
		total += len(bytes.Fields(data))
	}
	return total, nil
}

//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Import imports files from documents/ into the local annotation store.
func Import() error {
	mg.Deps(Build)
	return sh.RunV(binDir+"/"+binName, "documents", "import")
}

// Export writes every annotated document to annotations/export/export.json.
func Export() error {
	mg.Deps(Build)
	return sh.RunV(binDir+"/"+binName, "export", "--format", "json")
}

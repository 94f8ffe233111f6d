//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
)

const seedFile = "testdata/sandbox-seed.yaml"

const exampleSeed = `# Projects and applications loaded by "applytrack sandbox --seed".
projects:
  - id: 101
    title: Payments dashboard
    budget: "4500"
    owner: Acme
  - id: 102
    title: Search UI refresh
    owner: Globex
  - id: 103
    title: Event pipeline
    budget: "12000"
    owner: Initech
applications:
  - project_id: 101
    user_id: 1
    status: shortlisted
    notes: Go and Postgres, available from May
  - project_id: 102
    user_id: 1
`

// Seed writes the example sandbox seed file if it does not exist yet.
func Seed() error {
	if _, err := os.Stat(seedFile); err == nil {
		fmt.Printf("%s already exists\n", seedFile)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(seedFile), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(seedFile), err)
	}
	if err := os.WriteFile(seedFile, []byte(exampleSeed), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", seedFile, err)
	}
	fmt.Printf("Wrote %s\n", seedFile)
	return nil
}

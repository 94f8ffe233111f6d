// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads credentials from a directory of plain-text files,
// one secret per file: the filename is the key and the trimmed contents are
// the value. The directory is normally .secrets/ next to applytrack.yaml.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Keys the CLI looks for.
const (
	MarketplaceToken = "marketplace-api-token"
)

// Load reads every regular, non-hidden file in dir. A missing directory is
// not an error and yields an empty map. Files that cannot be read are logged
// and skipped; empty files are ignored.
func Load(dir string, log logrus.FieldLogger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if log != nil {
				log.WithField("secret", name).WithError(err).Warn("could not read secret")
			}
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			out[name] = value
		}
	}
	return out, nil
}

// Token returns the marketplace API token. An explicit value wins over
// the secrets directory.
func Token(explicit, dir string, log logrus.FieldLogger) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	all, err := Load(dir, log)
	if err != nil {
		return "", err
	}
	return all[MarketplaceToken], nil
}

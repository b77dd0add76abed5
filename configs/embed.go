// Package configs embeds sample datasets.
package configs

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

// SampleDataset is used when no dataset path is configured.
const SampleDataset = "sample.yaml"

//go:embed *.yaml
var embeddedDatasets embed.FS

// Names returns the embedded dataset filenames.
func Names() []string {
	entries, err := fs.Glob(embeddedDatasets, "*.yaml")
	if err != nil {
		return nil
	}
	sort.Strings(entries)
	return entries
}

// Load returns the embedded dataset by filename.
func Load(name string) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("embedded dataset name is empty")
	}
	data, err := fs.ReadFile(embeddedDatasets, name)
	if err != nil {
		return nil, fmt.Errorf("read embedded dataset %q: %w", name, err)
	}
	return data, nil
}

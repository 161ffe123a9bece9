// Package config loads the --config TOML file that supplies default
// values for the sampler flags.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// File is the shape of a pmp config.toml: defaults for every flag that
// NewConfig accepts, used only where the corresponding CLI flag was not
// set explicitly.
type File struct {
	Method     string `toml:"method,omitempty"`
	Freq       int    `toml:"freq,omitempty"`
	Max        int    `toml:"max,omitempty"`
	FrameLimit int    `toml:"frame_limit,omitempty"`
}

// Load reads and parses path. A missing file is not an error: it
// returns a zero File, which leaves every flag default untouched.
func Load(path string) (*File, error) {
	f := &File{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// Package config loads optional compiler defaults from a YAML file
// (.phpaot.yaml): the default target triple, optimization level, and
// strip flag. CLI flags always override whatever this file sets.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults is the shape of .phpaot.yaml: optional overrides for the CLI's
// own default values.
type Defaults struct {
	Target   string `yaml:"target"`
	OptLevel string `yaml:"opt_level"`
	Strip    bool   `yaml:"strip"`
}

// Load reads and parses path. A missing file is not an error: it returns
// the zero Defaults, matching the "no config file present" case.
func Load(path string) (Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults{}, nil
		}
		return Defaults{}, err
	}

	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Defaults{}, err
	}
	return d, nil
}

// Merge applies file defaults wherever the corresponding CLI flag was left
// at its zero value (for strip: wherever cliStripSet is false), so an
// explicit CLI flag always wins.
func Merge(file Defaults, cliTarget, cliOptLevel string, cliStrip, cliStripSet bool) (target, optLevel string, strip bool) {
	target = cliTarget
	if target == "" {
		target = file.Target
	}
	optLevel = cliOptLevel
	if optLevel == "" {
		optLevel = file.OptLevel
	}
	strip = cliStrip
	if !cliStripSet {
		strip = file.Strip
	}
	return
}

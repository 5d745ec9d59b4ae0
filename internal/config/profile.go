// Package config loads session profiles: YAML or TOML files describing which
// processes to watch and for how long. Several files can be layered, later
// files overriding earlier ones.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	"k8s.io/kube-openapi/pkg/validation/strfmt"

	"github.com/voluzi/memwatch/internal/utils"
)

type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

// Profile is the on-disk form of a monitoring session. Durations accept Go
// syntax and day units ("90s", "10m", "1d").
type Profile struct {
	Processes []string `json:"processes,omitempty" yaml:"processes,omitempty" toml:"processes,omitempty"`
	Duration  string   `json:"duration,omitempty" yaml:"duration,omitempty" toml:"duration,omitempty"`
	Interval  string   `json:"interval,omitempty" yaml:"interval,omitempty" toml:"interval,omitempty"`
	Output    string   `json:"output,omitempty" yaml:"output,omitempty" toml:"output,omitempty"`
	Merge     []string `json:"merge,omitempty" yaml:"merge,omitempty" toml:"merge,omitempty"`
	Dump      string   `json:"dump,omitempty" yaml:"dump,omitempty" toml:"dump,omitempty"`
	Listen    string   `json:"listen,omitempty" yaml:"listen,omitempty" toml:"listen,omitempty"`
}

// FormatOf infers the profile format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("unsupported profile format: %q", filepath.Ext(path))
	}
}

// Load reads and layers the given profile files in order.
func Load(paths ...string) (Profile, error) {
	var merged interface{} = map[string]interface{}{}
	for _, path := range paths {
		doc, err := decodeFile(path)
		if err != nil {
			return Profile{}, errors.WrapIfWithDetails(err, "failed to load profile", "path", path)
		}
		if doc == nil {
			continue
		}
		if merged, err = utils.Merge(merged, doc); err != nil {
			return Profile{}, errors.WrapIfWithDetails(err, "failed to merge profile", "path", path)
		}
	}

	// Round-trip through JSON to map the generic document onto Profile.
	b, err := json.Marshal(merged)
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return Profile{}, errors.WrapIf(err, "invalid profile")
	}
	return p, p.validate()
}

func decodeFile(path string) (interface{}, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case TOML:
		return utils.TomlDecode(string(data))
	default:
		return utils.YamlDecode(string(data))
	}
}

func (p Profile) validate() error {
	if _, err := p.DurationValue(); err != nil {
		return err
	}
	_, err := p.IntervalValue()
	return err
}

// DurationValue parses Duration. Zero means unset.
func (p Profile) DurationValue() (time.Duration, error) {
	return parseDuration("duration", p.Duration)
}

// IntervalValue parses Interval. Zero means unset.
func (p Profile) IntervalValue() (time.Duration, error) {
	return parseDuration("interval", p.Interval)
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := strfmt.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return d, nil
}

// Save writes p to path in the format implied by its extension.
func Save(path string, p Profile) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	var out string
	switch format {
	case TOML:
		out, err = utils.TomlEncode(p)
	default:
		out, err = utils.YamlEncode(p)
	}
	if err != nil {
		return errors.WrapIf(err, "failed to encode profile")
	}
	return os.WriteFile(path, []byte(out), 0o644)
}

package admindir

import (
	"io/ioutil"
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config is the engine's own on-disk configuration, admindir/config.toml:
// the pieces of policy spec §7/§4.8 leaves to the administrator rather than
// hard-coding, mirroring the teacher's use of go-toml for Gopkg.toml.
type Config struct {
	// DefaultForce is applied to every operation unless overridden per
	// invocation (spec §7 force-flag policy table).
	DefaultForce string `toml:"default_force"`
	// Color selects whether diagnostic output requests ANSI color (spec §6
	// DPKG_COLORS).
	Color string `toml:"color"`
	// ConffilePolicy names the default conffile decision when none of
	// confold/confnew/confdef is forced (spec §4.8).
	ConffilePolicy string `toml:"conffile_policy"`
	// TriggerCycleBound bounds trigger re-activation per session (spec
	// §4.9 "hard bound on re-entries per session").
	TriggerCycleBound int `toml:"trigger_cycle_bound"`
}

// DefaultConfig mirrors dpkg's own built-in defaults when config.toml is
// absent.
func DefaultConfig() Config {
	return Config{
		Color:             "auto",
		ConffilePolicy:    "confask",
		TriggerCycleBound: 1000,
	}
}

// LoadConfig reads admindir/config.toml, returning DefaultConfig() unchanged
// if the file does not exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "reading %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, nil
}

// Save writes cfg back to path, overwriting any existing file.
func (cfg Config) Save(path string) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return ioutil.WriteFile(path, data, 0644)
}

// Force parses DefaultForce, returning zero on a blank or invalid value
// (config-file corruption here should not be fatal the way a malformed
// command-line flag would be; LoadConfig's caller is expected to validate
// separately when that matters).
func (cfg Config) Force() Force {
	f, err := ParseForce(cfg.DefaultForce)
	if err != nil {
		return 0
	}
	return f
}

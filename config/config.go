package config

import (
	"sort"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"
	"tlog.app/go/errors"
)

type (
	Config struct {
		Simplify bool `toml:"simplify"`
		Jobs     int  `toml:"jobs"`

		Color  string `toml:"color"`
		Labels string `toml:"labels"`

		// Entry is a label name or an address. Listing .entry is used if empty.
		Entry string `toml:"entry"`

		// ExitLive registers are read by the code the graph exits to.
		ExitLive []string `toml:"exit_live"`

		// VerboseDir receives asm_flow.dot and graph.dot if set.
		VerboseDir string `toml:"verbose_dir"`

		Symbols map[string]int64 `toml:"symbols"`
	}

	Symbol struct {
		Name string
		Addr uint64
	}
)

const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"

	LabelsLong  = "long"
	LabelsShort = "short"
)

func Default() Config {
	return Config{
		Color:    ColorAuto,
		Labels:   LabelsLong,
		ExitLive: []string{"r0", "sp"},
	}
}

// Load reads the file over the defaults.
func Load(path string) (cfg Config, err error) {
	cfg = Default()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(err, "decode %v", path)
	}

	if und := meta.Undecoded(); len(und) != 0 {
		return Config{}, errors.New("%v: unknown key: %v", path, und[0])
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, errors.Wrap(err, "%v", path)
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return errors.New("color: want auto, always or never: %q", c.Color)
	}

	switch c.Labels {
	case LabelsLong, LabelsShort:
	default:
		return errors.New("labels: want long or short: %q", c.Labels)
	}

	if c.Jobs < 0 {
		return errors.New("jobs: negative: %d", c.Jobs)
	}

	_, err := c.SymbolList()

	return err
}

// SymbolList returns configured symbols ordered by address.
func (c Config) SymbolList() ([]Symbol, error) {
	r := make([]Symbol, 0, len(c.Symbols))

	for name, v := range c.Symbols {
		addr, err := safecast.Conv[uint64](v)
		if err != nil {
			return nil, errors.Wrap(err, "symbol %v", name)
		}

		r = append(r, Symbol{Name: name, Addr: addr})
	}

	sort.Slice(r, func(i, j int) bool {
		if r[i].Addr != r[j].Addr {
			return r[i].Addr < r[j].Addr
		}

		return r[i].Name < r[j].Name
	})

	return r, nil
}

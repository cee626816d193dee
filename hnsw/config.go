package hnsw

import (
	"os"

	"gopkg.in/yaml.v3"
)

// configFile mirrors Config's on-disk YAML shape. Seed and PruneExisting
// are pointer/plain fields so an absent seed in the file means "nil"
// rather than "0".
type configFile struct {
	M              int     `yaml:"m"`
	Mmax0          int     `yaml:"mmax0"`
	EfConstruction int     `yaml:"ef_construction"`
	MaxLevel       int     `yaml:"max_level"`
	Seed           *uint64 `yaml:"seed"`
	PruneExisting  bool    `yaml:"prune_existing"`
}

// LoadConfig reads a YAML configuration file and returns the Config it
// describes. DistanceFunc is always set to EuclideanDistance; the file
// format has no notion of custom distance functions. Every violated
// constraint is aggregated (via go.uber.org/multierr) into a single
// ErrInvalidParameter instead of reporting only the first.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, wrapErr(ErrInvalidParameter, "reading config file: "+err.Error())
	}

	var cf configFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return Config{}, wrapErr(ErrInvalidParameter, "parsing config file: "+err.Error())
	}

	cfg := Config{
		M:              cf.M,
		Mmax0:          cf.Mmax0,
		EfConstruction: cf.EfConstruction,
		MaxLevel:       cf.MaxLevel,
		Seed:           cf.Seed,
		PruneExisting:  cf.PruneExisting,
		DistanceFunc:   EuclideanDistance,
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Package config loads and validates the syncer configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/mayple/hubspot-portal-syncer/internal/domain"
)

// DefaultPath is used when no --config flag is given. PORTALSYNC_CONFIG
// overrides it.
const DefaultPath = "portalsync.yaml"

// Portal is one configured HubSpot account.
type Portal struct {
	Name   string
	ID     int64
	APIKey string
}

// Pair is a source portal and the target portal its properties are copied to.
type Pair struct {
	Label  string
	Source Portal
	Target Portal
}

// Config is the fully resolved syncer configuration. It is passed around
// explicitly; nothing reads it from ambient state.
type Config struct {
	ObjectTypes []domain.ObjectType
	Pairs       []Pair
}

// file mirrors the YAML layout of the config file.
type file struct {
	ObjectTypes []string              `yaml:"object_types"`
	Portals     map[string]filePortal `yaml:"portals"`
	Pairs       []filePair            `yaml:"pairs"`
}

type filePortal struct {
	PortalID  int64  `yaml:"portal_id"`
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type filePair struct {
	Label  string `yaml:"label"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Path returns the config file path to use for the given flag value.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	return envOr("PORTALSYNC_CONFIG", DefaultPath)
}

// Load reads and validates the config file at path. API keys given as
// api_key_env references are resolved from the environment here, so callers
// should load any .env file first.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(raw)
}

func parse(raw []byte) (*Config, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{}

	if len(f.ObjectTypes) == 0 {
		cfg.ObjectTypes = append(cfg.ObjectTypes, domain.AllObjectTypes...)
	}
	for _, s := range f.ObjectTypes {
		t, err := domain.ParseObjectType(s)
		if err != nil {
			return nil, fmt.Errorf("object_types: %w", err)
		}
		cfg.ObjectTypes = append(cfg.ObjectTypes, t)
	}

	if len(f.Portals) == 0 {
		return nil, fmt.Errorf("config defines no portals")
	}
	if len(f.Pairs) == 0 {
		return nil, fmt.Errorf("config defines no pairs")
	}

	portals := make(map[string]Portal, len(f.Portals))
	for name, p := range f.Portals {
		portal, err := resolvePortal(name, p)
		if err != nil {
			return nil, err
		}
		portals[name] = portal
	}

	seen := make(map[string]bool, len(f.Pairs))
	for _, fp := range f.Pairs {
		if fp.Label == "" {
			return nil, fmt.Errorf("pair %q -> %q: missing label", fp.Source, fp.Target)
		}
		if seen[fp.Label] {
			return nil, fmt.Errorf("duplicate pair label %q", fp.Label)
		}
		seen[fp.Label] = true

		src, ok := portals[fp.Source]
		if !ok {
			return nil, fmt.Errorf("pair %q: unknown source portal %q", fp.Label, fp.Source)
		}
		dst, ok := portals[fp.Target]
		if !ok {
			return nil, fmt.Errorf("pair %q: unknown target portal %q", fp.Label, fp.Target)
		}
		if fp.Source == fp.Target {
			return nil, fmt.Errorf("pair %q: source and target are both %q", fp.Label, fp.Source)
		}

		cfg.Pairs = append(cfg.Pairs, Pair{Label: fp.Label, Source: src, Target: dst})
	}

	return cfg, nil
}

func resolvePortal(name string, p filePortal) (Portal, error) {
	if p.PortalID == 0 {
		return Portal{}, fmt.Errorf("portal %q: missing portal_id", name)
	}

	key := p.APIKey
	if p.APIKeyEnv != "" {
		if key != "" {
			return Portal{}, fmt.Errorf("portal %q: set api_key or api_key_env, not both", name)
		}
		key = os.Getenv(p.APIKeyEnv)
		if key == "" {
			return Portal{}, fmt.Errorf("portal %q: environment variable %s is empty", name, p.APIKeyEnv)
		}
	}
	if key == "" {
		return Portal{}, fmt.Errorf("portal %q: missing API key", name)
	}

	return Portal{Name: name, ID: p.PortalID, APIKey: key}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

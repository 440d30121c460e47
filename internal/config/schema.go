// Package config provides configuration schema and persistence for agent
// profiles.
package config

import (
	"time"
)

// SchemaVersion is the current config schema version.
const SchemaVersion = 1

// Profile describes one spawnable MCP server and the session knobs to run it
// with. Command/args/env fields are compatible with the common mcpServers
// format for easy copy/paste.
type Profile struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// Session knobs; zero means the runtime default.
	RequestTimeoutSeconds    int `json:"requestTimeoutSeconds,omitempty"`
	HeartbeatIntervalSeconds int `json:"heartbeatIntervalSeconds,omitempty"`
	MetricsIntervalSeconds   int `json:"metricsIntervalSeconds,omitempty"`
}

// RequestTimeout returns the configured timeout, or 0 for the default.
func (p Profile) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSeconds) * time.Second
}

// HeartbeatInterval returns the configured interval, or 0 for the default.
func (p Profile) HeartbeatInterval() time.Duration {
	return time.Duration(p.HeartbeatIntervalSeconds) * time.Second
}

// MetricsInterval returns the configured interval, or 0 for the default.
func (p Profile) MetricsInterval() time.Duration {
	return time.Duration(p.MetricsIntervalSeconds) * time.Second
}

// Config is the root configuration structure.
type Config struct {
	SchemaVersion  int                `json:"schemaVersion"`
	DefaultProfile string             `json:"defaultProfile,omitempty"`
	Profiles       map[string]Profile `json:"profiles"`
	LastModified   time.Time          `json:"lastModified,omitempty"`
}

// NewConfig creates an empty config with the current schema version.
func NewConfig() *Config {
	return &Config{
		SchemaVersion: SchemaVersion,
		Profiles:      make(map[string]Profile),
	}
}

// Profile looks up a profile by id, falling back to the default profile when
// id is empty.
func (c *Config) Profile(id string) (Profile, bool) {
	if id == "" {
		id = c.DefaultProfile
	}
	p, ok := c.Profiles[id]
	return p, ok
}

// ProfileEntries returns all profiles as a slice.
func (c *Config) ProfileEntries() []Profile {
	out := make([]Profile, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		out = append(out, p)
	}
	return out
}

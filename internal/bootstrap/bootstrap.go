// Package bootstrap loads optional startup overrides for the core:
// per-protocol connect-server overrides and a debug-sink snapshot, the
// way an embedder might pin a protocol to a staging server or turn on
// verbose logging without touching account storage.
package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Overrides is the optional YAML override file shape:
//
//	servers:
//	  xmpp: talk.example.com
//	  irc: irc.example.net
//	debug:
//	  verbose: true
//	  unsafe: false
type Overrides struct {
	Servers map[string]string `yaml:"servers"`
	Debug   DebugOverride     `yaml:"debug"`
}

// DebugOverride mirrors the two env-driven debuglog.Sink flags, letting
// a deployment pin them from a file instead of the environment.
type DebugOverride struct {
	Verbose bool `yaml:"verbose"`
	Unsafe  bool `yaml:"unsafe"`
}

// Load reads and expands an overrides file. A missing path is not an
// error: it returns a zero-value Overrides so callers can treat "no
// file configured" and "empty file" identically.
func Load(path string) (Overrides, error) {
	if path == "" {
		return Overrides{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Overrides{}, nil
		}
		return Overrides{}, fmt.Errorf("bootstrap: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))
	var o Overrides
	if err := yaml.Unmarshal([]byte(expanded), &o); err != nil {
		return Overrides{}, fmt.Errorf("bootstrap: parse %s: %w", path, err)
	}
	return o, nil
}

// ServerFor resolves the connect server for protocolID, preferring an
// IMCORE_<PROTOCOLID>_SERVER environment variable (uppercased, e.g.
// IMCORE_XMPP_SERVER), then the YAML overrides map, then fallback.
func (o Overrides) ServerFor(protocolID, fallback string) string {
	envKey := "IMCORE_" + strings.ToUpper(protocolID) + "_SERVER"
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if v, ok := o.Servers[protocolID]; ok && v != "" {
		return v
	}
	return fallback
}

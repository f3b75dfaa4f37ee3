// Package manifest loads TOML-described protocol plugin metadata and
// checks it against the core's own ABI version before a Protocol is
// registered into protoplugin.Registry.
package manifest

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"imcore/internal/protoplugin"
)

// CoreABIVersion is the version a manifest's abi_version constraint is
// checked against. It follows semver so plugin manifests can express
// ranges ("^0.1", ">=0.1.0, <0.3.0") rather than exact pins.
const CoreABIVersion = "0.1.0"

// Manifest is the plugin.toml shape:
//
//	id = "xmpp"
//	name = "XMPP"
//	list_icon = "xmpp"
//	abi_version = "^0.1"
//	user_split_char = "@"
//	user_split_label = "Domain"
//
//	[options]
//	resource = "imcore"
//	require_tls = true
type Manifest struct {
	ID             string         `toml:"id"`
	Name           string         `toml:"name"`
	ListIcon       string         `toml:"list_icon"`
	ABIVersion     string         `toml:"abi_version"`
	UserSplitChar  string         `toml:"user_split_char"`
	UserSplitLabel string         `toml:"user_split_label"`
	Options        map[string]any `toml:"options"`
}

// Load parses a single manifest file from path.
func Load(path string) (Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return Manifest{}, fmt.Errorf("manifest: decode %s: %w", path, err)
	}
	if m.ID == "" {
		return Manifest{}, fmt.Errorf("manifest: %s: missing id", path)
	}
	return m, nil
}

// CheckABI reports whether the manifest's abi_version constraint is
// satisfied by coreVersion. An empty constraint is always satisfied.
func (m Manifest) CheckABI(coreVersion string) error {
	if m.ABIVersion == "" {
		return nil
	}
	core, err := semver.NewVersion(coreVersion)
	if err != nil {
		return fmt.Errorf("manifest: invalid core version %q: %w", coreVersion, err)
	}
	constraint, err := semver.NewConstraint(m.ABIVersion)
	if err != nil {
		return fmt.Errorf("manifest: %s: invalid abi_version constraint %q: %w", m.ID, m.ABIVersion, err)
	}
	if !constraint.Check(core) {
		return fmt.Errorf("manifest: %s requires core %s, running %s", m.ID, m.ABIVersion, coreVersion)
	}
	return nil
}

// OptionSchema converts the manifest's option declarations into the
// registry's native protoplugin.OptionSchema shape.
func (m Manifest) OptionSchema() protoplugin.OptionSchema {
	return protoplugin.OptionSchema{
		Options:        m.Options,
		UserSplitChar:  m.UserSplitChar,
		UserSplitLabel: m.UserSplitLabel,
	}
}

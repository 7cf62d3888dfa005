// Package assets embeds files shipped inside the sage binary.
package assets

import _ "embed"

//go:embed defaults/config.yaml
var defaultConfig []byte

// DefaultConfigYAML returns a copy of the default configuration document.
func DefaultConfigYAML() []byte {
	return append([]byte(nil), defaultConfig...)
}

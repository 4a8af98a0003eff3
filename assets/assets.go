// Package assets provides embedded assets for the studentfs program.
package assets

import _ "embed"

// Logo is a byte slice containing the embedded studentfs program logo.
//
//go:embed studentfs.svg
var Logo []byte

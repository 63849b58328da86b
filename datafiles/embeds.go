// Package datafiles carries the files binaries fall back to when none are
// found on disk.
package datafiles

import _ "embed"

// Descriptor is the stock raknetd.yaml.
//
//go:embed raknetd.yaml
var Descriptor []byte

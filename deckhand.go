// Package deckhand provides core application constants and version information
// which are used throughout the application.
package deckhand

import "github.com/blang/semver"

const (
	// Version is the current version of the application.
	Version = "0.3.0"
	// AppName is the name of the application.
	AppName = "deckhand"
)

// MinVersionBackend is the oldest stats backend known to speak the current
// pull and push protocol. Older backends still work for plain stats but do
// not answer request_stats after a reconnect.
var MinVersionBackend = semver.MustParse("0.2.0")

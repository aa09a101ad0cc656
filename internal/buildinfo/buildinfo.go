// Package buildinfo carries version metadata injected with -ldflags.
package buildinfo

var (
	Name      = "entity-suggest-go"
	Version   = "dev"
	Revision  = "unknown"
	BuildDate = "unknown"
)

//go:build !unix

package platform

// DisableCoreDumps is a no-op where core limits do not exist.
func DisableCoreDumps() error { return nil }

//go:build !windows

package storage

// SafePath returns a platform-safe equivalent of p. Outside Windows there is
// no path length limit to work around, so p is returned unchanged.
func SafePath(p string) string { return p }

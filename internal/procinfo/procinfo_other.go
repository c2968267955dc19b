//go:build !darwin

package procinfo

import "time"

// kernelLookup has no portable equivalent; gopsutil covers these
// platforms.
func kernelLookup(pid int32) (string, time.Time, bool) {
	return "", time.Time{}, false
}

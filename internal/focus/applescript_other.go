//go:build !darwin

package focus

// FrontWindowTitle is darwin-only; elsewhere it always reports absence.
func FrontWindowTitle() (string, bool) {
	return "", false
}

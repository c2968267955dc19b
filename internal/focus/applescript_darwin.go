//go:build darwin

package focus

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// frontWindowScript asks System Events for the frontmost window title.
// Some apps expose nothing useful through their accessibility tree but
// still answer AppleScript; this is the last resort after every AX probe
// has come up empty.
const frontWindowScript = `
tell application "System Events"
	set frontApp to first application process whose frontmost is true
	try
		tell frontApp
			return name of front window
		end tell
	on error
		return ""
	end try
end tell
`

// FrontWindowTitle shells out to osascript for the frontmost window
// title. Returns ("", false) on any failure; callers treat that as
// absence.
func FrontWindowTitle() (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "osascript", "-e", frontWindowScript).Output()
	if err != nil {
		return "", false
	}
	title := strings.TrimSpace(string(out))
	if title == "" {
		return "", false
	}
	return title, true
}

//go:build darwin

package procinfo

import (
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// kernelLookup reads process identity straight from the kernel. Works
// without any permission beyond same-user visibility, so degraded-mode
// tracking still gets a name.
func kernelLookup(pid int32) (name string, started time.Time, ok bool) {
	kp, err := unix.SysctlKinfoProc("kern.proc.pid", int(pid))
	if err != nil {
		return "", time.Time{}, false
	}

	comm := make([]byte, 0, len(kp.Proc.P_comm))
	for _, c := range kp.Proc.P_comm {
		if c == 0 {
			break
		}
		comm = append(comm, byte(c))
	}
	name = strings.TrimSpace(string(comm))
	if name == "" {
		return "", time.Time{}, false
	}

	tv := kp.Proc.P_starttime
	if tv.Sec > 0 {
		started = time.Unix(tv.Sec, int64(tv.Usec)*1000)
	}
	return name, started, true
}

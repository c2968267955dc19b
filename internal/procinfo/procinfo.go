// Package procinfo enriches focus events with process metadata and
// socket mappings.
//
// Everything here is a pure lookup: nothing mutates tracker state, and
// failures degrade to empty results. The gopsutil-backed paths work on
// every platform; darwin additionally has a kernel sysctl fast path that
// answers without accessibility permission, which matters in degraded
// mode.
package procinfo

import (
	"fmt"
	"strings"
	"time"

	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// AppInfo is basic identity for one process.
type AppInfo struct {
	PID       int32     `json:"pid"`
	Name      string    `json:"name"`
	Exe       string    `json:"exe,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Connection is one socket owned by a tracked process.
type Connection struct {
	LocalPort  uint32 `json:"local_port"`
	RemoteHost string `json:"remote_host,omitempty"`
}

// Lookup resolves process identity. The kernel fast path is tried first
// where available, then gopsutil.
func Lookup(pid int32) (AppInfo, error) {
	info := AppInfo{PID: pid}

	if name, started, ok := kernelLookup(pid); ok {
		info.Name = name
		info.StartedAt = started
	}

	p, err := process.NewProcess(pid)
	if err != nil {
		if info.Name != "" {
			return info, nil
		}
		return info, fmt.Errorf("procinfo: pid %d: %w", pid, err)
	}
	if info.Name == "" {
		if name, err := p.Name(); err == nil {
			info.Name = name
		}
	}
	if exe, err := p.Exe(); err == nil {
		info.Exe = exe
	}
	if info.StartedAt.IsZero() {
		if ms, err := p.CreateTime(); err == nil && ms > 0 {
			info.StartedAt = time.UnixMilli(ms)
		}
	}
	return info, nil
}

// BundleIDGuess derives a bundle-style identifier from an executable
// path inside an .app bundle, e.g.
// "/Applications/Safari.app/Contents/MacOS/Safari" -> "Safari.app".
// Used only when the workspace could not supply the real bundle id.
func BundleIDGuess(exe string) string {
	parts := strings.Split(exe, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if strings.HasSuffix(parts[i], ".app") {
			return parts[i]
		}
	}
	return ""
}

// Connections returns up to max TCP sockets for pid, established
// connections first. An unknown pid yields an empty slice, not an error.
func Connections(pid int32, max int) ([]Connection, error) {
	stats, err := gnet.ConnectionsPid("tcp", pid)
	if err != nil {
		return nil, fmt.Errorf("procinfo: connections for pid %d: %w", pid, err)
	}
	if max <= 0 {
		max = 16
	}

	conns := make([]Connection, 0, max)
	// Established first; listeners fill the remainder.
	for _, pass := range []bool{true, false} {
		for _, st := range stats {
			if len(conns) >= max {
				return conns, nil
			}
			established := st.Status == "ESTABLISHED"
			if established != pass {
				continue
			}
			c := Connection{LocalPort: st.Laddr.Port}
			if st.Raddr.IP != "" {
				c.RemoteHost = fmt.Sprintf("%s:%d", st.Raddr.IP, st.Raddr.Port)
			}
			conns = append(conns, c)
		}
	}
	return conns, nil
}

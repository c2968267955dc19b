//go:build darwin && cgo

package observer

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AppKit -framework Foundation

#import <AppKit/AppKit.h>
#include <stdlib.h>
#include <string.h>

// Snapshot of the frontmost application. Strings are strdup'd; the
// caller frees them.
static int frontmostApp(int *pid, char **bundleID, char **name) {
    int ok = 0;
    @autoreleasepool {
        NSRunningApplication *app = [[NSWorkspace sharedWorkspace] frontmostApplication];
        if (app != nil) {
            *pid = (int)app.processIdentifier;
            NSString *bid = app.bundleIdentifier;
            NSString *nm = app.localizedName;
            *bundleID = strdup(bid != nil ? [bid UTF8String] : "");
            *name = strdup(nm != nil ? [nm UTF8String] : "");
            ok = 1;
        }
    }
    return ok;
}
*/
import "C"

import (
	"context"
	"time"
	"unsafe"
)

// workspaceSource polls NSWorkspace for the frontmost application.
// Workspace activation notifications require a running AppKit main loop,
// which a CLI process does not have; a cheap pid comparison on a short
// timer gives the same transition stream without one. Only changes are
// emitted.
type workspaceSource struct {
	interval time.Duration
	ch       chan Activation
}

// NewWorkspaceSource creates the frontmost-application activation source.
// interval <= 0 selects the default 200ms.
func NewWorkspaceSource(interval time.Duration) ActivationSource {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &workspaceSource{
		interval: interval,
		ch:       make(chan Activation, 16),
	}
}

func (w *workspaceSource) Events() <-chan Activation {
	return w.ch
}

func (w *workspaceSource) Start(ctx context.Context) error {
	go w.loop(ctx)
	return nil
}

func (w *workspaceSource) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var lastPID int32 = -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			act, ok := frontmost()
			if !ok || act.PID == lastPID {
				continue
			}
			lastPID = act.PID
			select {
			case w.ch <- act:
			default:
				// Consumer is behind; the next tick re-detects.
				lastPID = -1
			}
		}
	}
}

func frontmost() (Activation, bool) {
	var pid C.int
	var bundleID, name *C.char
	if C.frontmostApp(&pid, &bundleID, &name) == 0 {
		return Activation{}, false
	}
	defer C.free(unsafe.Pointer(bundleID))
	defer C.free(unsafe.Pointer(name))
	return Activation{
		PID:      int32(pid),
		BundleID: C.GoString(bundleID),
		Name:     C.GoString(name),
		At:       time.Now(),
	}, true
}

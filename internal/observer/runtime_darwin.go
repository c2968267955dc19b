//go:build darwin && cgo

package observer

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation

#include <ApplicationServices/ApplicationServices.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdlib.h>
#include <string.h>
#include <unistd.h>

// Bridge into Go; defined in callback_darwin.go.
extern void goAXObserverEvent(unsigned long long token, char *notification, AXUIElementRef element);

// The run loop that owns every observer source. It lives on a dedicated
// thread started from Go (see runLoopThread below) so the callbacks never
// contend with Go's scheduler threads.
static CFRunLoopRef observerRunLoop = NULL;
static volatile int runLoopReady = 0;

static void axObserverTrampoline(AXObserverRef obs, AXUIElementRef element, CFStringRef notification, void *refcon) {
    (void)obs;
    char buf[128];
    if (!CFStringGetCString(notification, buf, sizeof(buf), kCFStringEncodingUTF8)) {
        return;
    }
    // The element is borrowed for the duration of the callback; the Go
    // side retains before enqueueing.
    goAXObserverEvent((unsigned long long)(uintptr_t)refcon, buf, element);
}

static void runLoopMain(void) {
    observerRunLoop = CFRunLoopGetCurrent();
    runLoopReady = 1;
    // Park the loop with a far-future timer so it keeps running while
    // sources come and go.
    CFRunLoopTimerRef keepAlive = CFRunLoopTimerCreate(
        kCFAllocatorDefault, CFAbsoluteTimeGetCurrent() + 1.0e9, 1.0e9,
        0, 0, NULL, NULL);
    CFRunLoopAddTimer(observerRunLoop, keepAlive, kCFRunLoopDefaultMode);
    CFRunLoopRun();
    CFRelease(keepAlive);
    runLoopReady = 0;
    observerRunLoop = NULL;
}

static int waitRunLoopReady(void) {
    for (int i = 0; i < 200 && !runLoopReady; i++) {
        usleep(5000);
    }
    return runLoopReady;
}

static void stopRunLoop(void) {
    if (observerRunLoop != NULL) {
        CFRunLoopStop(observerRunLoop);
    }
}

static AXObserverRef createObserver(pid_t pid, unsigned long long token, int *axerr) {
    AXObserverRef obs = NULL;
    AXError err = AXObserverCreate(pid, axObserverTrampoline, &obs);
    *axerr = (int)err;
    if (err != kAXErrorSuccess) {
        return NULL;
    }
    (void)token;
    return obs;
}

static int observerAddNotification(AXObserverRef obs, AXUIElementRef element, const char *name, unsigned long long token) {
    CFStringRef note = CFStringCreateWithCString(kCFAllocatorDefault, name, kCFStringEncodingUTF8);
    if (note == NULL) {
        return kAXErrorFailure;
    }
    AXError err = AXObserverAddNotification(obs, element, note, (void *)(uintptr_t)token);
    CFRelease(note);
    return (int)err;
}

static void observerRemoveNotification(AXObserverRef obs, AXUIElementRef element, const char *name) {
    CFStringRef note = CFStringCreateWithCString(kCFAllocatorDefault, name, kCFStringEncodingUTF8);
    if (note == NULL) {
        return;
    }
    AXObserverRemoveNotification(obs, element, note);
    CFRelease(note);
}

static void observerAddSource(AXObserverRef obs) {
    if (observerRunLoop == NULL) {
        return;
    }
    CFRunLoopAddSource(observerRunLoop, AXObserverGetRunLoopSource(obs), kCFRunLoopDefaultMode);
    CFRunLoopWakeUp(observerRunLoop);
}

static void observerRemoveSource(AXObserverRef obs) {
    if (observerRunLoop == NULL) {
        return;
    }
    CFRunLoopRemoveSource(observerRunLoop, AXObserverGetRunLoopSource(obs), kCFRunLoopDefaultMode);
    CFRunLoopWakeUp(observerRunLoop);
}

static void observerRelease(AXObserverRef obs) {
    CFRelease(obs);
}
*/
import "C"

import (
	"runtime"
	"sync"
	"unsafe"

	"focusd/internal/ax"
)

// systemRuntime drives real AXObservers. One dedicated OS thread runs the
// CFRunLoop that owns every observer source; tokens map refcon values
// back to Go delivery closures.
type systemRuntime struct {
	mu        sync.Mutex
	next      Token
	observers map[Token]*systemObserver
	started   bool
}

type systemObserver struct {
	ref     C.AXObserverRef
	deliver DeliverFunc
}

var (
	sysRuntimeOnce sync.Once
	sysRuntime     *systemRuntime
)

// SystemRuntime returns the AXObserver runtime, starting its run-loop
// thread on first use.
func SystemRuntime() (Runtime, error) {
	var err error
	sysRuntimeOnce.Do(func() {
		sysRuntime = &systemRuntime{
			next:      1,
			observers: make(map[Token]*systemObserver),
		}
		go func() {
			// The run loop must stay on one OS thread for its lifetime.
			runtime.LockOSThread()
			C.runLoopMain()
		}()
		if C.waitRunLoopReady() == 0 {
			err = ErrRunLoopUnavailable
			sysRuntime = nil
		}
	})
	if sysRuntime == nil {
		return nil, ErrRunLoopUnavailable
	}
	return sysRuntime, err
}

func (r *systemRuntime) Create(pid int32, deliver DeliverFunc) (Token, error) {
	r.mu.Lock()
	tok := r.next
	r.next++
	r.mu.Unlock()

	var axerr C.int
	obs := C.createObserver(C.pid_t(pid), C.ulonglong(tok), &axerr)
	if obs == nil {
		return 0, ax.Classify(ax.Code(axerr), "create observer")
	}

	r.mu.Lock()
	r.observers[tok] = &systemObserver{ref: obs, deliver: deliver}
	r.mu.Unlock()
	return tok, nil
}

func (r *systemRuntime) AddNotification(tok Token, element ax.Ref, kind Kind) error {
	obs := r.lookup(tok)
	if obs == nil {
		return ErrNotBound
	}
	cname := C.CString(string(kind))
	defer C.free(unsafe.Pointer(cname))
	code := C.observerAddNotification(obs.ref, C.AXUIElementRef(unsafe.Pointer(element)), cname, C.ulonglong(tok))
	if ax.Code(code) != ax.CodeSuccess {
		return ax.Classify(ax.Code(code), "add notification "+string(kind))
	}
	return nil
}

func (r *systemRuntime) RemoveNotification(tok Token, element ax.Ref, kind Kind) {
	obs := r.lookup(tok)
	if obs == nil {
		return
	}
	cname := C.CString(string(kind))
	defer C.free(unsafe.Pointer(cname))
	C.observerRemoveNotification(obs.ref, C.AXUIElementRef(unsafe.Pointer(element)), cname)
}

func (r *systemRuntime) AddRunLoopSource(tok Token) {
	if obs := r.lookup(tok); obs != nil {
		C.observerAddSource(obs.ref)
	}
}

func (r *systemRuntime) RemoveRunLoopSource(tok Token) {
	if obs := r.lookup(tok); obs != nil {
		C.observerRemoveSource(obs.ref)
	}
}

func (r *systemRuntime) Release(tok Token) {
	r.mu.Lock()
	obs := r.observers[tok]
	delete(r.observers, tok)
	r.mu.Unlock()
	if obs != nil {
		C.observerRelease(obs.ref)
	}
}

func (r *systemRuntime) lookup(tok Token) *systemObserver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.observers[tok]
}

// dispatch is called from the run-loop thread via the exported callback.
func (r *systemRuntime) dispatch(tok Token, name string, element ax.Ref) {
	obs := r.lookup(tok)
	if obs == nil {
		// Stale: the observer was released while the callback was in
		// flight. Nothing to do; the manager's generation guard covers
		// the window between removal and release.
		return
	}
	obs.deliver(Kind(name), element)
}

var _ Runtime = (*systemRuntime)(nil)

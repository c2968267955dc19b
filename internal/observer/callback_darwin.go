//go:build darwin && cgo

package observer

/*
#include <ApplicationServices/ApplicationServices.h>
*/
import "C"

import (
	"unsafe"

	"focusd/internal/ax"
)

// goAXObserverEvent is the single entry point from the observer run-loop
// thread back into Go. The element is borrowed; delivery closures retain
// before the callback returns.
//
//export goAXObserverEvent
func goAXObserverEvent(token C.ulonglong, notification *C.char, element C.AXUIElementRef) {
	if sysRuntime == nil {
		return
	}
	sysRuntime.dispatch(Token(token), C.GoString(notification), ax.Ref(unsafe.Pointer(element)))
}

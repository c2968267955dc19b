//go:build darwin && cgo

package clipboard

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AppKit -framework Foundation

#import <AppKit/AppKit.h>
#include <stdlib.h>
#include <string.h>

// NSPasteboard must not be touched from multiple threads at once; all
// calls here arrive from the single engine goroutine, so plain
// autorelease-pool access is enough.

static long long pasteboardChangeCount(void) {
    @autoreleasepool {
        return (long long)[[NSPasteboard generalPasteboard] changeCount];
    }
}

// Returns a malloc'd copy of the data for the given UTI, or NULL.
static void* pasteboardCopyData(const char *uti, size_t *size) {
    void *out = NULL;
    *size = 0;
    @autoreleasepool {
        NSPasteboard *pb = [NSPasteboard generalPasteboard];
        NSString *type = [NSString stringWithUTF8String:uti];
        NSData *data = [pb dataForType:type];
        if (data != nil && data.length > 0) {
            out = malloc(data.length);
            if (out != NULL) {
                memcpy(out, data.bytes, data.length);
                *size = (size_t)data.length;
            }
        }
    }
    return out;
}
*/
import "C"

import "unsafe"

// systemPasteboard reads the general NSPasteboard.
type systemPasteboard struct{}

// SystemPasteboard returns the live pasteboard for this platform.
func SystemPasteboard() Pasteboard {
	return systemPasteboard{}
}

func (systemPasteboard) ChangeCount() int64 {
	return int64(C.pasteboardChangeCount())
}

func (systemPasteboard) Read(f Format) ([]byte, bool) {
	uti := C.CString(string(f))
	defer C.free(unsafe.Pointer(uti))

	var size C.size_t
	buf := C.pasteboardCopyData(uti, &size)
	if buf == nil {
		return nil, false
	}
	defer C.free(buf)
	return C.GoBytes(buf, C.int(size)), true
}

var _ Pasteboard = systemPasteboard{}

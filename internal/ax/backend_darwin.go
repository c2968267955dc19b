//go:build darwin && cgo

package ax

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation

#include <ApplicationServices/ApplicationServices.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdlib.h>
#include <string.h>

// Thin C shims over the accessibility call surface. Every function that
// hands a CFTypeRef back to Go follows the copy rule: Go adopts the +1
// immediately. Get-rule values (array members) are returned borrowed and
// the Go side retains explicitly before the container goes away.

static int axCopyAttr(AXUIElementRef el, const char *name, CFTypeRef *out) {
    CFStringRef attr = CFStringCreateWithCString(kCFAllocatorDefault, name, kCFStringEncodingUTF8);
    if (attr == NULL) {
        return kAXErrorFailure;
    }
    AXError err = AXUIElementCopyAttributeValue(el, attr, out);
    CFRelease(attr);
    return (int)err;
}

// Type tags matching the Go TypeID constants.
enum {
    AX_T_UNKNOWN = 0,
    AX_T_STRING  = 1,
    AX_T_BOOL    = 2,
    AX_T_NUMBER  = 3,
    AX_T_POINT   = 4,
    AX_T_SIZE    = 5,
    AX_T_RECT    = 6,
    AX_T_ELEMENT = 7,
    AX_T_ARRAY   = 8,
};

static int axTypeOf(CFTypeRef ref) {
    if (ref == NULL) {
        return AX_T_UNKNOWN;
    }
    CFTypeID id = CFGetTypeID(ref);
    if (id == CFStringGetTypeID()) {
        return AX_T_STRING;
    }
    if (id == CFBooleanGetTypeID()) {
        return AX_T_BOOL;
    }
    if (id == CFNumberGetTypeID()) {
        return AX_T_NUMBER;
    }
    if (id == CFArrayGetTypeID()) {
        return AX_T_ARRAY;
    }
    if (id == AXUIElementGetTypeID()) {
        return AX_T_ELEMENT;
    }
    if (id == AXValueGetTypeID()) {
        switch (AXValueGetType((AXValueRef)ref)) {
        case kAXValueTypeCGPoint:
            return AX_T_POINT;
        case kAXValueTypeCGSize:
            return AX_T_SIZE;
        case kAXValueTypeCGRect:
            return AX_T_RECT;
        default:
            return AX_T_UNKNOWN;
        }
    }
    return AX_T_UNKNOWN;
}

// Copies the string value into a malloc'd UTF-8 buffer, or NULL.
static char* axCopyString(CFTypeRef ref) {
    if (axTypeOf(ref) != AX_T_STRING) {
        return NULL;
    }
    CFStringRef s = (CFStringRef)ref;
    CFIndex length = CFStringGetLength(s);
    CFIndex size = CFStringGetMaximumSizeForEncoding(length, kCFStringEncodingUTF8) + 1;
    char *buf = (char*)malloc(size);
    if (buf == NULL) {
        return NULL;
    }
    if (!CFStringGetCString(s, buf, size, kCFStringEncodingUTF8)) {
        free(buf);
        return NULL;
    }
    return buf;
}

static int axGetBool(CFTypeRef ref, int *out) {
    if (axTypeOf(ref) != AX_T_BOOL) {
        return 0;
    }
    *out = CFBooleanGetValue((CFBooleanRef)ref) ? 1 : 0;
    return 1;
}

static int axGetNumber(CFTypeRef ref, double *out) {
    if (axTypeOf(ref) != AX_T_NUMBER) {
        return 0;
    }
    return CFNumberGetValue((CFNumberRef)ref, kCFNumberDoubleType, out) ? 1 : 0;
}

static int axGetPoint(CFTypeRef ref, double *x, double *y) {
    if (axTypeOf(ref) != AX_T_POINT) {
        return 0;
    }
    CGPoint p;
    if (!AXValueGetValue((AXValueRef)ref, kAXValueTypeCGPoint, &p)) {
        return 0;
    }
    *x = p.x;
    *y = p.y;
    return 1;
}

static int axGetSize(CFTypeRef ref, double *w, double *h) {
    if (axTypeOf(ref) != AX_T_SIZE) {
        return 0;
    }
    CGSize s;
    if (!AXValueGetValue((AXValueRef)ref, kAXValueTypeCGSize, &s)) {
        return 0;
    }
    *w = s.width;
    *h = s.height;
    return 1;
}

static int axGetRect(CFTypeRef ref, double *x, double *y, double *w, double *h) {
    if (axTypeOf(ref) != AX_T_RECT) {
        return 0;
    }
    CGRect r;
    if (!AXValueGetValue((AXValueRef)ref, kAXValueTypeCGRect, &r)) {
        return 0;
    }
    *x = r.origin.x;
    *y = r.origin.y;
    *w = r.size.width;
    *h = r.size.height;
    return 1;
}

static long axArrayLen(CFTypeRef ref) {
    if (axTypeOf(ref) != AX_T_ARRAY) {
        return -1;
    }
    return (long)CFArrayGetCount((CFArrayRef)ref);
}

// Get rule: the returned value is borrowed from the array.
static CFTypeRef axArrayAt(CFTypeRef ref, long i) {
    if (axTypeOf(ref) != AX_T_ARRAY) {
        return NULL;
    }
    CFArrayRef arr = (CFArrayRef)ref;
    if (i < 0 || i >= CFArrayGetCount(arr)) {
        return NULL;
    }
    return CFArrayGetValueAtIndex(arr, i);
}

static int axGetPid(CFTypeRef ref, int *pid) {
    if (axTypeOf(ref) != AX_T_ELEMENT) {
        return 0;
    }
    pid_t p;
    if (AXUIElementGetPid((AXUIElementRef)ref, &p) != kAXErrorSuccess) {
        return 0;
    }
    *pid = (int)p;
    return 1;
}
*/
import "C"

import "unsafe"

// systemBackend drives the live macOS accessibility runtime. It is
// stateless; all state lives in the foreign objects themselves.
type systemBackend struct{}

// SystemBackend returns the accessibility backend for this platform.
func SystemBackend() (Backend, error) {
	return systemBackend{}, nil
}

func cfRef(ref Ref) C.CFTypeRef {
	return C.CFTypeRef(unsafe.Pointer(ref)) //nolint:govet // opaque foreign pointer round-trip
}

func goRef(ref C.CFTypeRef) Ref {
	return Ref(unsafe.Pointer(ref))
}

func (systemBackend) Retain(ref Ref) Ref {
	C.CFRetain(cfRef(ref))
	return ref
}

func (systemBackend) Release(ref Ref) {
	C.CFRelease(cfRef(ref))
}

func (systemBackend) TypeOf(ref Ref) TypeID {
	return TypeID(C.axTypeOf(cfRef(ref)))
}

func (systemBackend) CopyAttribute(element Ref, name string) (Ref, Code) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var out C.CFTypeRef
	code := C.axCopyAttr(C.AXUIElementRef(unsafe.Pointer(element)), cname, &out)
	if Code(code) != CodeSuccess {
		return NilRef, Code(code)
	}
	return goRef(out), CodeSuccess
}

func (systemBackend) String(ref Ref) (string, bool) {
	buf := C.axCopyString(cfRef(ref))
	if buf == nil {
		return "", false
	}
	defer C.free(unsafe.Pointer(buf))
	return C.GoString(buf), true
}

func (systemBackend) Bool(ref Ref) (bool, bool) {
	var out C.int
	if C.axGetBool(cfRef(ref), &out) == 0 {
		return false, false
	}
	return out == 1, true
}

func (systemBackend) Number(ref Ref) (float64, bool) {
	var out C.double
	if C.axGetNumber(cfRef(ref), &out) == 0 {
		return 0, false
	}
	return float64(out), true
}

func (systemBackend) Point(ref Ref) (Point, bool) {
	var x, y C.double
	if C.axGetPoint(cfRef(ref), &x, &y) == 0 {
		return Point{}, false
	}
	return Point{X: float64(x), Y: float64(y)}, true
}

func (systemBackend) Size(ref Ref) (Size, bool) {
	var w, h C.double
	if C.axGetSize(cfRef(ref), &w, &h) == 0 {
		return Size{}, false
	}
	return Size{W: float64(w), H: float64(h)}, true
}

func (systemBackend) Rect(ref Ref) (Rect, bool) {
	var x, y, w, h C.double
	if C.axGetRect(cfRef(ref), &x, &y, &w, &h) == 0 {
		return Rect{}, false
	}
	return Rect{X: float64(x), Y: float64(y), W: float64(w), H: float64(h)}, true
}

func (systemBackend) IsElement(ref Ref) bool {
	return TypeID(C.axTypeOf(cfRef(ref))) == TypeElement
}

func (systemBackend) ArrayLen(ref Ref) int {
	return int(C.axArrayLen(cfRef(ref)))
}

func (systemBackend) ArrayAt(ref Ref, i int) (Ref, bool) {
	v := C.axArrayAt(cfRef(ref), C.long(i))
	if v == nil {
		return NilRef, false
	}
	return goRef(v), true
}

func (systemBackend) AppElement(pid int32) (Ref, Code) {
	el := C.AXUIElementCreateApplication(C.pid_t(pid))
	if el == nil {
		return NilRef, CodeFailure
	}
	return Ref(unsafe.Pointer(el)), CodeSuccess
}

func (systemBackend) PID(element Ref) (int32, bool) {
	var pid C.int
	if C.axGetPid(cfRef(element), &pid) == 0 {
		return 0, false
	}
	return int32(pid), true
}

var _ Backend = systemBackend{}

//go:build darwin && cgo

package trust

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices -framework Foundation

#import <Foundation/Foundation.h>
#include <ApplicationServices/ApplicationServices.h>

static int checkAccessibility(int prompt) {
    NSDictionary *options = @{(__bridge id)kAXTrustedCheckOptionPrompt: prompt ? @YES : @NO};
    return AXIsProcessTrustedWithOptions((__bridge CFDictionaryRef)options) ? 1 : 0;
}
*/
import "C"

type systemGate struct{}

func (systemGate) Check(prompt bool) Level {
	p := C.int(0)
	if prompt {
		p = 1
	}
	if C.checkAccessibility(p) == 1 {
		return Trusted
	}
	return Untrusted
}

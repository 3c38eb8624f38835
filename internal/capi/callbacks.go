//go:build cgo

package capi

/*
#include "ownership.h"
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"
)

//export goReleaseCell
func goReleaseCell(cell *C.int) {
	ReleaseGoCell(unsafe.Pointer(cell))
}

//export goReportCell
func goReportCell(observer C.uintptr_t, value C.int) {
	report, ok := cgo.Handle(observer).Value().(func(int32))
	if !ok {
		return
	}
	report(int32(value))
}

// Copyright 2025 Ayman Bagabas
// SPDX-License-Identifier: MIT

//go:build darwin

package clipboard

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/ebitengine/purego/objc"
)

var (
	nsPasteboardClass objc.Class
	nsDataClass       objc.Class

	selGeneralPasteboard   objc.SEL
	selDataForType         objc.SEL
	selClearContents       objc.SEL
	selSetDataForType      objc.SEL
	selDataWithBytesLength objc.SEL
	selBytes               objc.SEL
	selLength              objc.SEL

	// NSString constants exported by AppKit.
	pasteboardTypeString objc.ID
	pasteboardTypePNG    objc.ID
)

func initialize() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	appkit, err := purego.Dlopen("/System/Library/Frameworks/AppKit.framework/AppKit", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return fmt.Errorf("%w: load AppKit: %v", ErrUnavailable, err)
	}

	nsPasteboardClass = objc.GetClass("NSPasteboard")
	nsDataClass = objc.GetClass("NSData")

	selGeneralPasteboard = objc.RegisterName("generalPasteboard")
	selDataForType = objc.RegisterName("dataForType:")
	selClearContents = objc.RegisterName("clearContents")
	selSetDataForType = objc.RegisterName("setData:forType:")
	selDataWithBytesLength = objc.RegisterName("dataWithBytes:length:")
	selBytes = objc.RegisterName("bytes")
	selLength = objc.RegisterName("length")

	typeString, err := purego.Dlsym(appkit, "NSPasteboardTypeString")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	typePNG, err := purego.Dlsym(appkit, "NSPasteboardTypePNG")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	pasteboardTypeString = objc.ID(*(*uintptr)(unsafe.Pointer(typeString)))
	pasteboardTypePNG = objc.ID(*(*uintptr)(unsafe.Pointer(typePNG)))
	return nil
}

func pasteboardType(t Format) (objc.ID, error) {
	switch t {
	case Text:
		return pasteboardTypeString, nil
	case Image:
		return pasteboardTypePNG, nil
	default:
		return 0, ErrUnsupported
	}
}

func read(t Format) ([]byte, error) {
	typ, err := pasteboardType(t)
	if err != nil {
		return nil, err
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	pasteboard := objc.ID(nsPasteboardClass).Send(selGeneralPasteboard)
	if pasteboard == 0 {
		return nil, ErrOccupied
	}

	data := pasteboard.Send(selDataForType, typ)
	if data == 0 {
		return nil, ErrContentUnavailable
	}

	length := objc.Send[uint64](data, selLength)
	if length == 0 {
		return nil, nil
	}

	bytes := data.Send(selBytes)
	if bytes == 0 {
		return nil, ErrConversionFailure
	}

	result := make([]byte, length)
	copy(result, unsafe.Slice((*byte)(unsafe.Pointer(bytes)), length))
	return result, nil
}

func write(t Format, buf []byte) (<-chan struct{}, error) {
	typ, err := pasteboardType(t)
	if err != nil {
		return nil, err
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	pasteboard := objc.ID(nsPasteboardClass).Send(selGeneralPasteboard)
	if pasteboard == 0 {
		return nil, ErrOccupied
	}

	pasteboard.Send(selClearContents)

	// The pasteboard owns the data; an empty write just clears it.
	if len(buf) > 0 {
		data := objc.ID(nsDataClass).Send(selDataWithBytesLength, unsafe.Pointer(&buf[0]), uint64(len(buf)))
		if data == 0 {
			return nil, ErrConversionFailure
		}
		if !objc.Send[bool](pasteboard, selSetDataForType, data, typ) {
			return nil, ErrOccupied
		}
	}

	// The pasteboard keeps the content after this process exits.
	return nil, nil
}

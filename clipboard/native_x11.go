// Copyright 2025 Ayman Bagabas
// SPDX-License-Identifier: MIT

//go:build (linux && !android) || freebsd

package clipboard

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

type (
	xDisplay uintptr
	xWindow  uintptr
	xAtom    uintptr
	xTime    uintptr
	xBool    int32
)

const (
	xNone            = 0
	xCurrentTime     = 0
	xAnyPropertyType = 0
	xPropModeReplace = 0
	xSuccess         = 0
	xSelectionClear  = 29
	xSelectionReq    = 30
	xSelectionNotify = 31
)

// xEvent is a union in C; pad covers the largest variant.
type xEvent struct {
	typ int32
	pad [23]uintptr
}

type xSelectionEvent struct {
	typ       int32
	serial    uintptr
	sendEvent xBool
	display   xDisplay
	requestor xWindow
	selection xAtom
	target    xAtom
	property  xAtom
	time      xTime
}

type xSelectionRequestEvent struct {
	typ       int32
	serial    uintptr
	sendEvent xBool
	display   xDisplay
	owner     xWindow
	requestor xWindow
	selection xAtom
	target    xAtom
	property  xAtom
	time      xTime
}

var (
	libX11 uintptr

	xOpenDisplay        func(name uintptr) xDisplay
	xCloseDisplay       func(d xDisplay)
	xDefaultRootWindow  func(d xDisplay) xWindow
	xCreateSimpleWindow func(d xDisplay, parent xWindow, x, y int, width, height, borderWidth uint, border, background uintptr) xWindow
	xInternAtom         func(d xDisplay, name string, onlyIfExists xBool) xAtom
	xSetSelectionOwner  func(d xDisplay, selection xAtom, owner xWindow, t xTime)
	xGetSelectionOwner  func(d xDisplay, selection xAtom) xWindow
	xNextEvent          func(d xDisplay, ev *xEvent)
	xChangeProperty     func(d xDisplay, w xWindow, property xAtom, typ xAtom, format int, mode int, data *byte, nelements int) int
	xSendEvent          func(d xDisplay, w xWindow, propagate xBool, mask int64, ev *xEvent)
	xGetWindowProperty  func(d xDisplay, w xWindow, property xAtom, offset, length int64, del xBool, reqType xAtom, actualType *xAtom, actualFormat *int, nitems *uint64, bytesAfter *uint64, prop **byte) int
	xFree               func(data unsafe.Pointer)
	xDeleteProperty     func(d xDisplay, w xWindow, property xAtom)
	xConvertSelection   func(d xDisplay, selection, target, property xAtom, requestor xWindow, t xTime)

	x11Once sync.Once
	x11Err  error
)

const x11Help = `%w: failed to initialize the X11 display. Installing the
following dependency may help:

	# Debian/Ubuntu
	apt install -y libx11-6

	# Fedora/RHEL
	dnf install -y libX11

	# FreeBSD
	pkg install xorg-libraries

On a host without a frame buffer, start a virtual one:

	Xvfb :99 -screen 0 1024x768x24 > /dev/null 2>&1 &
	export DISPLAY=:99.0
`

// x11Libraries lists libX11 locations on Linux and the BSDs.
var x11Libraries = []string{
	"libX11.so.6",
	"libX11.so",
	"/usr/local/lib/libX11.so.6",
	"/usr/local/lib/libX11.so",
	"/usr/X11R6/lib/libX11.so.6",
	"/usr/X11R6/lib/libX11.so",
}

func initializeX11() error {
	x11Once.Do(func() {
		x11Err = loadX11()
	})
	return x11Err
}

func loadX11() error {
	var err error
	for _, path := range x11Libraries {
		libX11, err = purego.Dlopen(path, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf(x11Help, ErrUnavailable)
	}

	purego.RegisterLibFunc(&xOpenDisplay, libX11, "XOpenDisplay")
	purego.RegisterLibFunc(&xCloseDisplay, libX11, "XCloseDisplay")
	purego.RegisterLibFunc(&xDefaultRootWindow, libX11, "XDefaultRootWindow")
	purego.RegisterLibFunc(&xCreateSimpleWindow, libX11, "XCreateSimpleWindow")
	purego.RegisterLibFunc(&xInternAtom, libX11, "XInternAtom")
	purego.RegisterLibFunc(&xSetSelectionOwner, libX11, "XSetSelectionOwner")
	purego.RegisterLibFunc(&xGetSelectionOwner, libX11, "XGetSelectionOwner")
	purego.RegisterLibFunc(&xNextEvent, libX11, "XNextEvent")
	purego.RegisterLibFunc(&xChangeProperty, libX11, "XChangeProperty")
	purego.RegisterLibFunc(&xSendEvent, libX11, "XSendEvent")
	purego.RegisterLibFunc(&xGetWindowProperty, libX11, "XGetWindowProperty")
	purego.RegisterLibFunc(&xFree, libX11, "XFree")
	purego.RegisterLibFunc(&xDeleteProperty, libX11, "XDeleteProperty")
	purego.RegisterLibFunc(&xConvertSelection, libX11, "XConvertSelection")

	d := openDisplay()
	if d == 0 {
		return fmt.Errorf(x11Help, ErrUnavailable)
	}
	xCloseDisplay(d)
	return nil
}

// openDisplay retries because XOpenDisplay fails spuriously under load.
func openDisplay() xDisplay {
	for i := 0; i < 42; i++ {
		if d := xOpenDisplay(0); d != 0 {
			return d
		}
	}
	return 0
}

func x11Target(t Format) (string, error) {
	switch t {
	case Text:
		return "UTF8_STRING", nil
	case Image:
		return "image/png", nil
	default:
		return "", ErrUnsupported
	}
}

func readX11(t Format) ([]byte, error) {
	targetName, err := x11Target(t)
	if err != nil {
		return nil, err
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	d := openDisplay()
	if d == 0 {
		return nil, ErrOccupied
	}
	defer xCloseDisplay(d)

	window := xCreateSimpleWindow(d, xDefaultRootWindow(d), 0, 0, 1, 1, 0, 0, 0)

	sel := xInternAtom(d, "CLIPBOARD", 0)
	prop := xInternAtom(d, "CLIPIO_DATA", 0)
	target := xInternAtom(d, targetName, 1)
	if target == xNone {
		// Nobody on this display has ever offered the target.
		return nil, ErrContentUnavailable
	}
	if xGetSelectionOwner(d, sel) == xNone {
		return nil, ErrContentUnavailable
	}

	xConvertSelection(d, sel, target, prop, window, xCurrentTime)

	var ev xEvent
	for {
		xNextEvent(d, &ev)
		if ev.typ == xSelectionNotify {
			break
		}
	}

	sev := (*xSelectionEvent)(unsafe.Pointer(&ev))
	if sev.property == xNone || sev.selection != sel || sev.property != prop {
		return nil, ErrContentUnavailable
	}

	var (
		actual     xAtom
		format     int
		nitems     uint64
		bytesAfter uint64
		data       *byte
	)
	ret := xGetWindowProperty(sev.display, sev.requestor, sev.property,
		0, ^int64(0), 0, xAnyPropertyType,
		&actual, &format, &nitems, &bytesAfter, &data)
	if ret != xSuccess || data == nil {
		return nil, fmt.Errorf("%w: XGetWindowProperty returned %d", ErrConversionFailure, ret)
	}
	defer xFree(unsafe.Pointer(data))
	defer xDeleteProperty(sev.display, sev.requestor, sev.property)

	if nitems == 0 {
		return nil, nil
	}

	result := make([]byte, nitems)
	copy(result, unsafe.Slice(data, nitems))
	return result, nil
}

// writeX11 takes ownership of the CLIPBOARD selection and serves requests
// from a dedicated goroutine until another client takes it over.
func writeX11(t Format, buf []byte) (<-chan struct{}, error) {
	targetName, err := x11Target(t)
	if err != nil {
		return nil, err
	}

	data := make([]byte, len(buf))
	copy(data, buf)

	errCh := make(chan error, 1)
	changed := make(chan struct{}, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		d := openDisplay()
		if d == 0 {
			errCh <- ErrOccupied
			return
		}
		defer xCloseDisplay(d)

		window := xCreateSimpleWindow(d, xDefaultRootWindow(d), 0, 0, 1, 1, 0, 0, 0)

		sel := xInternAtom(d, "CLIPBOARD", 0)
		targetsAtom := xInternAtom(d, "TARGETS", 0)
		atomAtom := xInternAtom(d, "ATOM", 0)
		target := xInternAtom(d, targetName, 0)

		offered := []xAtom{target}
		if t == Text {
			offered = append(offered,
				xInternAtom(d, "STRING", 0),
				xInternAtom(d, "TEXT", 0),
				xInternAtom(d, "text/plain;charset=utf-8", 0),
			)
		}

		xSetSelectionOwner(d, sel, window, xCurrentTime)
		if xGetSelectionOwner(d, sel) != window {
			errCh <- ErrOccupied
			return
		}
		errCh <- nil

		var ev xEvent
		for {
			xNextEvent(d, &ev)

			switch ev.typ {
			case xSelectionClear:
				changed <- struct{}{}
				close(changed)
				return

			case xSelectionReq:
				req := (*xSelectionRequestEvent)(unsafe.Pointer(&ev))
				if req.selection != sel {
					continue
				}

				var out xEvent
				reply := (*xSelectionEvent)(unsafe.Pointer(&out))
				*reply = xSelectionEvent{
					typ:       xSelectionNotify,
					display:   req.display,
					requestor: req.requestor,
					selection: req.selection,
					target:    req.target,
					property:  req.property,
					time:      req.time,
				}

				switch {
				case req.target == targetsAtom:
					targets := append([]xAtom{targetsAtom}, offered...)
					xChangeProperty(reply.display, reply.requestor, reply.property,
						atomAtom, 32, xPropModeReplace, (*byte)(unsafe.Pointer(&targets[0])), len(targets))
				case containsAtom(offered, req.target):
					var p *byte
					if len(data) > 0 {
						p = &data[0]
					}
					xChangeProperty(reply.display, reply.requestor, reply.property,
						req.target, 8, xPropModeReplace, p, len(data))
				default:
					reply.property = xNone
				}

				xSendEvent(reply.display, reply.requestor, 0, 0, &out)
			}
		}
	}()

	if err := <-errCh; err != nil {
		return nil, err
	}
	return changed, nil
}

func containsAtom(atoms []xAtom, a xAtom) bool {
	for _, x := range atoms {
		if x == a {
			return true
		}
	}
	return false
}

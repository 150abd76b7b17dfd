// Copyright 2025 Ayman Bagabas
// SPDX-License-Identifier: MIT

//go:build linux && !android

package clipboard

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"github.com/ebitengine/purego"
)

type (
	wlDisplay uintptr
	wlProxy   uintptr
)

// wlMessage mirrors struct wl_message.
type wlMessage struct {
	name      *byte
	signature *byte
	types     **wlInterface
}

// wlInterface mirrors struct wl_interface.
type wlInterface struct {
	name        *byte
	version     int32
	methodCount int32
	methods     *wlMessage
	eventCount  int32
	events      *wlMessage
}

// wlr-data-control protocol opcodes.
const (
	wlDisplayGetRegistry       = 1
	wlRegistryBind             = 0
	dataControlCreateSource    = 0
	dataControlGetDevice       = 1
	dataControlDeviceSetSelect = 0
	dataControlSourceOffer     = 0
	dataControlOfferReceive    = 0
	dataControlOfferDestroy    = 1
)

var (
	libwayland          uintptr
	wlRegistryInterface uintptr
	wlSeatInterface     *wlInterface

	wlDisplayConnect          func(name *byte) wlDisplay
	wlDisplayRoundtrip        func(d wlDisplay) int32
	wlDisplayDispatch         func(d wlDisplay) int32
	wlDisplayFlush            func(d wlDisplay) int32
	wlProxyAddListener        func(p wlProxy, impl uintptr, data uintptr) int32
	wlProxyDestroy            func(p wlProxy)
	wlProxyMarshal            func(p wlProxy, opcode uint32, args ...uintptr)
	wlProxyMarshalConstructor func(p wlProxy, opcode uint32, iface uintptr, args ...uintptr) wlProxy
)

// Descriptors for the zwlr_data_control_*_v1 interfaces. libwayland keeps
// pointers into them for the lifetime of the connection.
var (
	dataControlManagerInterface wlInterface
	dataControlDeviceInterface  wlInterface
	dataControlSourceInterface  wlInterface
	dataControlOfferInterface   wlInterface

	wlDescriptors [][]wlMessage
	wlTypeLists   [][]*wlInterface
)

// waylandClipboard holds the connection. mu serializes requests from Read
// and Write.
type waylandClipboard struct {
	mu       sync.Mutex
	display  wlDisplay
	registry wlProxy
	seat     wlProxy
	manager  wlProxy
	device   wlProxy
}

// waylandState is mutated by event callbacks, which may run on any thread
// that dispatches the display.
type waylandState struct {
	mu        sync.Mutex
	source    wlProxy
	data      []byte
	selection wlProxy
	mimeTypes map[wlProxy][]string
}

var (
	wl          waylandClipboard
	wlState     = waylandState{mimeTypes: make(map[wlProxy][]string)}
	wlInitOnce  sync.Once
	wlInitError error
)

type registryListener struct {
	global       uintptr
	globalRemove uintptr
}

type deviceListener struct {
	dataOffer uintptr
	selection uintptr
	finished  uintptr
}

type offerListener struct {
	offer uintptr
}

type sourceListener struct {
	send      uintptr
	cancelled uintptr
}

var (
	registryListenerImpl registryListener
	deviceListenerImpl   deviceListener
	offerListenerImpl    offerListener
	sourceListenerImpl   sourceListener
)

func cStringBytes(s string) *byte {
	b := append([]byte(s), 0)
	return &b[0]
}

func wlMsg(name, signature string, types ...*wlInterface) wlMessage {
	m := wlMessage{name: cStringBytes(name), signature: cStringBytes(signature)}
	if len(types) > 0 {
		wlTypeLists = append(wlTypeLists, types)
		m.types = &types[0]
	}
	return m
}

func setInterface(iface *wlInterface, name string, methods, events []wlMessage) {
	wlDescriptors = append(wlDescriptors, methods, events)
	*iface = wlInterface{
		name:        cStringBytes(name),
		version:     1,
		methodCount: int32(len(methods)),
		eventCount:  int32(len(events)),
	}
	if len(methods) > 0 {
		iface.methods = &methods[0]
	}
	if len(events) > 0 {
		iface.events = &events[0]
	}
}

// initDataControlInterfaces builds version 1 of the wlr-data-control
// protocol descriptors.
func initDataControlInterfaces() {
	setInterface(&dataControlManagerInterface, "zwlr_data_control_manager_v1",
		[]wlMessage{
			wlMsg("create_data_source", "n", &dataControlSourceInterface),
			wlMsg("get_data_device", "no", &dataControlDeviceInterface, wlSeatInterface),
			wlMsg("destroy", ""),
		}, nil)
	setInterface(&dataControlDeviceInterface, "zwlr_data_control_device_v1",
		[]wlMessage{
			wlMsg("set_selection", "?o", &dataControlSourceInterface),
			wlMsg("destroy", ""),
		},
		[]wlMessage{
			wlMsg("data_offer", "n", &dataControlOfferInterface),
			wlMsg("selection", "?o", &dataControlOfferInterface),
			wlMsg("finished", ""),
		})
	setInterface(&dataControlSourceInterface, "zwlr_data_control_source_v1",
		[]wlMessage{
			wlMsg("offer", "s", nil),
			wlMsg("destroy", ""),
		},
		[]wlMessage{
			wlMsg("send", "sh", nil, nil),
			wlMsg("cancelled", ""),
		})
	setInterface(&dataControlOfferInterface, "zwlr_data_control_offer_v1",
		[]wlMessage{
			wlMsg("receive", "sh", nil, nil),
			wlMsg("destroy", ""),
		},
		[]wlMessage{
			wlMsg("offer", "s", nil),
		})
}

func wlBind(registry wlProxy, name uint32, iface *wlInterface) wlProxy {
	return wlProxyMarshalConstructor(registry, wlRegistryBind, uintptr(unsafe.Pointer(iface)),
		uintptr(name), uintptr(unsafe.Pointer(iface.name)), 1, 0)
}

//go:uintptrescapes
func registryHandleGlobal(data uintptr, registry wlProxy, name uint32, iface *byte, version uint32) {
	switch cString(iface) {
	case "wl_seat":
		if wl.seat == 0 {
			wl.seat = wlBind(registry, name, wlSeatInterface)
		}
	case "zwlr_data_control_manager_v1":
		wl.manager = wlBind(registry, name, &dataControlManagerInterface)
	}
}

//go:uintptrescapes
func registryHandleGlobalRemove(data uintptr, registry wlProxy, name uint32) {}

// deviceHandleDataOffer is called before the offer's mime types arrive.
//
//go:uintptrescapes
func deviceHandleDataOffer(data uintptr, device wlProxy, offer wlProxy) {
	wlProxyAddListener(offer, uintptr(unsafe.Pointer(&offerListenerImpl)), 0)
	wlState.mu.Lock()
	wlState.mimeTypes[offer] = nil
	wlState.mu.Unlock()
}

// deviceHandleSelection is called when the selection changes. offer is zero
// when the clipboard is empty.
//
//go:uintptrescapes
func deviceHandleSelection(data uintptr, device wlProxy, offer wlProxy) {
	wlState.mu.Lock()
	defer wlState.mu.Unlock()
	if prev := wlState.selection; prev != 0 && prev != offer {
		delete(wlState.mimeTypes, prev)
		wlProxyMarshal(prev, dataControlOfferDestroy)
		wlProxyDestroy(prev)
	}
	wlState.selection = offer
}

//go:uintptrescapes
func deviceHandleFinished(data uintptr, device wlProxy) {}

//go:uintptrescapes
func offerHandleOffer(data uintptr, offer wlProxy, mimeType *byte) {
	wlState.mu.Lock()
	wlState.mimeTypes[offer] = append(wlState.mimeTypes[offer], cString(mimeType))
	wlState.mu.Unlock()
}

// sourceHandleSend is called when another client pastes our selection.
//
//go:uintptrescapes
func sourceHandleSend(data uintptr, source wlProxy, mimeType *byte, fd int32) {
	wlState.mu.Lock()
	payload := wlState.data
	wlState.mu.Unlock()

	go func() {
		defer syscall.Close(int(fd))
		for len(payload) > 0 {
			n, err := syscall.Write(int(fd), payload)
			if err != nil {
				return
			}
			payload = payload[n:]
		}
	}()
}

// sourceHandleCancelled is called when our selection is replaced.
//
//go:uintptrescapes
func sourceHandleCancelled(data uintptr, source wlProxy) {
	wlState.mu.Lock()
	defer wlState.mu.Unlock()
	if wlState.source == source {
		wlState.source = 0
		wlState.data = nil
	}
}

func cString(p *byte) string {
	if p == nil {
		return ""
	}
	var n int
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

func initializeWayland() error {
	wlInitOnce.Do(func() {
		wlInitError = loadWayland()
	})
	return wlInitError
}

func loadWayland() error {
	var err error
	for _, path := range []string{"libwayland-client.so.0", "libwayland-client.so"} {
		libwayland, err = purego.Dlopen(path, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("%w: load libwayland-client: %v", ErrUnavailable, err)
	}

	purego.RegisterLibFunc(&wlDisplayConnect, libwayland, "wl_display_connect")
	purego.RegisterLibFunc(&wlDisplayRoundtrip, libwayland, "wl_display_roundtrip")
	purego.RegisterLibFunc(&wlDisplayDispatch, libwayland, "wl_display_dispatch")
	purego.RegisterLibFunc(&wlDisplayFlush, libwayland, "wl_display_flush")
	purego.RegisterLibFunc(&wlProxyAddListener, libwayland, "wl_proxy_add_listener")
	purego.RegisterLibFunc(&wlProxyDestroy, libwayland, "wl_proxy_destroy")
	purego.RegisterLibFunc(&wlProxyMarshal, libwayland, "wl_proxy_marshal")
	purego.RegisterLibFunc(&wlProxyMarshalConstructor, libwayland, "wl_proxy_marshal_constructor")

	wlRegistryInterface, err = purego.Dlsym(libwayland, "wl_registry_interface")
	if err != nil {
		return fmt.Errorf("%w: load wl_registry_interface: %v", ErrUnavailable, err)
	}
	seatInterface, err := purego.Dlsym(libwayland, "wl_seat_interface")
	if err != nil {
		return fmt.Errorf("%w: load wl_seat_interface: %v", ErrUnavailable, err)
	}
	wlSeatInterface = *(**wlInterface)(unsafe.Pointer(&seatInterface))
	initDataControlInterfaces()

	wl.mu.Lock()
	defer wl.mu.Unlock()

	wl.display = wlDisplayConnect(nil)
	if wl.display == 0 {
		return fmt.Errorf("%w: connect to Wayland display", ErrUnavailable)
	}

	registryListenerImpl.global = purego.NewCallback(registryHandleGlobal)
	registryListenerImpl.globalRemove = purego.NewCallback(registryHandleGlobalRemove)
	deviceListenerImpl.dataOffer = purego.NewCallback(deviceHandleDataOffer)
	deviceListenerImpl.selection = purego.NewCallback(deviceHandleSelection)
	deviceListenerImpl.finished = purego.NewCallback(deviceHandleFinished)
	offerListenerImpl.offer = purego.NewCallback(offerHandleOffer)
	sourceListenerImpl.send = purego.NewCallback(sourceHandleSend)
	sourceListenerImpl.cancelled = purego.NewCallback(sourceHandleCancelled)

	wl.registry = wlProxyMarshalConstructor(wlProxy(wl.display), wlDisplayGetRegistry, wlRegistryInterface, 0)
	if wl.registry == 0 {
		return fmt.Errorf("%w: get Wayland registry", ErrUnavailable)
	}
	wlProxyAddListener(wl.registry, uintptr(unsafe.Pointer(&registryListenerImpl)), 0)
	wlDisplayRoundtrip(wl.display)

	if wl.manager == 0 {
		return fmt.Errorf("%w: compositor lacks zwlr_data_control_manager_v1", ErrUnavailable)
	}
	if wl.seat == 0 {
		return fmt.Errorf("%w: no wl_seat", ErrUnavailable)
	}

	wl.device = wlProxyMarshalConstructor(wl.manager, dataControlGetDevice,
		uintptr(unsafe.Pointer(&dataControlDeviceInterface)), 0, uintptr(wl.seat))
	if wl.device == 0 {
		return fmt.Errorf("%w: create data control device", ErrUnavailable)
	}
	wlProxyAddListener(wl.device, uintptr(unsafe.Pointer(&deviceListenerImpl)), 0)
	// The compositor answers with the current selection.
	wlDisplayRoundtrip(wl.display)
	return nil
}

// waylandMimeTypes lists the mime types for t in order of preference.
func waylandMimeTypes(t Format) ([]string, error) {
	switch t {
	case Text:
		return []string{"text/plain;charset=utf-8", "UTF8_STRING", "text/plain", "STRING", "TEXT"}, nil
	case Image:
		return []string{"image/png"}, nil
	default:
		return nil, ErrUnsupported
	}
}

// pickMimeType returns the first of want that the offer advertises.
func pickMimeType(want, offered []string) (string, bool) {
	for _, w := range want {
		for _, o := range offered {
			if w == o {
				return w, true
			}
		}
	}
	return "", false
}

// readWayland receives the current selection through a pipe.
func readWayland(t Format) ([]byte, error) {
	want, err := waylandMimeTypes(t)
	if err != nil {
		return nil, err
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	wl.mu.Lock()
	defer wl.mu.Unlock()

	if wlDisplayRoundtrip(wl.display) < 0 {
		return nil, fmt.Errorf("%w: Wayland connection lost", ErrOccupied)
	}

	wlState.mu.Lock()
	offer := wlState.selection
	mimeType, ok := pickMimeType(want, wlState.mimeTypes[offer])
	wlState.mu.Unlock()
	if offer == 0 || !ok {
		return nil, ErrContentUnavailable
	}

	fds := make([]int, 2)
	if err := syscall.Pipe2(fds, syscall.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("create pipe: %w", err)
	}
	defer syscall.Close(fds[0])

	mime := append([]byte(mimeType), 0)
	wlProxyMarshal(offer, dataControlOfferReceive,
		uintptr(unsafe.Pointer(&mime[0])), uintptr(fds[1]))
	syscall.Close(fds[1])
	wlDisplayFlush(wl.display)

	var result []byte
	buf := make([]byte, 4096)
	for {
		n, err := syscall.Read(fds[0], buf)
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read pipe: %w", err)
		}
		if n == 0 {
			return result, nil
		}
		result = append(result, buf[:n]...)
	}
}

// writeWayland offers buf as the selection and dispatches compositor events
// until the source is cancelled.
func writeWayland(t Format, buf []byte) (<-chan struct{}, error) {
	offers, err := waylandMimeTypes(t)
	if err != nil {
		return nil, err
	}

	errCh := make(chan error, 1)
	changed := make(chan struct{}, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		wl.mu.Lock()
		source := wlProxyMarshalConstructor(wl.manager, dataControlCreateSource,
			uintptr(unsafe.Pointer(&dataControlSourceInterface)), 0)
		if source == 0 {
			wl.mu.Unlock()
			errCh <- ErrOccupied
			return
		}

		wlState.mu.Lock()
		wlState.source = source
		wlState.data = make([]byte, len(buf))
		copy(wlState.data, buf)
		wlState.mu.Unlock()

		wlProxyAddListener(source, uintptr(unsafe.Pointer(&sourceListenerImpl)), 0)
		for _, m := range offers {
			b := append([]byte(m), 0)
			wlProxyMarshal(source, dataControlSourceOffer, uintptr(unsafe.Pointer(&b[0])))
		}
		wlProxyMarshal(wl.device, dataControlDeviceSetSelect, uintptr(source))

		wlDisplayFlush(wl.display)
		ok := wlDisplayRoundtrip(wl.display) >= 0
		wl.mu.Unlock()
		if !ok {
			errCh <- ErrOccupied
			return
		}
		errCh <- nil

		for {
			wlState.mu.Lock()
			current := wlState.source
			wlState.mu.Unlock()
			if current != source {
				changed <- struct{}{}
				close(changed)
				return
			}
			if wlDisplayDispatch(wl.display) < 0 {
				close(changed)
				return
			}
		}
	}()

	if err := <-errCh; err != nil {
		return nil, err
	}
	return changed, nil
}

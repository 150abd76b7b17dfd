// Copyright 2025 Ayman Bagabas
// SPDX-License-Identifier: MIT

//go:build windows

package clipboard

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"syscall"
	"time"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/image/bmp"
)

const (
	cfDIB         = 8
	cfUnicodeText = 13
	cfDIBV5       = 17
	gmemMoveable  = 0x0002

	// OpenClipboard fails while another window has it open.
	openAttempts = 20
	openBackoff  = 10 * time.Millisecond
)

// bitmapV5Header mirrors BITMAPV5HEADER.
type bitmapV5Header struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
	RedMask       uint32
	GreenMask     uint32
	BlueMask      uint32
	AlphaMask     uint32
	CSType        uint32
	Endpoints     struct {
		CiexyzRed, CiexyzGreen, CiexyzBlue struct {
			CiexyzX, CiexyzY, CiexyzZ int32
		}
	}
	GammaRed    uint32
	GammaGreen  uint32
	GammaBlue   uint32
	Intent      uint32
	ProfileData uint32
	ProfileSize uint32
	Reserved    uint32
}

// bitmapHeader mirrors BITMAPINFOHEADER.
type bitmapHeader struct {
	Size          uint32
	Width         uint32
	Height        uint32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter uint32
	YPelsPerMeter uint32
	ClrUsed       uint32
	ClrImportant  uint32
}

var (
	user32   = syscall.NewLazyDLL("user32.dll")
	kernel32 = syscall.NewLazyDLL("kernel32.dll")

	openClipboard              = user32.NewProc("OpenClipboard")
	closeClipboard             = user32.NewProc("CloseClipboard")
	emptyClipboard             = user32.NewProc("EmptyClipboard")
	getClipboardData           = user32.NewProc("GetClipboardData")
	setClipboardData           = user32.NewProc("SetClipboardData")
	isClipboardFormatAvailable = user32.NewProc("IsClipboardFormatAvailable")

	gLock   = kernel32.NewProc("GlobalLock")
	gUnlock = kernel32.NewProc("GlobalUnlock")
	gAlloc  = kernel32.NewProc("GlobalAlloc")
	gFree   = kernel32.NewProc("GlobalFree")
	memMove = kernel32.NewProc("RtlMoveMemory")
)

func initialize() error {
	if err := user32.Load(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return kernel32.Load()
}

// open must be called on a locked OS thread.
func open() error {
	for i := 0; i < openAttempts; i++ {
		if r, _, _ := openClipboard.Call(0); r != 0 {
			return nil
		}
		time.Sleep(openBackoff)
	}
	return ErrOccupied
}

func read(t Format) ([]byte, error) {
	var format uintptr
	switch t {
	case Text:
		format = cfUnicodeText
	case Image:
		format = cfDIBV5
	default:
		return nil, ErrUnsupported
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if r, _, _ := isClipboardFormatAvailable.Call(format); r == 0 {
		if t != Image {
			return nil, ErrContentUnavailable
		}
		if r, _, _ := isClipboardFormatAvailable.Call(cfDIB); r == 0 {
			return nil, ErrContentUnavailable
		}
	}

	if err := open(); err != nil {
		return nil, err
	}
	defer closeClipboard.Call()

	if t == Text {
		return readText()
	}
	return readImage()
}

func readText() ([]byte, error) {
	hMem, _, _ := getClipboardData.Call(cfUnicodeText)
	if hMem == 0 {
		return nil, ErrContentUnavailable
	}

	p, _, _ := gLock.Call(hMem)
	if p == 0 {
		return nil, ErrOccupied
	}
	defer gUnlock.Call(hMem)

	n := 0
	for ptr := unsafe.Pointer(p); *(*uint16)(ptr) != 0; n++ {
		ptr = unsafe.Add(ptr, unsafe.Sizeof(uint16(0)))
	}

	s := unsafe.Slice((*uint16)(unsafe.Pointer(p)), n)
	return []byte(string(utf16.Decode(s))), nil
}

func readImage() ([]byte, error) {
	hMem, _, _ := getClipboardData.Call(cfDIBV5)
	if hMem == 0 {
		return readImageDIB()
	}

	p, _, _ := gLock.Call(hMem)
	if p == 0 {
		return nil, ErrOccupied
	}
	defer gUnlock.Call(hMem)

	info := (*bitmapV5Header)(unsafe.Pointer(p))
	if info.BitCount != 32 {
		return nil, fmt.Errorf("%w: %d bits per pixel", ErrConversionFailure, info.BitCount)
	}

	width, height := int(info.Width), int(info.Height)
	data := unsafe.Slice((*byte)(unsafe.Pointer(p)), int(info.Size)+4*width*height)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	offset := int(info.Size)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := offset + 4*(y*width+x)
			// DIB rows run bottom-up in BGRA order.
			img.SetRGBA(x, height-1-y, color.RGBA{data[idx+2], data[idx+1], data[idx], data[idx+3]})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}
	return buf.Bytes(), nil
}

func readImageDIB() ([]byte, error) {
	const (
		fileHeaderLen = 14
		infoHeaderLen = 40
	)

	hMem, _, _ := getClipboardData.Call(cfDIB)
	if hMem == 0 {
		return nil, ErrContentUnavailable
	}

	p, _, _ := gLock.Call(hMem)
	if p == 0 {
		return nil, ErrOccupied
	}
	defer gUnlock.Call(hMem)

	header := (*bitmapHeader)(unsafe.Pointer(p))
	size := header.SizeImage + fileHeaderLen + infoHeaderLen
	if header.SizeImage == 0 && header.Compression == 0 {
		size += header.Height * ((header.Width*uint32(header.BitCount)/8 + 3) &^ 3)
	}

	// Prepend a BITMAPFILEHEADER so the DIB becomes a .bmp stream.
	var bmpBuf bytes.Buffer
	binary.Write(&bmpBuf, binary.LittleEndian, uint16('B')|uint16('M')<<8)
	binary.Write(&bmpBuf, binary.LittleEndian, size)
	binary.Write(&bmpBuf, binary.LittleEndian, uint32(0))
	binary.Write(&bmpBuf, binary.LittleEndian, uint32(fileHeaderLen+infoHeaderLen))
	bmpBuf.Write(unsafe.Slice((*byte)(unsafe.Pointer(p)), size-fileHeaderLen))

	img, err := bmp.Decode(&bmpBuf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}
	return out.Bytes(), nil
}

// write returns a nil channel: the system keeps the content after this
// process exits.
func write(t Format, buf []byte) (<-chan struct{}, error) {
	if t != Text && t != Image {
		return nil, ErrUnsupported
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := open(); err != nil {
		return nil, err
	}
	defer closeClipboard.Call()

	if t == Text {
		return nil, writeText(buf)
	}
	return nil, writeImage(buf)
}

// setGlobal copies data into a movable global block and hands it to the
// clipboard, which takes ownership on success.
func setGlobal(format uintptr, data unsafe.Pointer, size uintptr) error {
	hMem, _, _ := gAlloc.Call(gmemMoveable, size)
	if hMem == 0 {
		return fmt.Errorf("GlobalAlloc of %d bytes failed", size)
	}

	p, _, _ := gLock.Call(hMem)
	if p == 0 {
		gFree.Call(hMem)
		return fmt.Errorf("GlobalLock failed")
	}
	memMove.Call(p, uintptr(data), size)
	gUnlock.Call(hMem)

	if v, _, _ := setClipboardData.Call(format, hMem); v == 0 {
		gFree.Call(hMem)
		return ErrOccupied
	}
	return nil
}

func writeText(buf []byte) error {
	if r, _, _ := emptyClipboard.Call(); r == 0 {
		return ErrOccupied
	}
	if len(buf) == 0 {
		return nil
	}

	s, err := syscall.UTF16FromString(string(buf))
	if err != nil {
		// Text containing NUL cannot be stored as CF_UNICODETEXT.
		return fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}
	return setGlobal(cfUnicodeText, unsafe.Pointer(&s[0]), uintptr(len(s))*unsafe.Sizeof(s[0]))
}

func writeImage(buf []byte) error {
	if r, _, _ := emptyClipboard.Call(); r == 0 {
		return ErrOccupied
	}
	if len(buf) == 0 {
		return nil
	}

	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("%w: input is not PNG: %v", ErrConversionFailure, err)
	}

	offset := int(unsafe.Sizeof(bitmapV5Header{}))
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	data := make([]byte, offset+4*width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := offset + 4*(y*width+x)
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+height-1-y).RGBA()
			data[idx+2] = uint8(r >> 8)
			data[idx+1] = uint8(g >> 8)
			data[idx+0] = uint8(b >> 8)
			data[idx+3] = uint8(a >> 8)
		}
	}

	info := bitmapV5Header{
		Size:      uint32(offset),
		Width:     int32(width),
		Height:    int32(height),
		Planes:    1,
		BitCount:  32,
		SizeImage: uint32(4 * width * height),
		RedMask:   0xff0000,
		GreenMask: 0xff00,
		BlueMask:  0xff,
		AlphaMask: 0xff000000,
		CSType:    0x73524742, // sRGB
		Intent:    4,          // LCS_GM_IMAGES
	}
	copy(data, unsafe.Slice((*byte)(unsafe.Pointer(&info)), offset))

	return setGlobal(cfDIBV5, unsafe.Pointer(&data[0]), uintptr(len(data)))
}

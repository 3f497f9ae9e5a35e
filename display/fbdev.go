package display

// Framebuffer ioctl requests, from <linux/fb.h>. These are stable ABI
// numbers, not derived from a header the build environment may lack.
const (
	fbioGetVScreenInfo = 0x4600
	fbioPanDisplay     = 0x4606
	fbioWaitForVSync   = 0x40044620 // _IOW('F', 0x20, __u32)

	// fbIoctlSetDMAInfo is a vendor extension outside <linux/fb.h>,
	// _IOW('F', 7, struct dmaInfo). Encoded by hand the way the C++
	// origin does when the vendor header defining it is unavailable.
	fbIoctlSetDMAInfo = 0x40104607
)

// bitfield mirrors struct fb_bitfield from <linux/fb.h>.
type bitfield struct {
	Offset   uint32
	Length   uint32
	MSBRight uint32
}

// varScreenInfo mirrors struct fb_var_screeninfo from <linux/fb.h>. Only
// the fields this package reads or writes are exercised; the rest exist
// so the struct's memory layout matches what FBIOGET_VSCREENINFO fills
// in and FBIOPAN_DISPLAY expects back.
type varScreenInfo struct {
	XRes, YRes               uint32
	XResVirtual, YResVirtual uint32
	XOffset, YOffset         uint32

	BitsPerPixel uint32
	Grayscale    uint32

	Red, Green, Blue, Transp bitfield

	NonStd uint32

	Activate uint32

	Height uint32
	Width  uint32

	AccelFlags uint32

	Pixclock                                uint32
	LeftMargin, RightMargin                 uint32
	UpperMargin, LowerMargin                uint32
	HSyncLen, VSyncLen                      uint32
	Sync, VMode, Rotate, Colorspace         uint32
	Reserved                                [4]uint32
}

// dmaInfo mirrors the vendor tpsfb_dma_info struct from the origin's
// zero-copy DMA display extension: an overlay index plus the physical
// address the driver should scan out from directly.
type dmaInfo struct {
	OverlayIndex uint32
	_            uint32 // padding to align PhysAddr on an 8-byte boundary
	PhysAddr     uint64
}

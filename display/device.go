package display

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/e7canasta/vidframe/bufferpool"
	"github.com/e7canasta/vidframe/buffer"
	"github.com/e7canasta/vidframe/eventbus"
	"github.com/e7canasta/vidframe/internal/ioctl"
)

// Config identifies which framebuffer console (as reported by
// /proc/fb) backs device index 0 or 1. The origin hardcodes two panel
// names for a dual-display board; Device accepts them as configuration
// instead of compiling them in.
type Config struct {
	// PanelNames maps a device index to the /proc/fb console name it
	// must match (e.g. {0: "panel0", 1: "panel1"}).
	PanelNames map[int]string
}

// Device drives one /dev/fbN framebuffer device as a video sink.
type Device struct {
	cfg Config

	mu          sync.Mutex
	fd          int
	index       int
	initialized bool

	base       []byte
	width      int
	height     int
	bpp        int
	bufferSize int
	bufferN    int

	pool    *bufferpool.Pool
	current int

	bus eventbus.Bus
}

// SetEventBus wires an eventbus.Bus that receives a "display.shown"
// event each time panTo switches the visible slot. A nil bus (the
// default) disables publishing entirely.
func (d *Device) SetEventBus(bus eventbus.Bus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bus = bus
}

// New constructs an uninitialized Device. Call Initialize before use.
func New(cfg Config) *Device {
	return &Device{cfg: cfg, fd: -1}
}

// Initialize opens device index, queries its mode, maps its
// framebuffer memory, and builds an external-simple bufferpool.Pool
// over each visible buffer slot. Calling Initialize twice is a no-op.
func (d *Device) Initialize(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	node, err := d.findDeviceNode(index)
	if err != nil {
		return err
	}

	fd, err := unix.Open(node, unix.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("display: open %s: %w", node, err)
	}
	d.fd = fd
	d.index = index

	var info varScreenInfo
	if err := ioctl.Ptr(fd, fbioGetVScreenInfo, unsafe.Pointer(&info)); err != nil {
		unix.Close(fd)
		d.fd = -1
		return fmt.Errorf("display: FBIOGET_VSCREENINFO: %w", err)
	}

	d.width = int(info.XRes)
	d.height = int(info.YRes)
	d.bpp = int(info.BitsPerPixel)
	d.bufferSize = (d.width*d.height*d.bpp + 7) / 8

	bufferCount := 0
	if info.YRes > 0 {
		bufferCount = int(info.YResVirtual / info.YRes)
	}
	if bufferCount <= 0 {
		bufferCount = 1
	}
	d.bufferN = bufferCount

	totalSize := d.bufferSize * d.bufferN
	base, err := unix.Mmap(fd, 0, totalSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		d.fd = -1
		return fmt.Errorf("display: mmap framebuffer memory: %w", err)
	}
	d.base = base

	if required := d.bufferSize * d.bufferN; required > len(base) && d.bufferSize > 0 {
		safe := len(base) / d.bufferSize
		slog.Warn("display: adjusted buffer count to fit mapped memory", "requested", d.bufferN, "safe", safe)
		d.bufferN = safe
	}

	infos := make([]bufferpool.ExternalBufferInfo, 0, d.bufferN)
	for i := 0; i < d.bufferN; i++ {
		infos = append(infos, bufferpool.ExternalBufferInfo{
			VirtAddr: base[i*d.bufferSize : (i+1)*d.bufferSize],
		})
	}

	pool, err := bufferpool.NewExternalSimple(infos, fmt.Sprintf("FramebufferPool_FB%d", index), "Display")
	if err != nil {
		unix.Munmap(base)
		unix.Close(fd)
		d.fd = -1
		d.base = nil
		return fmt.Errorf("display: build framebuffer pool: %w", err)
	}
	d.pool = pool

	d.initialized = true
	slog.Info("display: initialized", "index", index, "width", d.width, "height", d.height, "bpp", d.bpp, "buffers", d.bufferN)
	return nil
}

// findDeviceNode reads /proc/fb looking for the panel name configured
// for index, then maps the reported fb number to /dev/fbN. Grounded on
// LinuxFramebufferDevice::findDeviceNode.
func (d *Device) findDeviceNode(index int) (string, error) {
	want, ok := d.cfg.PanelNames[index]
	if !ok {
		return "", fmt.Errorf("display: no panel name configured for device index %d", index)
	}

	f, err := os.Open("/proc/fb")
	if err != nil {
		return "", fmt.Errorf("display: open /proc/fb: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		if fields[1] != want {
			continue
		}
		num, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		return fmt.Sprintf("/dev/fb%d", num), nil
	}
	return "", fmt.Errorf("display: panel %q not found in /proc/fb", want)
}

// Cleanup unmaps framebuffer memory, closes the device, and tears down
// the buffer pool. Safe to call on an uninitialized or already cleaned
// up Device.
func (d *Device) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return
	}
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	if d.base != nil {
		if err := unix.Munmap(d.base); err != nil {
			slog.Warn("display: munmap failed", "err", err)
		}
		d.base = nil
	}
	if d.fd >= 0 {
		unix.Close(d.fd)
		d.fd = -1
	}
	d.initialized = false
	d.current = 0
}

// Width returns the panel's horizontal resolution.
func (d *Device) Width() int { return d.width }

// Height returns the panel's vertical resolution.
func (d *Device) Height() int { return d.height }

// BytesPerPixel returns the panel's pixel size rounded up to a whole
// byte, matching getBytesPerPixel's ceiling-division contract.
func (d *Device) BytesPerPixel() int { return (d.bpp + 7) / 8 }

// BufferCount returns the number of framebuffer slots the device is
// scheduling.
func (d *Device) BufferCount() int { return d.bufferN }

// BufferSize returns one framebuffer slot's size in bytes.
func (d *Device) BufferSize() int { return d.bufferSize }

// GetBuffer returns the framebuffer slot at index, or nil if index is
// out of range or the device is uninitialized.
func (d *Device) GetBuffer(index int) *buffer.Buffer {
	if d.pool == nil {
		return nil
	}
	return d.pool.GetBufferByID(uint32(index))
}

// CurrentDisplayBuffer returns the index of the buffer slot currently
// panned into view.
func (d *Device) CurrentDisplayBuffer() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Pool returns the device's backing bufferpool.Pool.
func (d *Device) Pool() *bufferpool.Pool { return d.pool }

// DisplayBuffer pans the visible framebuffer offset to slot index,
// telling the driver which mapped region to scan out. Grounded on
// LinuxFramebufferDevice::displayBuffer(int).
func (d *Device) DisplayBuffer(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return fmt.Errorf("display: device not initialized")
	}
	if index < 0 || index >= d.bufferN {
		return fmt.Errorf("display: invalid buffer index %d", index)
	}
	return d.panTo(uint32(index))
}

// DisplayFilledFramebuffer pans to the buffer's own slot, verifying it
// actually belongs to this device's pool. Grounded on
// LinuxFramebufferDevice::displayFilledFramebuffer.
func (d *Device) DisplayFilledFramebuffer(buf *buffer.Buffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return fmt.Errorf("display: device not initialized")
	}
	if buf == nil {
		return fmt.Errorf("display: nil buffer")
	}
	if int(buf.ID()) >= d.bufferN || d.pool.GetBufferByID(buf.ID()) != buf {
		return fmt.Errorf("display: buffer #%d does not belong to this device's pool", buf.ID())
	}
	return d.panTo(buf.ID())
}

// DisplayBufferByDMA points the driver directly at buf's physical
// address, then pans straight to y-offset 0 without going through the
// buffer-index pan path, so it publishes no display.shown event. Grounded on
// LinuxFramebufferDevice::displayBufferByDMA.
func (d *Device) DisplayBufferByDMA(buf *buffer.Buffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return fmt.Errorf("display: device not initialized")
	}
	if buf == nil {
		return fmt.Errorf("display: nil buffer")
	}
	phys := buf.PhysicalAddress()
	if phys == 0 {
		return fmt.Errorf("display: buffer #%d has no physical address, DMA display requires one", buf.ID())
	}

	info := dmaInfo{OverlayIndex: 0, PhysAddr: phys}
	if err := ioctl.Ptr(d.fd, fbIoctlSetDMAInfo, unsafe.Pointer(&info)); err != nil {
		return fmt.Errorf("display: FB_IOCTL_SET_DMA_INFO: %w", err)
	}

	var var_ varScreenInfo
	if err := ioctl.Ptr(d.fd, fbioGetVScreenInfo, unsafe.Pointer(&var_)); err != nil {
		return fmt.Errorf("display: FBIOGET_VSCREENINFO: %w", err)
	}
	var_.YOffset = 0
	if err := ioctl.Ptr(d.fd, fbioPanDisplay, unsafe.Pointer(&var_)); err != nil {
		return fmt.Errorf("display: FBIOPAN_DISPLAY: %w", err)
	}

	d.current = 0
	return nil
}

// DisplayBufferByMemcpyToFramebuffer copies buf's content into a free
// framebuffer slot and pans to it, for sources whose memory the driver
// cannot scan out from directly. Grounded on
// LinuxFramebufferDevice::displayBufferByMemcpyToFramebuffer.
func (d *Device) DisplayBufferByMemcpyToFramebuffer(buf *buffer.Buffer) error {
	if buf == nil {
		return fmt.Errorf("display: nil buffer")
	}

	fbBuf, err := d.pool.AcquireFree(bufferpool.NonBlocking, 0)
	if err != nil {
		return fmt.Errorf("display: acquire framebuffer slot: %w", err)
	}
	if fbBuf == nil {
		return fmt.Errorf("display: no free framebuffer slot available")
	}

	n := copy(fbBuf.VirtualAddress(), buf.VirtualAddress())
	if n < buf.Size() {
		slog.Warn("display: buffer size mismatch, truncated copy", "src", buf.Size(), "dst", fbBuf.Size())
	}

	d.mu.Lock()
	err = d.panTo(fbBuf.ID())
	d.mu.Unlock()

	if err != nil {
		p := d.pool
		if relErr := p.ReleaseFilled(fbBuf); relErr != nil {
			slog.Warn("display: failed to release framebuffer slot after pan failure", "err", relErr)
		}
		return err
	}

	if err := d.pool.ReleaseFilled(fbBuf); err != nil {
		slog.Warn("display: failed to release framebuffer slot", "err", err)
	}
	return nil
}

// WaitVerticalSync blocks until the panel's next vertical blanking
// interval.
func (d *Device) WaitVerticalSync() error {
	d.mu.Lock()
	fd := d.fd
	initialized := d.initialized
	d.mu.Unlock()

	if !initialized {
		return fmt.Errorf("display: device not initialized")
	}
	var zero uint32
	return ioctl.Ptr(fd, fbioWaitForVSync, unsafe.Pointer(&zero))
}

// panTo issues FBIOGET_VSCREENINFO/FBIOPAN_DISPLAY to switch the
// visible offset to buffer slot id. Caller must hold d.mu.
func (d *Device) panTo(id uint32) error {
	var info varScreenInfo
	if err := ioctl.Ptr(d.fd, fbioGetVScreenInfo, unsafe.Pointer(&info)); err != nil {
		return fmt.Errorf("display: FBIOGET_VSCREENINFO: %w", err)
	}
	info.YOffset = info.YRes * id
	if err := ioctl.Ptr(d.fd, fbioPanDisplay, unsafe.Pointer(&info)); err != nil {
		return fmt.Errorf("display: FBIOPAN_DISPLAY: %w", err)
	}
	d.current = int(id)
	if d.bus != nil {
		d.bus.Publish(eventbus.Event{
			Kind:      "display.shown",
			Source:    fmt.Sprintf("fb%d", d.index),
			Seq:       uint64(id),
			Timestamp: time.Now(),
			Data:      int(id),
		})
	}
	return nil
}

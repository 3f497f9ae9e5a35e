// Package display drives a Linux framebuffer device (/dev/fbN) as a
// video sink: it queries the panel's mode, maps its multi-buffer
// framebuffer memory, wraps that memory in an external-simple
// bufferpool.Pool, and exposes three ways to push a frame to the
// screen — pan the visible offset to an already-filled framebuffer
// slot, hand the driver a physical address directly (zero-copy DMA),
// or memcpy into a framebuffer slot acquired from the pool.
//
// Grounded on include/display/LinuxFramebufferDevice.hpp and
// source/display/LinuxFramebufferDevice.cpp from the specification's
// C++ origin.
package display

// Package ioctl provides the raw syscall wrapper the allocator and
// display packages both need to talk to /dev/dma_heap and /dev/fbN,
// neither of which golang.org/x/sys/unix exposes a typed helper for.
package ioctl

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Ptr issues ioctl(fd, req, argp) where argp points at a fixed-layout C
// struct. Callers own the struct's memory layout; this is the same
// unsafe boundary the original's raw ioctl(2) calls cross.
func Ptr(fd int, req uintptr, argp unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(argp))
	if errno != 0 {
		return errno
	}
	return nil
}

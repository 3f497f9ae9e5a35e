// Package mmap implements videoreader.Reader over a read-only memory
// mapping of a headerless raw frame file. Auto-detected containers
// (MP4, AVI, H.264/H.265 elementary streams) are recognized by magic
// number but not decoded — Open reports
// videoreader.ErrUnsupportedContainer for them rather than silently
// mis-reading a compressed stream as raw pixels.
//
// Grounded on include/videoFile/MmapVideoReader.hpp and
// source/videoFile/MmapVideoReader.cpp.
package mmap

// Package asyncring implements videoreader.Reader over a bounded pool
// of goroutines issuing positional reads (unix.Pread), standing in for
// an io_uring submission/completion ring: BatchSubmit enqueues frame
// reads up to a fixed in-flight cap, Harvest blocks for the next
// completion. A reader instance is not safe for concurrent submitters.
// VideoProducer shares one instance across all of its workers and only
// calls ReadFrameAtThreadSafe on it, never BatchSubmit or Harvest.
//
// Grounded on include/videoFile/IoUringVideoReader.hpp and
// source/videoFile/IoUringVideoReader.cpp. No io_uring binding exists
// anywhere in the retrieval pack, so the ring itself is built on
// golang.org/x/sys/unix's raw Pread plus a stdlib goroutine pool
// (documented in DESIGN.md) rather than an ecosystem io_uring library —
// the goroutine-pool substitution is the closest same-shape idiom
// available without cgo.
package asyncring

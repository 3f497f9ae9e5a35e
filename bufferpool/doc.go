// Package bufferpool is the scheduler core of the pipeline: it owns a
// set of buffers (or schedules externally owned ones), exposes free and
// filled FIFO queues with blocking-with-timeout acquire, validates
// ownership and external-buffer liveness, and supports dynamic
// injection of externally decoded frames.
//
// Grounded on BufferPool.hpp/.cpp from the specification's C++ origin,
// and on the reference repository's ctx/WaitGroup lifecycle and
// sync.Cond mailbox idioms (modules/framesupplier/internal).
package bufferpool

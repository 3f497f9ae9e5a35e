// Package rtsp implements videoreader.Reader over a live RTSP stream
// decoded through GStreamer. It has no finite frame count: seek,
// random reads, and total-frame queries are unsupported, and
// GetTotalFrames reports videoreader.InfiniteFrames.
//
// Two operating modes mirror the specification's origin: buffered mode
// (the default) holds decoded frames in a fixed-size drop-oldest ring
// that ReadFrameTo drains; injection mode, entered by calling
// SetBufferPool, instead wraps each decoded frame as a buffer.Handle
// and pushes it straight into the pool via InjectFilledBuffer, bypassing
// the ring entirely.
//
// Grounded on modules/stream-capture/rtsp.go and
// modules/stream-capture/internal/rtsp/{pipeline,callbacks,errors,
// reconnect,monitor}.go, generalized from a fixed-topic care-sensor
// frame source into a general-purpose video reader, plus
// modules/framesupplier/internal/worker_slot.go's sync.Cond mailbox
// idiom, generalized from a single overwrite slot into a fixed-size
// drop-oldest ring for buffered mode.
package rtsp

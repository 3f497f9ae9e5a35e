// Package producer runs one or more worker goroutines that pull frames
// out of a videoreader.Reader and push them into a bufferpool.Pool,
// composing the two without owning either.
//
// Grounded on source/producer/VideoProducer.cpp: config validation,
// factory-constructed reader, unconditional pool injection, frame-size
// reconciliation, the atomic fetch-add worker loop with its
// overflow-avoidance CAS reset and consecutive-failure threshold.
package producer

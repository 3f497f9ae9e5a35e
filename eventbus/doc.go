// Package eventbus distributes ambient telemetry events — producer
// worker errors and stat snapshots, display last-shown-buffer
// notifications — to any number of subscribers, each with its own drop
// policy: DropNew drops the new event, without blocking the publisher,
// when a subscriber's channel is full, DropOld always accepts the latest
// event by overwriting a single-slot mailbox.
//
// Grounded on modules/framebus/{api,framebus}.go and
// modules/framebus/internal/bus/bus.go, generalized from a
// video-frame-specific bus into an Event carrying an arbitrary payload.
package eventbus

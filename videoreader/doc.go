// Package videoreader defines the Reader contract every video source
// implements — memory-mapped raw files, an async-ring reader over
// positional reads, and a live RTSP decode pipeline — plus a factory
// that picks a concrete implementation the way VideoReaderFactory.cpp
// does: explicit type, then an environment override, then a
// (currently stubbed) config-file override, then a capability probe.
//
// Grounded on include/videoFile/IVideoReader.hpp and
// include/videoFile/VideoReaderFactory.hpp from the specification's
// C++ origin.
package videoreader

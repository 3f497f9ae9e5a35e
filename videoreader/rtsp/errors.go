package rtsp

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory classifies a GStreamer pipeline error for telemetry.
// go-gst's GError does not expose Domain(), so classification is string
// matching against the message and debug text.
type ErrorCategory int

const (
	ErrCategoryNetwork ErrorCategory = iota
	ErrCategoryCodec
	ErrCategoryAuth
	ErrCategoryUnknown
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

var (
	authKeywords    = []string{"unauthorized", "401", "403", "forbidden", "authentication", "credentials", "password", "username"}
	networkKeywords = []string{"connection", "timeout", "unreachable", "network", "dns", "resolve", "socket", "tcp", "udp", "rtsp", "not found", "could not connect", "failed to connect"}
	codecKeywords   = []string{"codec", "decode", "encode", "format", "negotiation", "caps", "h264", "h265", "mjpeg", "jpeg", "not negotiated", "no decoder", "missing plugin"}
)

// ClassifyGStreamerError categorizes an error for the reconnect monitor,
// checking auth first (most specific), then codec, then network.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	combined := strings.ToLower(gerr.Error() + " " + gerr.DebugString())

	if containsAny(combined, authKeywords) {
		return ErrCategoryAuth
	}
	if containsAny(combined, codecKeywords) {
		return ErrCategoryCodec
	}
	if containsAny(combined, networkKeywords) {
		return ErrCategoryNetwork
	}
	return ErrCategoryUnknown
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

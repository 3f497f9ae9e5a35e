package rtsp

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// decodedFrame is one appsink pull, copied out of GStreamer's buffer
// since the buffer is reused after Unmap.
type decodedFrame struct {
	data    []byte
	traceID string
}

// onSampleFunc receives a decoded frame; the Reader wires it to either
// the buffered ring's push or a pool injection.
type onSampleFunc func(decodedFrame)

// newOnNewSample builds the appsink new-sample handler, grounded on
// rtsp.go's OnNewSample: pull sample, map buffer read-only, copy out
// (GStreamer reuses the underlying buffer once unmapped), forward to
// deliver, and always return FlowOK — a single corrupted frame must not
// tear down the whole pipeline.
func newOnNewSample(deliver onSampleFunc) func(*app.Sink) gst.FlowReturn {
	return func(sink *app.Sink) gst.FlowReturn {
		sample := sink.PullSample()
		if sample == nil {
			slog.Warn("rtsp: failed to pull sample, skipping frame")
			return gst.FlowOK
		}

		buf := sample.GetBuffer()
		if buf == nil {
			slog.Warn("rtsp: sample had no buffer, skipping frame")
			return gst.FlowOK
		}

		mapInfo := buf.Map(gst.MapRead)
		src := mapInfo.Bytes()
		if len(src) == 0 {
			buf.Unmap()
			slog.Warn("rtsp: empty buffer, skipping frame")
			return gst.FlowOK
		}
		data := make([]byte, len(src))
		copy(data, src)
		buf.Unmap()

		deliver(decodedFrame{data: data, traceID: uuid.New().String()})
		return gst.FlowOK
	}
}

// onPadAdded links rtspsrc's dynamically created source pad to
// depay's static sink pad, since rtspsrc's output isn't known until
// the RTSP session negotiates a stream.
func onPadAdded(_ *gst.Element, srcPad *gst.Pad, depay *gst.Element) {
	sinkPad := depay.GetStaticPad("sink")
	if sinkPad == nil {
		slog.Error("rtsp: rtph264depay has no sink pad")
		return
	}
	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		slog.Error("rtsp: failed to link dynamic pad", "src", srcPad.GetName(), "sink", sinkPad.GetName(), "result", ret)
	}
}

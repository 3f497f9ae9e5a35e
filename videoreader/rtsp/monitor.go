package rtsp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// monitorPipelineBus polls the pipeline bus until EOS, an Error message,
// or ctx cancellation. A PLAYING state transition marks the reader
// connected. Returns nil only on clean ctx cancellation; any
// other return is a reason to reconnect.
func (r *Reader) monitorPipelineBus(ctx context.Context, pipeline *gst.Pipeline) error {
	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("rtsp: end of stream", "url", r.url, "frames", r.frameCount.Load())
			r.eof.Store(true)
			return fmt.Errorf("rtsp: end of stream")

		case gst.MessageError:
			gerr := msg.ParseError()
			category := ClassifyGStreamerError(gerr)
			switch category {
			case ErrCategoryNetwork:
				r.errNetwork.Add(1)
			case ErrCategoryCodec:
				r.errCodec.Add(1)
			case ErrCategoryAuth:
				r.errAuth.Add(1)
			default:
				r.errUnknown.Add(1)
			}
			slog.Error("rtsp: pipeline error", "error", gerr.Error(), "category", category.String(), "url", r.url)
			return fmt.Errorf("rtsp: pipeline error [%s]: %s", category, gerr.Error())

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				_, newState := msg.ParseStateChanged()
				if newState == gst.StatePlaying {
					r.connected.Store(true)
				}
			}
		}
	}
}

package rtsp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Acceleration selects which decode path CreatePipeline builds.
type Acceleration int

const (
	AccelAuto Acceleration = iota
	AccelVAAPI
	AccelSoftware
)

// PipelineConfig parameterizes CreatePipeline.
type PipelineConfig struct {
	RTSPURL      string
	Width        int
	Height       int
	TargetFPS    float64
	PixelFormat  string // GStreamer format name: BGRA, BGR, or RGB
	Acceleration Acceleration
}

// PipelineElements holds the elements CreatePipeline's caller needs
// after construction: to start it, to hot-reload its framerate, and to
// tear it down.
type PipelineElements struct {
	Pipeline   *gst.Pipeline
	AppSink    *app.Sink
	CapsFilter *gst.Element
	RTSPSrc    *gst.Element
	UsingVAAPI bool
}

// CreatePipeline builds, but does not start, a decode pipeline:
//
//	rtspsrc → rtph264depay → decoder → [vaapipostproc →] videoconvert →
//	[videoscale →] videorate → capsfilter(format+size+fps) → appsink
//
// rtspsrc's output pad is dynamic; the caller must link it to
// rtph264depay's sink pad from a pad-added callback (see onPadAdded)
// once the pipeline reaches PAUSED or PLAYING.
func CreatePipeline(cfg PipelineConfig) (*PipelineElements, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("rtsp: create pipeline: %w", err)
	}

	rtspsrc, err := gst.NewElement("rtspsrc")
	if err != nil {
		return nil, fmt.Errorf("rtsp: create rtspsrc: %w", err)
	}
	rtspsrc.SetProperty("location", cfg.RTSPURL)
	rtspsrc.SetProperty("protocols", 4) // TCP only

	latency := 200
	if cfg.TargetFPS > 0 && cfg.TargetFPS <= 2.0 {
		latency = 50
	}
	rtspsrc.SetProperty("latency", latency)
	rtspsrc.SetProperty("tcp-timeout", uint64(10_000_000))

	rtph264depay, err := gst.NewElement("rtph264depay")
	if err != nil {
		return nil, fmt.Errorf("rtsp: create rtph264depay: %w", err)
	}
	rtph264depay.SetProperty("request-keyframe", true)

	decoder, converter, scaler, vaapiPostproc, usingVAAPI, err := buildDecodeChain(cfg)
	if err != nil {
		return nil, err
	}

	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("rtsp: create videorate: %w", err)
	}
	videorate.SetProperty("drop-only", true)
	videorate.SetProperty("skip-to-first", true)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("rtsp: create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(buildCaps(cfg)))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("rtsp: create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", 1)
	appsink.SetProperty("drop", true)
	appsink.SetProperty("qos", true)

	elements := []*gst.Element{rtspsrc, rtph264depay, decoder}
	linkChain := []*gst.Element{rtph264depay, decoder}
	if usingVAAPI {
		elements = append(elements, vaapiPostproc)
		linkChain = append(linkChain, vaapiPostproc)
	}
	elements = append(elements, converter)
	linkChain = append(linkChain, converter)
	if scaler != nil {
		elements = append(elements, scaler)
		linkChain = append(linkChain, scaler)
	}
	elements = append(elements, videorate, capsfilter, appsink.Element)
	linkChain = append(linkChain, videorate, capsfilter, appsink.Element)

	for _, e := range elements {
		if err := pipeline.Add(e); err != nil {
			return nil, fmt.Errorf("rtsp: add element %s: %w", e.GetName(), err)
		}
	}
	if err := gst.ElementLinkMany(linkChain...); err != nil {
		return nil, fmt.Errorf("rtsp: link pipeline elements: %w", err)
	}

	probeTarget := decoder
	if usingVAAPI {
		probeTarget = vaapiPostproc
	}
	if err := addDecodeLatencyProbe(probeTarget); err != nil {
		slog.Warn("rtsp: decode latency probe unavailable", "error", err)
	}

	return &PipelineElements{
		Pipeline:   pipeline,
		AppSink:    appsink,
		CapsFilter: capsfilter,
		RTSPSrc:    rtspsrc,
		UsingVAAPI: usingVAAPI,
	}, nil
}

// buildDecodeChain picks the decoder/postproc/converter/scaler set for
// the requested acceleration mode, falling back to software when VAAPI
// elements are unavailable under AccelAuto.
func buildDecodeChain(cfg PipelineConfig) (decoder, converter, scaler, vaapiPostproc *gst.Element, usingVAAPI bool, err error) {
	tryVAAPI := func() (*gst.Element, *gst.Element, *gst.Element, error) {
		dec, err := gst.NewElement("vaapih264dec")
		if err != nil {
			return nil, nil, nil, err
		}
		dec.SetProperty("low-latency", true)

		post, err := gst.NewElement("vaapipostproc")
		if err != nil {
			return nil, nil, nil, err
		}
		post.SetProperty("format", "nv12")
		post.SetProperty("width", cfg.Width)
		post.SetProperty("height", cfg.Height)
		post.SetProperty("scale-method", 2)

		conv, err := gst.NewElement("videoconvert")
		if err != nil {
			return nil, nil, nil, err
		}
		conv.SetProperty("n-threads", 0)
		return dec, post, conv, nil
	}

	softwareChain := func() (*gst.Element, *gst.Element, *gst.Element, error) {
		dec, err := gst.NewElement("avdec_h264")
		if err != nil {
			return nil, nil, nil, err
		}
		dec.SetProperty("max-threads", 0)
		dec.SetProperty("output-corrupt", false)

		conv, err := gst.NewElement("videoconvert")
		if err != nil {
			return nil, nil, nil, err
		}
		conv.SetProperty("n-threads", 0)
		return dec, nil, conv, nil
	}

	switch cfg.Acceleration {
	case AccelVAAPI:
		dec, post, conv, verr := tryVAAPI()
		if verr != nil {
			return nil, nil, nil, nil, false, fmt.Errorf("rtsp: VAAPI required but unavailable: %w", verr)
		}
		return dec, conv, nil, post, true, nil

	case AccelSoftware:
		dec, _, conv, serr := softwareChain()
		if serr != nil {
			return nil, nil, nil, nil, false, fmt.Errorf("rtsp: create software decode chain: %w", serr)
		}
		scale, err := gst.NewElement("videoscale")
		if err != nil {
			return nil, nil, nil, nil, false, fmt.Errorf("rtsp: create videoscale: %w", err)
		}
		return dec, conv, scale, nil, false, nil

	default: // AccelAuto
		if dec, post, conv, verr := tryVAAPI(); verr == nil {
			slog.Info("rtsp: using VAAPI hardware decode")
			return dec, conv, nil, post, true, nil
		}
		slog.Warn("rtsp: VAAPI unavailable, falling back to software decode")
		dec, _, conv, serr := softwareChain()
		if serr != nil {
			return nil, nil, nil, nil, false, fmt.Errorf("rtsp: create software decode chain: %w", serr)
		}
		scale, err := gst.NewElement("videoscale")
		if err != nil {
			return nil, nil, nil, nil, false, fmt.Errorf("rtsp: create videoscale: %w", err)
		}
		return dec, conv, scale, nil, false, nil
	}
}

// UpdateFramerateCaps hot-reloads the capsfilter's framerate constraint
// without tearing down the pipeline.
func UpdateFramerateCaps(capsfilter *gst.Element, cfg PipelineConfig) error {
	if capsfilter == nil {
		return fmt.Errorf("rtsp: capsfilter is nil")
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(buildCaps(cfg)))
	return nil
}

// DestroyPipeline drives the pipeline to the NULL state, releasing its
// resources. Safe to call on an already-destroyed pipeline.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("rtsp: set pipeline to NULL: %w", err)
	}
	return nil
}

// addDecodeLatencyProbe stamps each buffer exiting element with the
// wall-clock time it left the decoder, as a ReferenceTimestampMeta.
// The appsink sample callback does not read this meta back.
func addDecodeLatencyProbe(element *gst.Element) error {
	srcPad := element.GetStaticPad("src")
	if srcPad == nil {
		return fmt.Errorf("rtsp: no src pad on %s", element.GetName())
	}
	timestampCaps := gst.NewCapsFromString("timestamp/x-decode-exit")
	srcPad.AddProbe(gst.PadProbeTypeBuffer, func(pad *gst.Pad, info *gst.PadProbeInfo) gst.PadProbeReturn {
		buf := info.GetBuffer()
		if buf == nil {
			return gst.PadProbeOK
		}
		buf.AddReferenceTimestampMeta(timestampCaps, time.Since(time.Time{}), 0)
		return gst.PadProbeOK
	})
	return nil
}

// buildCaps renders the final capsfilter string: pixel format, target
// size and framerate. Fractional target FPS below 1 Hz is expressed as
// 1/N rather than truncating to 0/1.
func buildCaps(cfg PipelineConfig) string {
	numerator, denominator := 1, 1
	switch {
	case cfg.TargetFPS <= 0:
		numerator, denominator = 0, 1 // variable framerate, no constraint
	case cfg.TargetFPS < 1.0:
		denominator = int(1.0 / cfg.TargetFPS)
	default:
		numerator = int(cfg.TargetFPS)
	}
	format := cfg.PixelFormat
	if format == "" {
		format = "BGR"
	}
	return fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d,framerate=%d/%d",
		format, cfg.Width, cfg.Height, numerator, denominator)
}

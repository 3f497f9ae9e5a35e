package videoreader

import (
	"fmt"
	"os"

	"github.com/e7canasta/vidframe/videoreader/asyncring"
	"github.com/e7canasta/vidframe/videoreader/mmap"
	"github.com/e7canasta/vidframe/videoreader/rtsp"
)

// EnvTypeOverride is the environment variable VideoReaderFactory.cpp's
// origin honors ahead of auto-detection.
const EnvTypeOverride = "VIDEO_READER_TYPE"

// CreateOptions carries the union of construction parameters every
// reader variant might need. Fields irrelevant to the resolved type are
// ignored.
type CreateOptions struct {
	RTSP rtsp.Config
}

// Factory is the only place that knows which concrete Reader
// implementation exists for a given Type, per spec.md §4.7: "The
// factory is the only place that knows which concrete implementation
// exists."
//
// Grounded on include/videoFile/VideoReaderFactory.hpp and
// source/videoFile/VideoReaderFactory.cpp's priority chain: explicit
// type argument, then an environment override, then a (declared but
// unimplemented in the origin, and left stubbed here too) config-file
// override, then a capability probe.
type Factory struct {
	// ConfigFileType lets a caller stub a config-file override for
	// testing; nil means "no override configured", matching the
	// origin's always-AUTO stub.
	ConfigFileType func() (Type, bool)
}

// NewFactory constructs a Factory with no config-file override.
func NewFactory() *Factory {
	return &Factory{}
}

// resolve implements the priority chain without constructing anything.
func (f *Factory) resolve(explicit Type) Type {
	if explicit != Auto {
		return explicit
	}
	if envVal, ok := os.LookupEnv(EnvTypeOverride); ok {
		if t, ok := ParseType(envVal); ok && t != Auto {
			return t
		}
	}
	if f.ConfigFileType != nil {
		if t, ok := f.ConfigFileType(); ok && t != Auto {
			return t
		}
	}
	return f.probe()
}

// probe is the capability check the origin runs when nothing more
// specific decided the type. isAsyncRingSuitable is always true here,
// the same simplification the origin's isIoUringSuitable makes, since
// the ring primitive (goroutines over unix.Pread) has no unavailable
// state to detect the way a real io_uring binding would.
func (f *Factory) probe() Type {
	return AsyncRing
}

// Create resolves explicit to a concrete Type via the priority chain
// and returns an unopened Reader of that type. Callers still call
// Open/OpenRaw themselves, since only they know the source path and,
// for mmap/asyncring, the raw geometry.
func (f *Factory) Create(explicit Type, opts CreateOptions) (Reader, error) {
	switch f.resolve(explicit) {
	case Mmap:
		return mmap.New(), nil
	case AsyncRing:
		return asyncring.New(), nil
	case RTSP:
		return rtsp.New(opts.RTSP), nil
	default:
		return nil, fmt.Errorf("videoreader: no reader implementation for resolved type")
	}
}

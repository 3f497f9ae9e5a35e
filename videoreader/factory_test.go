package videoreader

import (
	"os"
	"testing"
)

func TestResolveExplicitTypeWins(t *testing.T) {
	f := NewFactory()
	if got := f.resolve(Mmap); got != Mmap {
		t.Fatalf("resolve(Mmap) = %v, want Mmap", got)
	}
}

func TestResolveEnvOverride(t *testing.T) {
	t.Setenv(EnvTypeOverride, "rtsp")
	f := NewFactory()
	if got := f.resolve(Auto); got != RTSP {
		t.Fatalf("resolve(Auto) with env override = %v, want RTSP", got)
	}
}

func TestResolveConfigFileOverride(t *testing.T) {
	os.Unsetenv(EnvTypeOverride)
	f := NewFactory()
	f.ConfigFileType = func() (Type, bool) { return Mmap, true }
	if got := f.resolve(Auto); got != Mmap {
		t.Fatalf("resolve(Auto) with config override = %v, want Mmap", got)
	}
}

func TestResolveFallsBackToProbe(t *testing.T) {
	os.Unsetenv(EnvTypeOverride)
	f := NewFactory()
	if got := f.resolve(Auto); got != AsyncRing {
		t.Fatalf("resolve(Auto) with no overrides = %v, want AsyncRing", got)
	}
}

func TestCreateReturnsMatchingType(t *testing.T) {
	f := NewFactory()
	r, err := f.Create(Mmap, CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := r.GetReaderType(); got != Mmap {
		t.Fatalf("GetReaderType() = %v, want Mmap", got)
	}
}

package main

import "testing"

func TestParseFlagsRequiresSource(t *testing.T) {
	if _, err := parseFlags([]string{"-m", "loop", "--width", "4", "--height", "4"}); err == nil {
		t.Fatal("expected error for missing source argument")
	}
}

func TestParseFlagsRejectsUnknownMode(t *testing.T) {
	if _, err := parseFlags([]string{"-m", "bogus", "--width", "4", "--height", "4", "file.raw"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestParseFlagsRequiresGeometry(t *testing.T) {
	if _, err := parseFlags([]string{"-m", "sequential", "file.raw"}); err == nil {
		t.Fatal("expected error for missing width/height")
	}
}

func TestParseFlagsDefaultsToLoopMode(t *testing.T) {
	cfg, err := parseFlags([]string{"--width", "4", "--height", "4", "file.raw"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.mode != modeLoop {
		t.Errorf("mode = %v, want loop", cfg.mode)
	}
	if cfg.source != "file.raw" {
		t.Errorf("source = %q, want file.raw", cfg.source)
	}
}

func TestParseFlagsAcceptsRTSPMode(t *testing.T) {
	cfg, err := parseFlags([]string{"-m", "rtsp", "--width", "1280", "--height", "720", "rtsp://example/stream"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.mode != modeRTSP {
		t.Errorf("mode = %v, want rtsp", cfg.mode)
	}
}

func TestParseFlagsRejectsBadThreadCount(t *testing.T) {
	if _, err := parseFlags([]string{"-m", "producer", "--width", "4", "--height", "4", "--threads", "0", "file.raw"}); err == nil {
		t.Fatal("expected error for --threads 0")
	}
}

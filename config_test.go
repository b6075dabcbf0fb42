package main

import (
	"os"
	"path/filepath"
	"testing"

	"sidbridge/internal/sidcore"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultConfig()
	if cfg.Port != want.Port || cfg.SidCount != want.SidCount || cfg.Host != want.Host {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sidbridge.yaml")
	contents := "port: 7000\nsid_count: 4\nchip_model: [\"8580\"]\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 7000 || cfg.SidCount != 4 {
		t.Fatalf("expected overlay to apply, got %+v", cfg)
	}
	if cfg.ResolveChipModel(0) != sidcore.MOS8580 {
		t.Fatalf("expected 8580 model from overlay")
	}
}

func TestResolveChipModelBackfillsFromSlotZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChipModel = []string{"8580"}
	if cfg.ResolveChipModel(3) != sidcore.MOS8580 {
		t.Fatalf("expected slot 3 to backfill from slot 0's model")
	}
}

func TestClockHzResolvesPalAndNtsc(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clock = "NTSC"
	if cfg.ClockHz() != sidcore.ClockNTSC {
		t.Fatalf("expected NTSC clock")
	}
	cfg.Clock = "PAL"
	if cfg.ClockHz() != sidcore.ClockPAL {
		t.Fatalf("expected PAL clock")
	}
}

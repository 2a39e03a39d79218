package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")

	want := Default()
	want.LiveThresholdPercent = 70
	want.AllowedWaste = 4096

	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.LiveThresholdPercent != 70 || got.AllowedWaste != 4096 {
		t.Fatalf("Load() = %+v, want LiveThresholdPercent=70 AllowedWaste=4096", got)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("Load(missing) = nil error, want one")
	}
}

func TestLoadStartsFromDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")

	if err := os.WriteFile(path, []byte(`{"live_threshold_percent": 60}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.LiveThresholdPercent != 60 {
		t.Fatalf("LiveThresholdPercent = %d, want 60", got.LiveThresholdPercent)
	}

	if got.GrainWords != Default().GrainWords {
		t.Fatalf("GrainWords = %d, want default %d", got.GrainWords, Default().GrainWords)
	}
}

func TestValidateRejectsNonPowerOfTwoGrainWords(t *testing.T) {
	tn := Default()
	tn.GrainWords = 3

	if err := tn.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for non-power-of-two GrainWords")
	}
}

func TestValidateRejectsOutOfRangePercent(t *testing.T) {
	tn := Default()
	tn.LiveThresholdPercent = 150

	if err := tn.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for out-of-range percent")
	}
}

func TestValidateRejectsNonPositiveMaxWorkers(t *testing.T) {
	tn := Default()
	tn.MaxWorkers = 0

	if err := tn.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for zero MaxWorkers")
	}
}

func TestMarkStepTargetConvertsMillis(t *testing.T) {
	tn := Default()
	tn.MarkStepTargetMillis = 25

	if got, want := tn.MarkStepTarget().Milliseconds(), int64(25); got != want {
		t.Fatalf("MarkStepTarget() = %dms, want %dms", got, want)
	}
}

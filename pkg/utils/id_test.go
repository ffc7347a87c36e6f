package utils

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateExperimentName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	if got := GenerateExperimentName(ts); got != "Experiments_20240309_140507" {
		t.Errorf("GenerateExperimentName = %s", got)
	}
}

func TestGenerateRunID(t *testing.T) {
	id1 := GenerateRunID()
	id2 := GenerateRunID()
	if !strings.HasPrefix(id1, "run-") {
		t.Errorf("GenerateRunID should start with 'run-': %s", id1)
	}
	if id1 == id2 {
		t.Error("GenerateRunID should return unique IDs")
	}
}

func TestFingerprint(t *testing.T) {
	a := map[string]any{"lr": 0.001, "units": 32, "activation": "relu"}
	b := map[string]any{"activation": "relu", "units": 32, "lr": 0.001}
	c := map[string]any{"lr": 0.002, "units": 32, "activation": "relu"}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("Fingerprint should not depend on map order")
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("Different assignments should have different fingerprints")
	}
	if len(Fingerprint(a)) != 36 {
		t.Errorf("Fingerprint should be a UUID string, got %s", Fingerprint(a))
	}
}

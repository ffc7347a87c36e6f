package utils

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fingerprintNamespace scopes trial fingerprints so they never collide with other SHA1 UUIDs.
var fingerprintNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("experiment-core/trial"))

// GenerateExperimentName returns the default experiment name for a run started at t.
func GenerateExperimentName(t time.Time) string {
	return "Experiments_" + t.Format("20060102_150405")
}

// GenerateRunID generates a run ID with a timestamp prefix
func GenerateRunID() string {
	timestamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("run-%s-%s", timestamp, uuid.NewString()[:8])
}

// Fingerprint returns a stable identifier for a parameter assignment.
// Keys are visited in sorted order, so equal assignments always map to the same value.
func Fingerprint(assignment map[string]any) string {
	keys := make([]string, 0, len(assignment))
	for k := range assignment {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, assignment[k])
	}
	return uuid.NewSHA1(fingerprintNamespace, []byte(b.String())).String()
}

package orchestrator

import (
	"sort"
	"strings"
)

// emptyResultMessage is delivered when a request times out with no
// replies at all.
const emptyResultMessage = "No specialist responses were received in time. Please try again."

// CanonicalWorkerOrder is the section order for the built-in property
// specialists. Workers configured outside this list still aggregate; their
// sections sort alphabetically after these.
var CanonicalWorkerOrder = []string{"single_family", "multi_family", "condo", "townhouse"}

// Aggregator formats the combined analysis delivered to the originator.
// It is a pure formatter: it never fails and has no side effects.
type Aggregator struct {
	// canonical is the fixed section order. Keys outside it (a worker
	// added to config but not to the order) are appended sorted, so the
	// output stays deterministic either way.
	canonical []string
}

// NewAggregator creates an aggregator with the given canonical key order.
func NewAggregator(canonical []string) *Aggregator {
	return &Aggregator{canonical: append([]string(nil), canonical...)}
}

// Aggregate produces the combined output for a finished request: one
// labeled section per received key in canonical order, then a note
// naming the expected keys that never replied. An empty received map
// yields a fixed no-responses message.
func (a *Aggregator) Aggregate(received map[string]string, expected []string) string {
	if len(received) == 0 {
		return emptyResultMessage
	}

	var lines []string
	lines = append(lines, "Estate.AI Combined Specialist Analysis", "")

	for _, k := range a.orderedKeys(received) {
		lines = append(lines, "=== "+sectionLabel(k)+" ===")
		lines = append(lines, strings.TrimSpace(received[k]))
		lines = append(lines, "")
	}

	var missing []string
	for _, k := range expected {
		if _, ok := received[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		lines = append(lines, "=== NOTE ===")
		lines = append(lines, "No response received from: "+strings.Join(missing, ", "))
		lines = append(lines, "")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// orderedKeys returns the received keys in canonical order, with any
// keys outside the canonical list appended in sorted order.
func (a *Aggregator) orderedKeys(received map[string]string) []string {
	var keys []string
	seen := make(map[string]struct{}, len(a.canonical))

	for _, k := range a.canonical {
		seen[k] = struct{}{}
		if _, ok := received[k]; ok {
			keys = append(keys, k)
		}
	}

	var extra []string
	for k := range received {
		if _, ok := seen[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)

	return append(keys, extra...)
}

// sectionLabel renders a worker key as a section heading:
// "single_family" becomes "SINGLE FAMILY".
func sectionLabel(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "_", " "))
}

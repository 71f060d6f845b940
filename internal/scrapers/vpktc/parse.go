package vpktc

import (
	"strings"

	"sensorlog/internal/components/telemetry"
)

const (
	report_parse_record    = "parse.record"
	report_parse_malformed = "parse.malformed"
)

const separator = ";"

// indices of dataset K that are kept, everything else is dropped
var keptKIndices = map[string]bool{
	"36": true,
	"38": true,
}

func splitLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Parse merges the raw M and K payloads into one snapshot, M records first.
// Malformed M lines become ("n/a", "malformed"), K lines are silently
// filtered down to indices 36 and 38.
func Parse(rawM, rawK string, tel telemetry.API) Snapshot {
	snapshot := Snapshot{}

	for _, line := range splitLines(rawM) {
		index, value, ok := strings.Cut(line, separator)
		if !ok {
			if line == "" {
				continue
			}
			tel.ReportWarning(report_parse_malformed, line)
			snapshot = append(snapshot, Record{Index: MalformedIndex, Value: MalformedValue})
			continue
		}
		tel.ReportDebug(report_parse_record, index, value)
		snapshot = append(snapshot, Record{Index: index, Value: value})
	}

	for _, line := range splitLines(rawK) {
		index, value, ok := strings.Cut(line, separator)
		if !ok || !keptKIndices[index] {
			continue
		}
		tel.ReportDebug(report_parse_record, index, value)
		snapshot = append(snapshot, Record{Index: index, Value: value})
	}

	return snapshot
}

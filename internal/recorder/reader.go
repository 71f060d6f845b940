package recorder

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// MaxLineSize is the longest log line ReadLast accepts.
const MaxLineSize = 16 * 1024 * 1024

// Line is one parsed line of the log.
type Line struct {
	Timestamp string
	// Values is nil for lines written for an empty snapshot.
	Values []string
}

// ParseLine splits a log line back into its timestamp and values.
func ParseLine(raw string) Line {
	raw = strings.TrimSuffix(raw, "\n")
	timestamp, values, found := strings.Cut(raw, ";")
	if !found {
		return Line{Timestamp: strings.TrimSuffix(raw, EmptyMarker)}
	}
	return Line{
		Timestamp: timestamp,
		Values:    strings.Split(values, ";"),
	}
}

// ReadLast returns the last n lines of the log at path, oldest first. n <= 0
// returns every line.
func ReadLast(path string, n int) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	var lines []Line
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	for scanner.Scan() {
		if scanner.Text() == "" {
			continue
		}
		lines = append(lines, ParseLine(scanner.Text()))
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}
	return lines, nil
}

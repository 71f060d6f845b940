package recorder

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sensorlog/internal/components/assert"
	"sensorlog/internal/components/chrono"
	"sensorlog/internal/components/telemetry"
	"sensorlog/internal/scrapers/vpktc"
)

const report_recorder_append = "recorder.append"

// TimestampLayout is ISO-8601 with second precision and a numeric offset,
// UTC is written as +00:00 rather than Z.
const TimestampLayout = "2006-01-02T15:04:05-07:00"

// EmptyMarker replaces the value list of a snapshot without records.
const EmptyMarker = "n/a"

// ErrIO is returned when the log file cannot be opened or written.
var ErrIO = errors.New("recorder: io error")

// FileRecorder appends one line per snapshot to a file. It assumes it is the
// only writer of that file.
type FileRecorder struct {
	path string
	time chrono.TimeAPI
	tel  telemetry.API
}

func NewFileRecorder(path string, clock chrono.TimeAPI, tel telemetry.API) FileRecorder {
	assert.NotEmptyStr(path)
	assert.NotNil(clock)
	assert.NotNil(tel)

	return FileRecorder{
		path: path,
		time: clock,
		tel:  telemetry.NewScopedAPI("recorder", tel),
	}
}

func (r FileRecorder) Path() string {
	return r.path
}

// FormatLine renders a snapshot as `<timestamp>;v1;v2;...\n`, or
// `<timestamp>n/a\n` when there are no records. Indices are not written.
func FormatLine(at time.Time, snapshot vpktc.Snapshot) string {
	var line strings.Builder
	line.WriteString(at.Format(TimestampLayout))
	if len(snapshot) == 0 {
		line.WriteString(EmptyMarker)
	}
	for _, value := range snapshot.Values() {
		line.WriteByte(';')
		line.WriteString(value)
	}
	line.WriteByte('\n')
	return line.String()
}

// Append writes the snapshot stamped with the current time as a single line.
// The line goes out in one write on an O_APPEND descriptor so it is never
// interleaved with or split from other lines.
func (r FileRecorder) Append(snapshot vpktc.Snapshot) error {
	line := FormatLine(r.time.Now(), snapshot)

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		err = fmt.Errorf("%w: open %s: %w", ErrIO, r.path, err)
		r.tel.ReportBroken(report_recorder_append, err)
		return err
	}

	_, err = f.WriteString(line)
	if err != nil {
		f.Close()
		err = fmt.Errorf("%w: write %s: %w", ErrIO, r.path, err)
		r.tel.ReportBroken(report_recorder_append, err)
		return err
	}
	err = f.Close()
	if err != nil {
		err = fmt.Errorf("%w: close %s: %w", ErrIO, r.path, err)
		r.tel.ReportBroken(report_recorder_append, err)
		return err
	}

	r.tel.ReportDebug(report_recorder_append, r.path, len(snapshot))
	return nil
}

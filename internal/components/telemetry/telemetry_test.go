package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	mem := NewMemoryAPI()
	tel := NewScopedAPI("vpktc", mem)

	tel.ReportBroken("client.login", errors.New("boom"))
	tel.ReportWarning("client.fetch", "M", 1)
	tel.ReportDebug("parse.record", "1", "5")
	tel.ReportCount("client.fetch-retries", 2)

	require.Len(t, mem.Reports(KindBroken, "vpktc: client.login"), 1)
	require.Len(t, mem.Reports(KindWarning, "vpktc: client.fetch"), 1)
	require.Len(t, mem.Reports(KindDebug, "vpktc: parse.record"), 1)

	counts := mem.Reports(KindCount, "vpktc: client.fetch-retries")
	require.Len(t, counts, 1)
	require.Equal(t, int64(2), counts[0].Count)

	require.Empty(t, mem.Reports(KindBroken, "client.login"))
}

func TestSlogAPIVerbosity(t *testing.T) {
	table := []struct {
		verbose   bool
		wantDebug bool
	}{
		{verbose: false, wantDebug: false},
		{verbose: true, wantDebug: true},
	}

	for _, row := range table {
		var buf bytes.Buffer
		tel := NewSlogAPI(NewLogger(&buf, row.verbose))

		tel.ReportDebug("sensor data", "M", "0/5")
		tel.ReportBroken("client.login", errors.New("no session"))

		out := buf.String()
		require.Equal(t, row.wantDebug, strings.Contains(out, "sensor data"))
		require.Contains(t, out, "params.0=\"no session\"")
	}
}

func TestSetupOtelDisabled(t *testing.T) {
	o, err := SetupOtel(context.Background(), "test:telemetry", Config{})
	if err != nil {
		t.Fatal(err)
	}
	require.Nil(t, o.TracerProvider)
	require.Nil(t, o.MeterProvider)
	require.NoError(t, o.Shutdown(context.Background()))
}

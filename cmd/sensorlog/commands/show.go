package commands

import (
	"fmt"
	"io"
	"os"

	"sensorlog/internal/components/serviceutil"
	"sensorlog/internal/recorder"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	showFile *string
	showLast *int
)

func init() {
	showFile = showCmd.Flags().String("file", defaultFile, "The log file to read.")
	showLast = showCmd.Flags().Int("last", 10, "How many of the most recent lines to show, 0 shows all.")
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show [--file <path/to/data.csv>] [--last <n>]",
	Short: "Prints the most recent snapshots of a log file as a table.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		lines, err := recorder.ReadLast(*showFile, *showLast)
		if err != nil {
			serviceutil.Fatal("failed to read log", err)
		}
		renderLines(os.Stdout, lines)
	},
}

// renderLines writes lines as a table with one column per value position,
// lines shorter than the widest one are padded with empty cells.
func renderLines(w io.Writer, lines []recorder.Line) {
	width := 0
	for _, l := range lines {
		width = max(width, len(l.Values))
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{"timestamp"}
	for i := 0; i < width; i++ {
		header = append(header, fmt.Sprintf("#%d", i+1))
	}
	t.AppendHeader(header)

	for _, l := range lines {
		row := table.Row{l.Timestamp}
		if l.Values == nil {
			row = append(row, recorder.EmptyMarker)
		}
		for _, v := range l.Values {
			row = append(row, v)
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d lines", len(lines))})
	t.Render()
}

// Package view renders aggregated state machine summaries to a terminal
// or as machine-readable JSON/YAML. It only writes to the given sink and
// never touches remote state.
package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/datamindedbe/stepview/pkg/aggregate"
	"github.com/fatih/color"
)

// Row is one rendered line: a state machine with its aggregated counters.
type Row struct {
	StateMachine string
	ConsoleURL   string
	Profile      string
	Account      string
	Region       string
	Summary      aggregate.Summary
}

// Options control terminal capabilities of the renderer.
type Options struct {
	// Color enables ANSI colors for headers and status counters.
	Color bool

	// Links wraps state machine names in OSC 8 hyperlinks pointing at
	// the AWS console.
	Links bool
}

// Table renders summary rows as an aligned text table.
type Table struct {
	opts Options
}

// NewTable creates a table renderer.
func NewTable(opts Options) *Table {
	return &Table{opts: opts}
}

var headers = []string{
	"StateMachine", "Profile", "Account", "Region",
	"Total", "Succeed (%)", "Running", "Failed/Aborted/TimedOut/Throttled",
}

// Render writes the table to w. Rows are expected in their final order
// (the aggregator sorts by profile, region, machine name). Partial rows
// are marked with a trailing asterisk and explained in a footnote.
func (t *Table) Render(w io.Writer, rows []Row) error {
	cells := make([][]string, 0, len(rows))

	anyPartial := false

	for _, r := range rows {
		name := r.StateMachine
		if r.Summary.Partial {
			name += " *"
			anyPartial = true
		}

		cells = append(cells, []string{
			name,
			r.Profile,
			r.Account,
			r.Region,
			fmt.Sprintf("%d", r.Summary.Total),
			fmt.Sprintf("%.2f", r.Summary.SucceededPercent()),
			fmt.Sprintf("%d", r.Summary.Running),
			fmt.Sprintf("%d/%d/%d/%d",
				r.Summary.Failed, r.Summary.Aborted,
				r.Summary.TimedOut, r.Summary.Throttled),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range cells {
		for i, c := range row {
			if len(c) > widths[i] {
				widths[i] = len(c)
			}
		}
	}

	headerColor := color.New(color.FgCyan, color.Bold)

	var sb strings.Builder

	for i, h := range headers {
		padded := pad(h, widths[i])
		if t.opts.Color {
			padded = headerColor.Sprint(padded)
		}

		sb.WriteString(padded)

		if i < len(headers)-1 {
			sb.WriteString("  ")
		}
	}

	sb.WriteString("\n")

	for rowIdx, row := range cells {
		for i, c := range row {
			cell := pad(c, widths[i])

			// The hyperlink escape wraps the already padded name so
			// column alignment is computed on visible characters only.
			if i == 0 && t.opts.Links && rows[rowIdx].ConsoleURL != "" {
				cell = hyperlink(rows[rowIdx].ConsoleURL, cell)
			}

			sb.WriteString(cell)

			if i < len(row)-1 {
				sb.WriteString("  ")
			}
		}

		sb.WriteString("\n")
	}

	if anyPartial {
		sb.WriteString("\n* partial results: execution listing was rate limited\n")
	}

	_, err := io.WriteString(w, sb.String())

	return err
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}

	return s + strings.Repeat(" ", width-len(s))
}

// hyperlink wraps text in an OSC 8 terminal hyperlink.
func hyperlink(url, text string) string {
	return "\x1b]8;;" + url + "\x1b\\" + text + "\x1b]8;;\x1b\\"
}

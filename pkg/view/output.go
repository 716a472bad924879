package view

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Format selects how results are written.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates an output format name.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	}

	return "", fmt.Errorf("unknown output format %q (use table, json or yaml)", raw)
}

// machineOutput is the machine-readable shape of one summary row.
type machineOutput struct {
	StateMachine     string  `json:"state_machine" yaml:"state_machine"`
	Profile          string  `json:"profile" yaml:"profile"`
	Account          string  `json:"account" yaml:"account"`
	Region           string  `json:"region" yaml:"region"`
	ConsoleURL       string  `json:"console_url" yaml:"console_url"`
	Total            int64   `json:"total" yaml:"total"`
	Succeeded        int64   `json:"succeeded" yaml:"succeeded"`
	SucceededPercent float64 `json:"succeeded_percent" yaml:"succeeded_percent"`
	Running          int64   `json:"running" yaml:"running"`
	Failed           int64   `json:"failed" yaml:"failed"`
	Aborted          int64   `json:"aborted" yaml:"aborted"`
	TimedOut         int64   `json:"timed_out" yaml:"timed_out"`
	Throttled        int64   `json:"throttled" yaml:"throttled"`
	Other            int64   `json:"other,omitempty" yaml:"other,omitempty"`
	Partial          bool    `json:"partial,omitempty" yaml:"partial,omitempty"`
}

func toOutputs(rows []Row) []machineOutput {
	out := make([]machineOutput, 0, len(rows))

	for _, r := range rows {
		out = append(out, machineOutput{
			StateMachine:     r.StateMachine,
			Profile:          r.Profile,
			Account:          r.Account,
			Region:           r.Region,
			ConsoleURL:       r.ConsoleURL,
			Total:            r.Summary.Total,
			Succeeded:        r.Summary.Succeeded,
			SucceededPercent: r.Summary.SucceededPercent(),
			Running:          r.Summary.Running,
			Failed:           r.Summary.Failed,
			Aborted:          r.Summary.Aborted,
			TimedOut:         r.Summary.TimedOut,
			Throttled:        r.Summary.Throttled,
			Other:            r.Summary.Other,
			Partial:          r.Summary.Partial,
		})
	}

	return out
}

// RenderJSON writes rows as an indented JSON array.
func RenderJSON(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(toOutputs(rows)); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// RenderYAML writes rows as a YAML sequence.
func RenderYAML(w io.Writer, rows []Row) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()

	if err := enc.Encode(toOutputs(rows)); err != nil {
		return fmt.Errorf("encoding YAML output: %w", err)
	}

	return nil
}

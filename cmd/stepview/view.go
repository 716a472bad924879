package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datamindedbe/stepview/pkg/config"
	"github.com/datamindedbe/stepview/pkg/query"
	"github.com/datamindedbe/stepview/pkg/runner"
	"github.com/datamindedbe/stepview/pkg/view"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	profilesFlag string
	periodFlag   string
	tagsFlag     string
	regionsFlag  []string
	outputFlag   string
	verbose      bool
	noColor      bool
)

func init() {
	rootCmd.Flags().StringVar(&profilesFlag, "profile", "",
		"comma-separated AWS profiles to query, e.g. --profile prod,staging")
	rootCmd.Flags().StringVar(&periodFlag, "period", "",
		"lookback period (minute, hour, today, day, week, month, year)")
	rootCmd.Flags().StringVar(&tagsFlag, "tags", "",
		"comma-separated key=value tag filter, all pairs must match")
	rootCmd.Flags().StringSliceVar(&regionsFlag, "region", nil,
		"regions to probe per profile (default: the profile's region)")
	rootCmd.Flags().StringVar(&outputFlag, "output", "",
		"output format (table, json, yaml)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose diagnostics on stderr")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false,
		"disable colored output")
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags win over config file and environment.
	if profilesFlag != "" {
		cfg.Profiles = profilesFlag
	}

	if periodFlag != "" {
		cfg.Period = periodFlag
	}

	if tagsFlag != "" {
		cfg.Tags = tagsFlag
	}

	if len(regionsFlag) > 0 {
		cfg.Regions = regionsFlag
	}

	if outputFlag != "" {
		cfg.Output = outputFlag
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	profiles, err := query.ResolveProfiles(cfg.Profiles)
	if err != nil {
		return fmt.Errorf("resolving profiles (use --profile): %w", err)
	}

	period, err := query.ParsePeriod(cfg.Period)
	if err != nil {
		return err
	}

	filter, err := query.ParseTags(cfg.Tags)
	if err != nil {
		return err
	}

	format, err := view.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}

	// Resolved once per run so long fetches do not drift the bounds.
	window := period.Window(time.Now())

	// An interrupt aborts in-flight pagination; a cancelled run renders
	// nothing rather than a silently incomplete table.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Warn("Received shutdown signal")
		cancel()
	}()

	log.WithField("period", period).
		WithField("profiles", profiles).
		Debug("Starting fetch")

	r := runner.New(log, runner.Options{
		Profiles:    profiles,
		Regions:     cfg.Regions,
		Window:      window,
		Filter:      filter,
		Concurrency: cfg.Fetch.Concurrency,
	}, runner.NewFetcherFactory(log, cfg.Fetch))

	report, err := r.Run(ctx)
	if err != nil {
		return err
	}

	if err := render(format, report); err != nil {
		return err
	}

	// Warnings trail the table on stderr so they stay visible.
	for _, w := range report.Warnings {
		log.Warn(w.String())
	}

	if len(report.Rows) == 0 {
		log.Warn("No state machines matched the given profiles, regions and tags")
	}

	return nil
}

func render(format view.Format, report *runner.Report) error {
	switch format {
	case view.FormatJSON:
		return view.RenderJSON(os.Stdout, report.Rows)
	case view.FormatYAML:
		return view.RenderYAML(os.Stdout, report.Rows)
	default:
		isTTY := isatty.IsTerminal(os.Stdout.Fd())

		table := view.NewTable(view.Options{
			Color: isTTY && !noColor,
			Links: isTTY,
		})

		return table.Render(os.Stdout, report.Rows)
	}
}

// Command taxonomy-loader fetches ATT&CK STIX bundles and builds the
// tactic/technique graph used by contentmapper.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"contentmapper/internal/attack"
	"contentmapper/internal/feed"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	bundles  []string
	urls     []string
	out      string
	logLevel string
	timeout  time.Duration
}

func rootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "taxonomy-loader",
		Short: "Build the ATT&CK taxonomy graph from STIX bundles",
		Long: `taxonomy-loader reads MITRE ATT&CK STIX bundles from files or URLs,
builds the tactic, technique and sub-technique graph, and prints a summary
or writes the graph as JSON.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringSliceVar(&opts.bundles, "bundle", nil, "STIX bundle file (repeatable)")
	cmd.Flags().StringSliceVar(&opts.urls, "url", nil, "STIX bundle URL (repeatable)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the graph as JSON to this file instead of printing a summary")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Overall fetch timeout")

	return cmd
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if len(opts.bundles)+len(opts.urls) == 0 {
		return errors.New("at least one --bundle or --url is required")
	}

	controller := feed.NewController(logger)
	for _, b := range opts.bundles {
		controller.Register(feed.NewFileFetcher(b))
	}
	for _, u := range opts.urls {
		controller.Register(feed.NewHTTPFetcher(u))
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	g, err := controller.Run(ctx)
	if err != nil {
		return err
	}

	if opts.out == "" {
		return printSummary(stdout, g)
	}
	return writeGraph(opts.out, g)
}

func printSummary(w io.Writer, g *attack.Graph) error {
	s := g.Summary()
	if _, err := fmt.Fprintf(w, "tactics: %d\ntechniques: %d\nsub-techniques: %d\n", s.Tactics, s.Techniques, s.SubTechniques); err != nil {
		return err
	}
	for _, id := range g.TacticIDs() {
		t := g.Tactics[id]
		// Each tactic carries one generic entry besides its techniques.
		if _, err := fmt.Fprintf(w, "  %s  %-24s %d techniques\n", id, t.Name, len(t.Techniques)-1); err != nil {
			return err
		}
	}
	return nil
}

func writeGraph(path string, g *attack.Graph) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing graph: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"llm-spot-trader/internal/analysis"
	"llm-spot-trader/internal/decision"
	"llm-spot-trader/internal/engine"
	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "bot",
		Short:        "LLM-advised Binance spot trader",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config")

	root.AddCommand(runCmd(&configPath))
	root.AddCommand(scanCmd(&configPath))
	root.AddCommand(parseCmd())
	return root
}

func runCmd(configPath *string) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the scan loop (or a single cycle with --once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeSystem(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(ctx, *configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if once {
				res, err := a.engine.Cycle(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}
			return runLoop(ctx, a)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run exactly one cycle and print its result")
	return cmd
}

// runLoop starts the runner and the status API and blocks until a signal.
func runLoop(ctx context.Context, a *app) error {
	if a.api != nil {
		go func() {
			if err := a.api.Start(ctx); err != nil {
				logger.ErrorWithErr(ctx, "Status API stopped", err)
			}
		}()
	}

	// the runner outlives ctx so the in-flight cycle can finish after a signal
	if err := a.runner.Start(context.WithoutCancel(ctx)); err != nil {
		if errors.Is(err, engine.ErrMissingCredentials) {
			logger.Error(ctx, "Cannot start: credentials missing", "error", err.Error())
		}
		return err
	}

	<-ctx.Done()
	logger.Info(ctx, "Shutdown signal received, finishing current cycle")
	a.runner.Stop(context.Background())
	a.runner.Wait()
	summarizeOnShutdown(context.Background(), a.eod)
	logger.Info(context.Background(), "Bot stopped")
	return nil
}

// summarizeOnShutdown writes the partial summary of the current day.
func summarizeOnShutdown(ctx context.Context, s interfaces.EodSummarizer) {
	if s == nil {
		return
	}
	path, err := s.SummarizeToday()
	if err != nil {
		logger.ErrorWithErr(ctx, "Shutdown summary failed", err)
		return
	}
	if path != "" {
		logger.Info(ctx, "Shutdown summary written", "path", path)
	}
}

func scanCmd(configPath *string) *cobra.Command {
	var showPrompt bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Rank the universe once without asking the model or placing orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeSystem(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(ctx, *configPath)
			if err != nil {
				return err
			}
			brk := initializeBroker(ctx, cfg, nil)
			symbols := cfg.Universe
			if len(args) > 0 {
				symbols = args
			}

			ranked := analysis.Rank(analysis.NewBuilder(brk).Survey(ctx, symbols))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tSYMBOL\tSCORE\tPRICE\tTREND\tMOMENTUM\tVOLATILITY\tBUY SIGNALS")
			for i, c := range ranked {
				s := c.Snapshot
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%d\n",
					i+1, c.Symbol, c.Score, s.Price, s.Trend, s.Momentum, s.Volatility, s.SignalCount(types.SignalBuy))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if showPrompt && len(ranked) > 0 {
				cash, err := brk.Balance(ctx)
				if err != nil {
					cash = 0
				}
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), analysis.EntryPrompt(ranked[0].Snapshot, analysis.PromptContext{
					Cash:         cash,
					MaxPositions: cfg.Trading.MaxPositions,
					RiskPct:      cfg.Trading.RiskPct,
				}))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showPrompt, "prompt", false, "print the entry prompt for the top candidate")
	return cmd
}

func parseCmd() *cobra.Command {
	var kind string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a model reply (file or stdin) into a decision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			b, err := io.ReadAll(in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch strings.ToLower(kind) {
			case "entry":
				d := decision.ParseEntry(string(b))
				if asJSON {
					return printJSON(out, d)
				}
				fmt.Fprintln(out, decision.FormatEntry(d))
			case "exit":
				d := decision.ParseExit(string(b))
				if asJSON {
					return printJSON(out, d)
				}
				fmt.Fprintln(out, decision.FormatExit(d))
			default:
				return fmt.Errorf("unknown kind %q: want entry or exit", kind)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "entry", "reply kind: entry or exit")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the decision as JSON")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

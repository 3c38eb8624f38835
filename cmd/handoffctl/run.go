package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rocketbitz/handoff-go/exchange"
	"github.com/rocketbitz/handoff-go/ownership"
)

var (
	runCount       int
	runAllocator   string
	runDestructor  string
	runShowMetrics bool
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().IntVarP(&runCount, "count", "n", 1, "Number of cells to hand off")
	cmd.Flags().StringVar(&runAllocator, "allocator", "malloc", "Allocator family: malloc or go")
	cmd.Flags().StringVar(&runDestructor, "destructor", "matching", "Destructor family: matching, malloc or go")
	cmd.Flags().BoolVar(&runShowMetrics, "metrics", false, "Print Prometheus counters after the run")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Allocate cells and hand them to the native consumer",
		Long: `The run command allocates --count cells and hands each one to the native
consumer, which prints "got <value>" and releases the cell with the supplied
destructor.

Example:
  handoffctl run
  handoffctl run --count 1000 --allocator go --quiet
  handoffctl run --allocator go --destructor malloc   # rejected`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHandoffs(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

type runSummary struct {
	Allocator          string `json:"allocator"`
	Destructor         string `json:"destructor"`
	Requested          int    `json:"requested"`
	Completed          int    `json:"completed"`
	Allocated          uint64 `json:"allocated"`
	AllocationFailures uint64 `json:"allocation_failures"`
	Consumed           uint64 `json:"consumed"`
	Rejected           uint64 `json:"rejected"`
	Error              string `json:"error,omitempty"`
}

func runHandoffs(ctx context.Context, out io.Writer) error {
	if runCount < 0 {
		return fmt.Errorf("--count must not be negative, got %d", runCount)
	}
	alloc, err := ownership.AllocatorByName(runAllocator)
	if err != nil {
		return err
	}
	dtor, err := resolveDestructor(runDestructor)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	reg := prometheus.NewRegistry()
	metrics, err := exchange.NewPrometheusMetrics(exchange.PrometheusMetricsOptions{Registerer: reg})
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	consumerOut := out
	if quiet {
		consumerOut = io.Discard
	}
	ex, err := exchange.New(exchange.Config{
		Allocator:        alloc,
		Destructor:       dtor,
		Output:           consumerOut,
		StructuredLogger: logger.Sugar(),
		Metrics:          metrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = ex.Close()
	}()

	done, runErr := ex.Run(ctx, runCount)
	stats := ex.Stats()
	summary := runSummary{
		Allocator:          ex.Allocator().Family().String(),
		Destructor:         ex.Destructor().Name(),
		Requested:          runCount,
		Completed:          done,
		Allocated:          stats.Allocated,
		AllocationFailures: stats.AllocationFailures,
		Consumed:           stats.Consumed,
		Rejected:           stats.Rejected,
	}
	if runErr != nil {
		summary.Error = runErr.Error()
		logger.Error("handoff run failed", zap.Error(runErr))
	}

	if err := printSummary(out, summary); err != nil {
		return err
	}
	if runShowMetrics {
		if err := printMetrics(out, reg); err != nil {
			return err
		}
	}
	return runErr
}

func resolveDestructor(name string) (*ownership.Destructor, error) {
	if strings.EqualFold(strings.TrimSpace(name), "matching") || name == "" {
		return nil, nil
	}
	family, err := ownership.ParseFamily(name)
	if err != nil {
		return nil, err
	}
	dtor, err := ownership.DestructorFor(family)
	if err != nil {
		return nil, err
	}
	return &dtor, nil
}

func printSummary(out io.Writer, s runSummary) error {
	if jsonOut {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(s)
	}
	_, err := fmt.Fprintf(out, "allocator=%s destructor=%s completed=%d/%d consumed=%d rejected=%d alloc_failures=%d\n",
		s.Allocator, s.Destructor, s.Completed, s.Requested, s.Consumed, s.Rejected, s.AllocationFailures)
	return err
}

func printMetrics(out io.Writer, reg *prometheus.Registry) error {
	mfs, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}

// The mynta-chaos runner wires the tunables, the cluster clients and the
// observability endpoints, then hands off to the selected chaos profile.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	soak "github.com/myntacore/mynta-chaos-go/experiments/consensus-soak/experiment"
	chaos "github.com/myntacore/mynta-chaos-go/experiments/masternode-chaos/experiment"
	"github.com/myntacore/mynta-chaos-go/pkg/clients"
	"github.com/myntacore/mynta-chaos-go/pkg/environment"
	"github.com/myntacore/mynta-chaos-go/pkg/log"
	"github.com/myntacore/mynta-chaos-go/pkg/metrics"
	"github.com/myntacore/mynta-chaos-go/pkg/result"
	"github.com/myntacore/mynta-chaos-go/pkg/telemetry"
	"github.com/myntacore/mynta-chaos-go/pkg/types"
)

var (
	flagDebug        int
	flagConfig       string
	flagEndpoints    string
	flagNodeCount    int
	flagDryRun       bool
	flagMetricsAddr  string
	flagOTELEndpoint string
	flagSeed         int64
	flagDurationMin  int
)

// exitCode is carried out of run so main exits after the deferred
// telemetry shutdown has flushed
var exitCode int

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableSorting:         true,
		DisableLevelTruncation: true,
	})
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "mynta-chaos",
		Short: "Chaos and soak orchestrator for Mynta node clusters",
	}
	rootCmd.PersistentFlags().IntVar(&flagDebug, "debug", -1, "debug verbosity, 0..2 (overrides MYNTA_DEBUG)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML test profile")
	rootCmd.PersistentFlags().StringVar(&flagEndpoints, "endpoints", "", "comma separated node RPC endpoints")
	rootCmd.PersistentFlags().IntVar(&flagNodeCount, "node-count", 0, "cluster size for dry runs")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "drive an in-process simulated cluster")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "address to serve prometheus metrics on, e.g. :9090")
	rootCmd.PersistentFlags().StringVar(&flagOTELEndpoint, "otel-endpoint", "", "OTLP gRPC endpoint for trace export")
	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "seed for reproducible chaos draws, 0 for random")

	chaosCmd := &cobra.Command{
		Use:   "masternode-chaos",
		Short: "Weighted random fault injection against a funded cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run("masternode-chaos", 10*time.Minute, chaos.MasternodeChaos)
		},
	}
	soakCmd := &cobra.Command{
		Use:   "consensus-soak",
		Short: "Long-running steady traffic with periodic fault probes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run("consensus-soak", 30*time.Minute, soak.ConsensusSoak)
		},
	}
	for _, cmd := range []*cobra.Command{chaosCmd, soakCmd} {
		cmd.Flags().IntVar(&flagDurationMin, "duration", 0, "run duration in minutes (overrides DURATION_MINUTES)")
		cmd.SilenceUsage = true
		rootCmd.AddCommand(cmd)
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("runner failed: %v", err)
	}
	os.Exit(exitCode)
}

type profileFunc func(context.Context, *clients.ClientSets, *types.ExperimentDetails, *metrics.Aggregator) *result.RunResult

func run(name string, defaultDuration time.Duration, profile profileFunc) error {
	experimentsDetails := types.ExperimentDetails{}
	environment.GetENV(&experimentsDetails, name)
	// each profile carries its own default run length
	if os.Getenv("DURATION_MINUTES") == "" {
		experimentsDetails.Duration = defaultDuration
	}
	if flagConfig != "" {
		if err := environment.LoadProfile(&experimentsDetails, flagConfig); err != nil {
			return err
		}
	}
	applyFlags(&experimentsDetails)
	log.SetDebugLevel(experimentsDetails.DebugLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if experimentsDetails.OTELEndpoint != "" {
		shutdown, err := telemetry.InitOTelSDK(ctx, experimentsDetails.OTELEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Errorf("error during otel shutdown: %v", err)
			}
		}()
	}

	clientSets := clients.ClientSets{}
	if err := clientSets.GenerateClientSets(&experimentsDetails); err != nil {
		return err
	}

	m := metrics.New()
	if experimentsDetails.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		go func() {
			log.Infof("[Info]: serving metrics on %s/metrics", experimentsDetails.MetricsAddr)
			if err := http.ListenAndServe(experimentsDetails.MetricsAddr, mux); err != nil {
				log.Errorf("metrics server stopped: %v", err)
			}
		}()
	}

	runResult := profile(ctx, &clientSets, &experimentsDetails, m)
	os.Stdout.WriteString(runResult.Report())
	exitCode = runResult.ExitCode(experimentsDetails.CriticalPatterns)
	return nil
}

// applyFlags lets command-line flags win over env and profile file
func applyFlags(experimentsDetails *types.ExperimentDetails) {
	if flagDebug >= 0 {
		experimentsDetails.DebugLevel = flagDebug
	}
	if flagEndpoints != "" {
		experimentsDetails.Endpoints = strings.Split(flagEndpoints, ",")
		experimentsDetails.NodeCount = len(experimentsDetails.Endpoints)
	}
	if flagNodeCount > 0 {
		experimentsDetails.NodeCount = flagNodeCount
	}
	if flagDryRun {
		experimentsDetails.DryRun = true
	}
	if flagMetricsAddr != "" {
		experimentsDetails.MetricsAddr = flagMetricsAddr
	}
	if flagOTELEndpoint != "" {
		experimentsDetails.OTELEndpoint = flagOTELEndpoint
	}
	if flagSeed != 0 {
		experimentsDetails.Seed = flagSeed
	}
	if flagDurationMin > 0 {
		experimentsDetails.Duration = time.Duration(flagDurationMin) * time.Minute
	}
}

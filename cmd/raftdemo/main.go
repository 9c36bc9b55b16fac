package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	rlog "github.com/quorumkit/raft/pkg/log"
	"github.com/quorumkit/raft/pkg/metrics"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "raftdemo",
	Short: "Run an in-process Raft cluster for observation and manual testing",
	Long: `raftdemo boots a handful of Raft engines in a single process, wires
them together with an in-memory message bus, and drives their clocks off
wall time. It exists to exercise the raft package end to end: watch
elections happen, entries replicate, and the commit index advance, all from
one terminal.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	rlog.Init(rlog.Config{
		Level:      rlog.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the demo cluster and keep it running until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := loadClusterConfig(configPath)
		if err != nil {
			return err
		}

		c, err := newCluster(cfg)
		if err != nil {
			return fmt.Errorf("build cluster: %w", err)
		}
		defer c.close()

		now := time.Now()
		if err := c.initialize(now); err != nil {
			return fmt.Errorf("initialize cluster: %w", err)
		}

		go func() {
			http.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()
		fmt.Printf("Metrics endpoint: http://%s/metrics\n", cfg.MetricsAddr)
		fmt.Printf("Driving %d nodes; tick interval %v, propose interval %v\n",
			len(cfg.NodeIDs), cfg.tickInterval(), cfg.proposeInterval())
		fmt.Println("Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		ticker := time.NewTicker(cfg.tickInterval())
		defer ticker.Stop()
		proposeTicker := time.NewTicker(cfg.proposeInterval())
		defer proposeTicker.Stop()

		for {
			select {
			case <-sigCh:
				fmt.Println("\nShutting down...")
				return nil
			case t := <-ticker.C:
				c.step(t)
			case <-proposeTicker.C:
				c.proposeSample()
			}
		}
	},
}

func init() {
	runCmd.Flags().String("config", "", "Path to a cluster topology YAML file (defaults to a 3-node in-memory cluster)")
}

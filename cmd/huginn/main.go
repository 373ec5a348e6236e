// Package main provides the Huginn CLI entry point.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orneryd/huginn/pkg/auth"
	"github.com/orneryd/huginn/pkg/behavior"
	"github.com/orneryd/huginn/pkg/config"
	"github.com/orneryd/huginn/pkg/huginn"
	"github.com/orneryd/huginn/pkg/scene"
	"github.com/orneryd/huginn/pkg/server"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "huginn",
		Short: "Huginn - Scene observation and behaviour analysis engine",
		Long: `Huginn watches a 3D scene as a typed property graph and learns
behaviour profiles from observation streams.

Features:
  • Scene graph with containment, proximity, and occlusion edges
  • Field-of-view and line-of-sight queries
  • Behaviour pattern detection with learned type weights
  • Trend and co-occurrence insights
  • Optional BadgerDB snapshot persistence`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Huginn v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Huginn HTTP server",
		Long:  "Start the HTTP API with the background analysis loop running",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "YAML config file (overridden by HUGINN_* env vars)")
	serveCmd.Flags().Int("http-port", 0, "HTTP API port (overrides config)")
	serveCmd.Flags().String("data-dir", "", "Snapshot directory (enables persistence)")
	serveCmd.Flags().Bool("no-auth", false, "Disable authentication")
	rootCmd.AddCommand(serveCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted observation session and print the results",
		Long:  "Feed a synthetic scene and observation stream through the engine, then print the learned profile and scene statistics. Useful for smoke-testing a build.",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().Int("observations", 60, "Number of observations to generate")
	simulateCmd.Flags().Int64("seed", 0, "Random seed (0 picks one from the clock)")
	rootCmd.AddCommand(simulateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	httpPort, _ := cmd.Flags().GetInt("http-port")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	noAuth, _ := cmd.Flags().GetBool("no-auth")

	cfg := config.LoadFromEnvOrFile(configPath)
	if httpPort != 0 {
		cfg.Server.HTTPPort = httpPort
	}
	if dataDir != "" {
		cfg.Storage.Enabled = true
		cfg.Storage.DataDir = dataDir
	}
	if noAuth {
		cfg.Auth.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("Starting Huginn v%s\n", version)
	fmt.Printf("   %s\n", cfg)

	if cfg.Storage.Enabled {
		if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	analyzer, err := huginn.Open(cfg)
	if err != nil {
		return fmt.Errorf("opening analyzer: %w", err)
	}
	defer analyzer.Close()

	var authenticator *auth.Authenticator
	if cfg.Auth.Enabled {
		authenticator = auth.NewAuthenticator(auth.Config{
			MinPasswordLength: cfg.Auth.MinPasswordLength,
			SessionTTL:        cfg.Auth.SessionTTL,
		})
		if _, err := authenticator.CreateUser(cfg.Auth.InitialUsername, cfg.Auth.InitialPassword); err != nil {
			return fmt.Errorf("creating initial user: %w", err)
		}
		fmt.Printf("   Authentication enabled (user %s)\n", cfg.Auth.InitialUsername)
	} else {
		fmt.Println("   Authentication disabled")
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Address = cfg.Server.HTTPAddress
	serverConfig.Port = cfg.Server.HTTPPort
	serverConfig.LogRequests = cfg.Server.LogRequests

	httpServer, err := server.New(analyzer, authenticator, serverConfig)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	fmt.Printf("   HTTP API: http://%s\n", httpServer.Addr())
	fmt.Println("Ready. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Stop(ctx); err != nil {
		return fmt.Errorf("stopping server: %w", err)
	}
	return nil
}

// runSimulate drives a short synthetic session: a handful of entities
// wander a small arena while an aggressive actor generates combat
// observations.
func runSimulate(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("observations")
	seed, _ := cmd.Flags().GetInt64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	analyzer, err := huginn.Open(nil)
	if err != nil {
		return err
	}
	defer analyzer.Close()

	g := analyzer.Graph()
	entities := []scene.NodeID{"hunter", "prey", "bystander"}
	for _, id := range entities {
		if _, err := g.CreateNode(id, scene.NodeEntity, string(id)); err != nil {
			return err
		}
		if err := g.AddChild(scene.RootNodeID, id); err != nil {
			return err
		}
	}

	tr := analyzer.Tracker()
	tr.StartAnalysis("hunter")

	actions := []struct {
		category string
		action   string
	}{
		{"combat", "attack"},
		{"movement", "rush"},
		{"combat", "flank"},
		{"movement", "position"},
		{"movement", "explore"},
	}

	for i := 0; i < count; i++ {
		for _, id := range entities {
			if err := g.UpdatePosition(id,
				rng.Float64()*40-20, 0, rng.Float64()*40-20); err != nil {
				return err
			}
		}

		// Weighted toward aggression so the session converges.
		pick := actions[rng.Intn(3)]
		if rng.Intn(4) == 0 {
			pick = actions[3+rng.Intn(2)]
		}
		if err := tr.RecordObservation(pick.category, pick.action, 0.5+rng.Float64()*0.5); err != nil {
			return err
		}
	}

	tr.UpdateAnalysis()

	profile, err := tr.Profile("hunter")
	if err != nil {
		return err
	}
	fmt.Printf("Seed: %d\n\n", seed)
	fmt.Println(profile.Summary())

	for _, in := range tr.Insights("hunter") {
		fmt.Printf("Insight: %s (%.0f%%) - %s\n", in.Name, in.Confidence*100, in.Description)
	}

	dominant, err := tr.DominantType("hunter")
	if err == nil && dominant != behavior.TypeBalanced {
		fmt.Printf("Dominant style: %s\n", dominant)
	}

	stats := g.Stats()
	fmt.Printf("\nScene: %d nodes, %d relationships\n", stats.TotalNodes, stats.TotalRelationships)
	return nil
}

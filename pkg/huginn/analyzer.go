// Package huginn ties the scene graph, behaviour tracker, and snapshot
// store together behind one handle.
//
// An Analyzer owns a scene.Graph and a behavior.Tracker, runs the
// periodic analysis loop in the background, and (when persistence is
// enabled) restores state on Open and snapshots it on Close.
//
// Example Usage:
//
//	analyzer, err := huginn.Open(config.LoadFromEnv())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer analyzer.Close()
//
//	g := analyzer.Graph()
//	g.CreateNode("player", scene.NodeEntity, "Player")
//	g.UpdatePosition("player", 10, 0, 5)
//
//	tr := analyzer.Tracker()
//	tr.StartAnalysis("player")
//	tr.RecordObservation("combat", "attack", 0.8)
package huginn

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/orneryd/huginn/pkg/behavior"
	"github.com/orneryd/huginn/pkg/config"
	"github.com/orneryd/huginn/pkg/scene"
	"github.com/orneryd/huginn/pkg/storage"
)

// Analyzer is the top-level handle over the scene graph and behaviour
// tracker.
//
// Safe for concurrent use; the graph and tracker carry their own locks.
type Analyzer struct {
	mu     sync.Mutex
	closed bool

	config  *config.Config
	graph   *scene.Graph
	tracker *behavior.Tracker
	store   *storage.Store

	stopCh chan struct{}
	bgWg   sync.WaitGroup
}

// Open creates an analyzer from the given configuration. A nil config
// uses defaults. When persistence is enabled the previous snapshot is
// loaded before the analysis loop starts.
func Open(cfg *config.Config) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &Analyzer{
		config: cfg,
		graph: scene.NewGraphWithConfig(scene.GraphConfig{
			ProximityRadius: cfg.Graph.ProximityRadius,
			VisibilityRange: cfg.Graph.VisibilityRange,
			FieldOfViewDeg:  cfg.Graph.FieldOfViewDeg,
		}),
		tracker: behavior.NewTracker(behavior.Config{
			LearningRate:        cfg.Behavior.LearningRate,
			ConfidenceThreshold: cfg.Behavior.ConfidenceThreshold,
			HistoryLimit:        cfg.Behavior.HistoryLimit,
			TrendWindow:         cfg.Behavior.TrendWindow,
		}),
		stopCh: make(chan struct{}),
	}

	if cfg.Storage.Enabled {
		store, err := storage.NewStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = store

		if err := a.restore(); err != nil {
			store.Close()
			return nil, err
		}
		log.Printf("huginn: persistent snapshots at %s", cfg.Storage.DataDir)
	}

	a.bgWg.Add(1)
	go a.analysisLoop(cfg.Behavior.AnalysisInterval)

	return a, nil
}

// analysisLoop drives periodic behaviour analysis until Close.
func (a *Analyzer) analysisLoop(interval time.Duration) {
	defer a.bgWg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.tracker.UpdateAnalysis()
		case <-a.stopCh:
			return
		}
	}
}

// restore loads the stored snapshot into the graph and tracker.
func (a *Analyzer) restore() error {
	nodes, relationships, err := a.store.LoadScene()
	if err != nil {
		return err
	}
	if len(nodes) > 0 {
		a.graph.Restore(nodes, relationships)
	}

	profiles, insights, err := a.store.LoadProfiles()
	if err != nil {
		return err
	}
	if len(profiles) > 0 || len(insights) > 0 {
		a.tracker.Restore(profiles, insights)
	}
	return nil
}

// Snapshot persists the current graph and tracker state. No-op without
// persistence.
func (a *Analyzer) Snapshot() error {
	if a.store == nil {
		return nil
	}
	if err := a.store.SaveScene(a.graph.AllNodes(), a.graph.AllRelationships()); err != nil {
		return fmt.Errorf("snapshot scene: %w", err)
	}
	if err := a.store.SaveProfiles(a.tracker.Profiles(), a.tracker.AllInsights()); err != nil {
		return fmt.Errorf("snapshot profiles: %w", err)
	}
	return nil
}

// Graph returns the scene graph.
func (a *Analyzer) Graph() *scene.Graph {
	return a.graph
}

// Tracker returns the behaviour tracker.
func (a *Analyzer) Tracker() *behavior.Tracker {
	return a.tracker
}

// Config returns the configuration the analyzer was opened with.
func (a *Analyzer) Config() *config.Config {
	return a.config
}

// Persistent reports whether snapshots are enabled.
func (a *Analyzer) Persistent() bool {
	return a.store != nil
}

// Close stops the analysis loop, writes a final snapshot when persistence
// is enabled, and releases the store. Close is idempotent.
func (a *Analyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	close(a.stopCh)
	a.bgWg.Wait()

	var errs []error
	if a.store != nil {
		if err := a.Snapshot(); err != nil {
			errs = append(errs, err)
		}
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

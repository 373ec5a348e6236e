package behavior

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracker(t *testing.T) {
	t.Run("installs default patterns", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		patterns := tr.Patterns()
		assert.Len(t, patterns, 8)

		for _, id := range []string{
			"aggressive", "defensive", "tactical", "exploratory",
			"resource_focused", "social", "completionist", "reactive",
		} {
			_, err := tr.Pattern(id)
			assert.NoError(t, err, "default pattern %s should exist", id)
		}
	})

	t.Run("zero config falls back to defaults", func(t *testing.T) {
		tr := NewTracker(Config{})
		cfg := tr.Config()
		assert.Equal(t, 0.2, cfg.LearningRate)
		assert.Equal(t, 0.65, cfg.ConfidenceThreshold)
		assert.Equal(t, 1000, cfg.HistoryLimit)
		assert.Equal(t, 50, cfg.TrendWindow)
	})
}

func TestNewProfile(t *testing.T) {
	p := NewProfile("tester")

	t.Run("weights sum to one", func(t *testing.T) {
		total := 0.0
		for _, w := range p.TypeWeights {
			total += w
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	})

	t.Run("balanced gets the largest prior", func(t *testing.T) {
		assert.InDelta(t, 0.2, p.TypeWeights[TypeBalanced], 1e-9)
		assert.InDelta(t, 0.1, p.TypeWeights[TypeAggressive], 1e-9)
	})

	t.Run("starts balanced", func(t *testing.T) {
		assert.Equal(t, TypeBalanced, p.DominantType)
	})
}

func TestRecordObservation(t *testing.T) {
	t.Run("requires active analysis", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		err := tr.RecordObservation("combat", "attack", 0.5)
		assert.ErrorIs(t, err, ErrNotAnalyzing)
	})

	t.Run("updates action counts and metrics", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("p1")

		require.NoError(t, tr.RecordObservation("combat", "attack", 1.0))
		require.NoError(t, tr.RecordObservation("combat", "attack", 1.0))

		p, err := tr.Profile("p1")
		require.NoError(t, err)
		assert.Equal(t, 2, p.ActionCounts["combat:attack"])

		// EMA from 0 with rate 0.2: 0.2 then 0.36.
		assert.InDelta(t, 0.36, p.CategoryMetrics["combat"], 1e-9)
	})

	t.Run("clamps observation values", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("p1")
		require.NoError(t, tr.RecordObservation("resource", "collect", 5.0))

		history := tr.History("p1")
		require.Len(t, history, 1)
		assert.Equal(t, 1.0, history[0].Value)
	})

	t.Run("weights stay normalized after nudges", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("p1")
		for i := 0; i < 20; i++ {
			require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))
		}

		p, err := tr.Profile("p1")
		require.NoError(t, err)
		total := 0.0
		for _, w := range p.TypeWeights {
			total += w
			assert.GreaterOrEqual(t, w, 0.0)
			assert.LessOrEqual(t, w, 1.0)
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	})

	t.Run("history respects the cap", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HistoryLimit = 5
		tr := NewTracker(cfg)
		tr.StartAnalysis("p1")
		for i := 0; i < 8; i++ {
			require.NoError(t, tr.RecordObservation("movement", "explore", 0.5))
		}
		assert.Len(t, tr.History("p1"), 5)
	})

	t.Run("history is scoped per subject", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("fighter")
		for i := 0; i < 3; i++ {
			require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))
		}
		tr.StartAnalysis("scout")
		require.NoError(t, tr.RecordObservation("movement", "explore", 0.5))

		assert.Len(t, tr.History("fighter"), 3)
		require.Len(t, tr.History("scout"), 1)
		assert.Equal(t, "movement:explore", tr.History("scout")[0].Key())
	})
}

func TestPatternDetection(t *testing.T) {
	t.Run("partial match yields half ratio", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("p1")
		require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))

		conf, err := tr.PatternConfidence("p1", "aggressive")
		require.NoError(t, err)

		p, err := tr.Profile("p1")
		require.NoError(t, err)
		want := (0.5 + p.TypeWeights[TypeAggressive]) / 2
		assert.InDelta(t, want, conf, 1e-9)
		assert.Less(t, conf, 0.65)
		assert.False(t, p.HasDetectedPattern("aggressive"))
	})

	t.Run("full match crosses the threshold", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())

		var detected []string
		tr.SetEvents(Events{
			PatternDetected: func(profileID string, pattern Pattern, confidence float64) {
				detected = append(detected, pattern.ID)
				assert.Equal(t, "p1", profileID)
				assert.GreaterOrEqual(t, confidence, 0.65)
			},
		})

		tr.StartAnalysis("p1")
		require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))
		require.NoError(t, tr.RecordObservation("movement", "rush", 0.6))

		p, err := tr.Profile("p1")
		require.NoError(t, err)
		assert.True(t, p.HasDetectedPattern("aggressive"))
		assert.Contains(t, detected, "aggressive")
	})

	t.Run("detection never reverts", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("p1")
		require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))
		require.NoError(t, tr.RecordObservation("movement", "rush", 0.6))

		// Flood with unrelated observations to dilute the type weight.
		for i := 0; i < 50; i++ {
			require.NoError(t, tr.RecordObservation("social", "communicate", 0.5))
			require.NoError(t, tr.RecordObservation("social", "cooperate", 0.5))
		}

		p, err := tr.Profile("p1")
		require.NoError(t, err)
		assert.True(t, p.HasDetectedPattern("aggressive"))

		conf := p.DetectedPatterns["aggressive"]
		assert.Less(t, conf, 0.65, "stored confidence keeps tracking even below threshold")
	})

	t.Run("unknown ids return sentinel errors", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("p1")

		_, err := tr.PatternConfidence("ghost", "aggressive")
		assert.ErrorIs(t, err, ErrProfileNotFound)

		_, err = tr.PatternConfidence("p1", "ghost")
		assert.ErrorIs(t, err, ErrPatternNotFound)
	})
}

func TestDominantType(t *testing.T) {
	t.Run("promoted above threshold", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("p1")
		for i := 0; i < 10; i++ {
			require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))
			require.NoError(t, tr.RecordObservation("movement", "rush", 0.7))
		}
		tr.UpdateAnalysis()

		dom, err := tr.DominantType("p1")
		require.NoError(t, err)
		assert.Equal(t, TypeAggressive, dom)
	})

	t.Run("stays balanced without a clear winner", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("p1")
		tr.UpdateAnalysis()

		dom, err := tr.DominantType("p1")
		require.NoError(t, err)
		assert.Equal(t, TypeBalanced, dom)
	})
}

func TestInsights(t *testing.T) {
	t.Run("pattern pair produces strategic aggressor", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("p1")

		// Detect aggressive and tactical, then keep reinforcing both so
		// the stored confidences climb well past the reporting threshold.
		for i := 0; i < 2; i++ {
			require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))
			require.NoError(t, tr.RecordObservation("movement", "rush", 0.7))
			require.NoError(t, tr.RecordObservation("combat", "flank", 0.8))
			require.NoError(t, tr.RecordObservation("movement", "position", 0.7))
		}

		p, err := tr.Profile("p1")
		require.NoError(t, err)
		require.True(t, p.HasDetectedPattern("aggressive"))
		require.True(t, p.HasDetectedPattern("tactical"))

		tr.UpdateAnalysis()

		insights := tr.Insights("p1")
		var found *Insight
		for _, in := range insights {
			if in.Name == "Strategic Aggressor" {
				found = in
			}
		}
		require.NotNil(t, found)

		want := (p.DetectedPatterns["aggressive"] + p.DetectedPatterns["tactical"]) / 2
		require.GreaterOrEqual(t, want, 0.65)
		assert.InDelta(t, want, found.Confidence, 1e-9)
		assert.True(t, found.RelevantFor("p1"))
	})

	t.Run("low confidence insights are stored but not reported", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("p1")

		// A single pass detects both patterns, but the mean of the stored
		// confidences stays below the 0.65 threshold.
		require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))
		require.NoError(t, tr.RecordObservation("movement", "rush", 0.7))
		require.NoError(t, tr.RecordObservation("combat", "flank", 0.8))
		require.NoError(t, tr.RecordObservation("movement", "position", 0.7))

		tr.UpdateAnalysis()

		var stored *Insight
		for _, in := range tr.AllInsights() {
			if in.Name == "Strategic Aggressor" {
				stored = in
			}
		}
		require.NotNil(t, stored)
		assert.Less(t, stored.Confidence, 0.65)

		for _, in := range tr.Insights("p1") {
			assert.NotEqual(t, "Strategic Aggressor", in.Name)
		}
	})

	t.Run("trends stay with the subject who acted", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("fighter")
		for i := 0; i < 10; i++ {
			require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))
		}
		tr.StartAnalysis("bystander")

		tr.UpdateAnalysis()

		assert.Empty(t, tr.Insights("bystander"))

		var trend *Insight
		for _, in := range tr.Insights("fighter") {
			if in.Name == "Combat Aggression Trend" {
				trend = in
			}
		}
		require.NotNil(t, trend)
	})

	t.Run("combat aggression trend", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())

		var generated []Insight
		tr.SetEvents(Events{
			InsightGenerated: func(in Insight) { generated = append(generated, in) },
		})

		tr.StartAnalysis("p1")
		for i := 0; i < 9; i++ {
			require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))
		}
		require.NoError(t, tr.RecordObservation("combat", "block", 0.8))

		tr.UpdateAnalysis()

		var trend *Insight
		for _, in := range tr.Insights("p1") {
			if in.Name == "Combat Aggression Trend" {
				trend = in
			}
		}
		require.NotNil(t, trend, "9 of 10 offensive combat actions should trigger the trend")
		assert.InDelta(t, 0.9, trend.Confidence, 1e-9)
		assert.NotEmpty(t, generated)
	})

	t.Run("trend needs enough history", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("p1")
		for i := 0; i < 5; i++ {
			require.NoError(t, tr.RecordObservation("combat", "attack", 0.9))
		}
		tr.UpdateAnalysis()

		for _, in := range tr.Insights("p1") {
			assert.NotEqual(t, "Combat Aggression Trend", in.Name)
		}
	})

	t.Run("exploratory movement trend", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("p1")
		for i := 0; i < 12; i++ {
			require.NoError(t, tr.RecordObservation("movement", "explore", 0.6))
		}
		for i := 0; i < 4; i++ {
			require.NoError(t, tr.RecordObservation("movement", "retreat", 0.6))
		}
		tr.UpdateAnalysis()

		var trend *Insight
		for _, in := range tr.Insights("p1") {
			if in.Name == "Exploratory Movement Trend" {
				trend = in
			}
		}
		require.NotNil(t, trend)
		assert.InDelta(t, 12.0/16.0, trend.Confidence, 1e-9)
	})

	t.Run("efficient resource trend uses mean value", func(t *testing.T) {
		tr := NewTracker(DefaultConfig())
		tr.StartAnalysis("p1")
		for i := 0; i < 10; i++ {
			require.NoError(t, tr.RecordObservation("resource", "collect", 0.8))
		}
		tr.UpdateAnalysis()

		var trend *Insight
		for _, in := range tr.Insights("p1") {
			if in.Name == "Efficient Resource Trend" {
				trend = in
			}
		}
		require.NotNil(t, trend)
		assert.InDelta(t, 0.8, trend.Confidence, 1e-9)
	})
}

func TestProfileSummary(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.StartAnalysis("p1")
	require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))
	require.NoError(t, tr.RecordObservation("movement", "rush", 0.7))
	tr.UpdateAnalysis()

	p, err := tr.Profile("p1")
	require.NoError(t, err)

	summary := p.Summary()
	assert.Contains(t, summary, "Profile: p1")
	assert.Contains(t, summary, "Dominant Type:")
	assert.Contains(t, summary, "Detected Patterns:")
}

func TestLifecycleEvents(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	var started, stopped, updated int
	var observed []Observation
	tr.SetEvents(Events{
		AnalysisStarted:     func(profileID string) { started++; assert.Equal(t, "p1", profileID) },
		AnalysisStopped:     func() { stopped++ },
		ObservationRecorded: func(profileID string, obs Observation) { observed = append(observed, obs) },
		AnalysisUpdated:     func() { updated++ },
	})

	tr.StartAnalysis("p1")
	require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))
	tr.UpdateAnalysis()
	tr.StopAnalysis()

	assert.Equal(t, 1, started)
	assert.Equal(t, 1, stopped)
	assert.Equal(t, 1, updated)
	require.Len(t, observed, 1)
	assert.Equal(t, "combat:attack", observed[0].Key())
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.StartAnalysis("p1")
	require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))

	tr.Reset()

	assert.False(t, tr.Analyzing())
	assert.Empty(t, tr.Profiles())
	assert.Empty(t, tr.History("p1"))
	assert.Len(t, tr.Patterns(), 8, "registry survives reset")

	err := tr.RecordObservation("combat", "attack", 0.8)
	assert.ErrorIs(t, err, ErrNotAnalyzing)
}

func TestTrackerRestore(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.StartAnalysis("p1")
	require.NoError(t, tr.RecordObservation("combat", "attack", 0.8))
	require.NoError(t, tr.RecordObservation("movement", "rush", 0.7))
	tr.UpdateAnalysis()

	profiles := tr.Profiles()
	insights := tr.AllInsights()

	fresh := NewTracker(DefaultConfig())
	fresh.Restore(profiles, insights)

	p, err := fresh.Profile("p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.ActionCounts["combat:attack"])
	assert.True(t, p.HasDetectedPattern("aggressive"))
	assert.Len(t, fresh.AllInsights(), len(insights))
}

func TestSetConfidenceThreshold(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.SetConfidenceThreshold(1.5)
	assert.Equal(t, 1.0, tr.Config().ConfidenceThreshold)

	tr.SetLearningRate(2.0)
	assert.Equal(t, 1.0, tr.Config().LearningRate)

	tr.SetLearningRate(-1)
	assert.Equal(t, 0.2, tr.Config().LearningRate)
}

func TestObservationKey(t *testing.T) {
	obs := Observation{Category: "combat", Action: "attack"}
	assert.Equal(t, "combat:attack", obs.Key())
	assert.False(t, math.IsNaN(obs.Value))
}

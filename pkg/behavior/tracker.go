package behavior

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Config holds the tracker's tuning parameters.
type Config struct {
	// LearningRate is the EMA factor applied to category metrics and the
	// nudge factor applied to type weights on pattern matches.
	LearningRate float64

	// ConfidenceThreshold is the minimum confidence for a pattern to be
	// marked detected.
	ConfidenceThreshold float64

	// HistoryLimit caps each subject's retained observation history.
	HistoryLimit int

	// TrendWindow is how many recent observations trend analysis examines.
	TrendWindow int
}

// DefaultConfig returns the standard tracker tuning.
func DefaultConfig() Config {
	return Config{
		LearningRate:        0.2,
		ConfidenceThreshold: 0.65,
		HistoryLimit:        1000,
		TrendWindow:         50,
	}
}

// Events holds optional callbacks the tracker invokes after state changes.
// Callbacks run outside the tracker lock, so they may call back into the
// tracker. All fields may be nil.
type Events struct {
	// AnalysisStarted fires when StartAnalysis activates a profile.
	AnalysisStarted func(profileID string)

	// AnalysisStopped fires when StopAnalysis ends a session.
	AnalysisStopped func()

	// ObservationRecorded fires for every accepted observation.
	ObservationRecorded func(profileID string, obs Observation)

	// PatternDetected fires when a pattern first crosses the confidence
	// threshold for a profile.
	PatternDetected func(profileID string, pattern Pattern, confidence float64)

	// AnalysisUpdated fires after each UpdateAnalysis pass.
	AnalysisUpdated func()

	// InsightGenerated fires when UpdateAnalysis produces a new insight.
	InsightGenerated func(insight Insight)
}

// Tracker observes behaviour events and maintains profiles, detected
// patterns, and synthesised insights.
//
// A single RWMutex guards all state. Accessors return deep copies.
type Tracker struct {
	mu sync.RWMutex

	cfg    Config
	events Events

	analyzing bool
	activeID  string

	profiles map[string]*Profile
	patterns map[string]*Pattern
	insights map[string]*Insight

	// history holds each subject's own observations, bounded per subject.
	history map[string][]Observation
}

// NewTracker creates a tracker with the default pattern registry installed.
// Non-positive config fields fall back to defaults.
func NewTracker(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = def.TrendWindow
	}

	t := &Tracker{
		cfg:      cfg,
		profiles: make(map[string]*Profile),
		patterns: make(map[string]*Pattern),
		insights: make(map[string]*Insight),
		history:  make(map[string][]Observation),
	}
	registerDefaultPatterns(t)
	return t
}

// SetEvents installs the callback set. Replaces any previous set.
func (t *Tracker) SetEvents(ev Events) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = ev
}

// Config returns the current tuning parameters.
func (t *Tracker) Config() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// SetLearningRate updates the learning rate, clamped to (0, 1].
func (t *Tracker) SetLearningRate(rate float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rate <= 0 {
		rate = DefaultConfig().LearningRate
	}
	if rate > 1 {
		rate = 1
	}
	t.cfg.LearningRate = rate
}

// SetConfidenceThreshold updates the detection threshold, clamped to [0, 1].
func (t *Tracker) SetConfidenceThreshold(threshold float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg.ConfidenceThreshold = clamp01(threshold)
}

// StartAnalysis begins observing a subject. The profile is created if it
// does not exist. Subsequent observations are attributed to this subject
// until StopAnalysis or another StartAnalysis call.
func (t *Tracker) StartAnalysis(profileID string) {
	t.mu.Lock()
	if _, ok := t.profiles[profileID]; !ok {
		t.profiles[profileID] = NewProfile(profileID)
		log.Printf("behavior: created profile %s", profileID)
	}
	t.analyzing = true
	t.activeID = profileID
	ev := t.events
	t.mu.Unlock()

	if ev.AnalysisStarted != nil {
		ev.AnalysisStarted(profileID)
	}
}

// StopAnalysis stops attributing observations. Profiles and history are
// retained.
func (t *Tracker) StopAnalysis() {
	t.mu.Lock()
	t.analyzing = false
	t.activeID = ""
	ev := t.events
	t.mu.Unlock()

	if ev.AnalysisStopped != nil {
		ev.AnalysisStopped()
	}
}

// Analyzing reports whether an analysis session is active.
func (t *Tracker) Analyzing() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.analyzing
}

// RecordObservation records one behaviour event against the active
// profile. Value is clamped to [0, 1]. Returns ErrNotAnalyzing when no
// session is active.
func (t *Tracker) RecordObservation(category, action string, value float64) error {
	obs := Observation{
		Category:  category,
		Action:    action,
		Value:     clamp01(value),
		Timestamp: time.Now(),
	}

	t.mu.Lock()
	if !t.analyzing {
		t.mu.Unlock()
		return ErrNotAnalyzing
	}
	profile := t.profiles[t.activeID]

	h := append(t.history[t.activeID], obs)
	if len(h) > t.cfg.HistoryLimit {
		h = h[len(h)-t.cfg.HistoryLimit:]
	}
	t.history[t.activeID] = h

	profile.ActionCounts[obs.Key()]++

	// EMA over observation values, one metric per category.
	current := profile.CategoryMetrics[category]
	profile.CategoryMetrics[category] = current + t.cfg.LearningRate*(obs.Value-current)

	// Matching patterns pull their behaviour type's weight toward 1.
	nudged := false
	for _, pattern := range t.patterns {
		if pattern.AssociatedType == "" || !pattern.Matches(obs) {
			continue
		}
		w := profile.TypeWeights[pattern.AssociatedType]
		profile.TypeWeights[pattern.AssociatedType] = w + t.cfg.LearningRate*(1-w)
		nudged = true
	}
	if nudged {
		profile.NormalizeTypeWeights()
	}

	detections := t.detectPatternsLocked(profile)
	profileID := t.activeID
	ev := t.events
	t.mu.Unlock()

	if ev.ObservationRecorded != nil {
		ev.ObservationRecorded(profileID, obs)
	}
	fireDetections(ev, detections)
	return nil
}

type detection struct {
	profileID  string
	pattern    Pattern
	confidence float64
	fresh      bool
}

// detectPatternsLocked refreshes pattern confidences for a profile and
// returns any newly crossed detections. Caller holds the write lock.
func (t *Tracker) detectPatternsLocked(profile *Profile) []detection {
	var out []detection
	for id, pattern := range t.patterns {
		confidence := patternConfidence(profile, pattern)
		_, already := profile.DetectedPatterns[id]
		if already {
			// Detected patterns keep tracking confidence but never revert.
			profile.DetectedPatterns[id] = confidence
			continue
		}
		if confidence >= t.cfg.ConfidenceThreshold {
			profile.DetectedPatterns[id] = confidence
			out = append(out, detection{
				profileID:  profile.ID,
				pattern:    *copyPattern(pattern),
				confidence: confidence,
				fresh:      true,
			})
		}
	}
	return out
}

func fireDetections(ev Events, detections []detection) {
	if ev.PatternDetected == nil {
		return
	}
	for _, d := range detections {
		if d.fresh {
			ev.PatternDetected(d.profileID, d.pattern, d.confidence)
		}
	}
}

// patternConfidence computes the confidence of one pattern for one
// profile: the fraction of the pattern's actions observed at least once,
// averaged with the profile's weight for the pattern's behaviour type when
// the pattern has one.
func patternConfidence(profile *Profile, pattern *Pattern) float64 {
	total := pattern.actionCount()
	if total == 0 {
		return 0
	}
	matched := 0
	for category, actions := range pattern.CategoryActions {
		for _, action := range actions {
			if profile.ActionCounts[category+":"+action] > 0 {
				matched++
			}
		}
	}
	ratio := float64(matched) / float64(total)
	if pattern.AssociatedType == "" {
		return ratio
	}
	return (ratio + profile.TypeWeights[pattern.AssociatedType]) / 2
}

// PatternConfidence returns the current confidence of a pattern for a
// profile, recomputed from live state.
func (t *Tracker) PatternConfidence(profileID, patternID string) (float64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	profile, ok := t.profiles[profileID]
	if !ok {
		return 0, fmt.Errorf("profile %s: %w", profileID, ErrProfileNotFound)
	}
	pattern, ok := t.patterns[patternID]
	if !ok {
		return 0, fmt.Errorf("pattern %s: %w", patternID, ErrPatternNotFound)
	}
	return patternConfidence(profile, pattern), nil
}

// RegisterPattern adds a pattern to the registry, replacing any pattern
// with the same id.
func (t *Tracker) RegisterPattern(pattern *Pattern) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.patterns[pattern.ID] = copyPattern(pattern)
}

// Pattern returns a copy of a registered pattern.
func (t *Tracker) Pattern(id string) (*Pattern, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pattern, ok := t.patterns[id]
	if !ok {
		return nil, fmt.Errorf("pattern %s: %w", id, ErrPatternNotFound)
	}
	return copyPattern(pattern), nil
}

// Patterns returns copies of every registered pattern.
func (t *Tracker) Patterns() []*Pattern {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Pattern, 0, len(t.patterns))
	for _, p := range t.patterns {
		out = append(out, copyPattern(p))
	}
	return out
}

// Profile returns a copy of a profile.
func (t *Tracker) Profile(id string) (*Profile, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	profile, ok := t.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, ErrProfileNotFound)
	}
	return copyProfile(profile), nil
}

// Profiles returns copies of every profile.
func (t *Tracker) Profiles() []*Profile {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Profile, 0, len(t.profiles))
	for _, p := range t.profiles {
		out = append(out, copyProfile(p))
	}
	return out
}

// DominantType returns a profile's current dominant behaviour type.
func (t *Tracker) DominantType(profileID string) (Type, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	profile, ok := t.profiles[profileID]
	if !ok {
		return "", fmt.Errorf("profile %s: %w", profileID, ErrProfileNotFound)
	}
	return profile.DominantType, nil
}

// History returns a copy of one subject's retained observations, oldest
// first.
func (t *Tracker) History(profileID string) []Observation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Observation(nil), t.history[profileID]...)
}

// UpdateAnalysis recomputes dominant types and synthesises insights for
// every profile. Intended to be driven periodically.
func (t *Tracker) UpdateAnalysis() {
	var generated []Insight

	t.mu.Lock()
	for _, profile := range t.profiles {
		profile.UpdateDominantType()
		generated = append(generated, t.synthesizeInsightsLocked(profile)...)
	}
	ev := t.events
	t.mu.Unlock()

	if ev.InsightGenerated != nil {
		for _, in := range generated {
			ev.InsightGenerated(in)
		}
	}
	if ev.AnalysisUpdated != nil {
		ev.AnalysisUpdated()
	}
}

// Insights returns copies of insights relevant for a profile whose
// confidence meets the threshold.
func (t *Tracker) Insights(profileID string) []*Insight {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*Insight
	for _, in := range t.insights {
		if in.RelevantFor(profileID) && in.Confidence >= t.cfg.ConfidenceThreshold {
			out = append(out, copyInsight(in))
		}
	}
	return out
}

// AllInsights returns copies of every stored insight.
func (t *Tracker) AllInsights() []*Insight {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Insight, 0, len(t.insights))
	for _, in := range t.insights {
		out = append(out, copyInsight(in))
	}
	return out
}

// Reset discards all profiles, insights, and history. The pattern registry
// is kept.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.profiles = make(map[string]*Profile)
	t.insights = make(map[string]*Insight)
	t.history = make(map[string][]Observation)
	t.analyzing = false
	t.activeID = ""
	log.Printf("behavior: tracker reset")
}

// Restore replaces profiles and insights from a snapshot. History is not
// restored. Used by the persistence layer.
func (t *Tracker) Restore(profiles []*Profile, insights []*Insight) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.profiles = make(map[string]*Profile, len(profiles))
	for _, p := range profiles {
		t.profiles[p.ID] = copyProfile(p)
	}
	t.insights = make(map[string]*Insight, len(insights))
	for _, in := range insights {
		t.insights[in.ID] = copyInsight(in)
	}
}

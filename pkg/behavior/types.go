// Package behavior tracks per-subject behaviour profiles and derives
// patterns and insights from observation streams.
//
// Callers feed (category, action, value) observations into a Tracker. The
// tracker maintains, per subject profile:
//   - action histograms keyed "category:action"
//   - per-category metrics updated by exponential moving average
//   - behaviour type weights (aggressive, defensive, tactical, ...) nudged
//     toward 1.0 whenever an observation matches a registered pattern, then
//     renormalised to sum to 1
//   - detected patterns, each with a continuously refreshed confidence
//
// Pattern confidence blends two signals: the fraction of a pattern's
// defining actions that have been observed at least once, and the profile's
// learned weight for the pattern's associated behaviour type. Once a
// pattern's confidence crosses the threshold it is marked detected and is
// never un-detected, even if its confidence later drops. That is pinned
// reference behaviour, not necessarily desirable.
//
// Insights are higher-level claims synthesised from pattern co-occurrence
// ("aggressive + tactical = strategic aggressor") and trend analysis over
// the most recent observations.
//
// ELI12:
//
// Imagine watching a friend play a game and tallying what they do. Every
// "attack" makes the aggressive jar a little fuller, every "retreat" fills
// the cautious jar, and all jars are squeezed so they always total the
// same amount. When one jar clearly overflows the others you can say
// "you're an aggressive player" — and when two jars are full at once you
// learn something extra, like "you attack, but cleverly".
//
// Example Usage:
//
//	tracker := behavior.NewTracker(behavior.DefaultConfig())
//	tracker.StartAnalysis("player-1")
//
//	tracker.RecordObservation("combat", "attack", 0.8)
//	tracker.RecordObservation("movement", "rush", 0.6)
//
//	tracker.UpdateAnalysis()
//	fmt.Println(tracker.DominantType("player-1"))
//	for _, in := range tracker.Insights("player-1") {
//		fmt.Printf("%s (%.0f%%)\n", in.Name, in.Confidence*100)
//	}
package behavior

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Errors returned by tracker operations.
var (
	ErrNotAnalyzing    = errors.New("analysis not running")
	ErrProfileNotFound = errors.New("profile not found")
	ErrPatternNotFound = errors.New("pattern not found")
)

// Type is a fundamental behaviour classification.
type Type string

const (
	TypeAggressive    Type = "AGGRESSIVE"    // offense and direct confrontation
	TypeDefensive     Type = "DEFENSIVE"     // protection and cautious play
	TypeTactical      Type = "TACTICAL"      // positioning and strategic advantage
	TypeExplorer      Type = "EXPLORER"      // discovering environments
	TypeCollector     Type = "COLLECTOR"     // gathering resources and items
	TypeSocial        Type = "SOCIAL"        // interaction and cooperation
	TypeCompletionist Type = "COMPLETIONIST" // finishing objectives and collections
	TypeReactive      Type = "REACTIVE"      // responding rather than initiating
	TypeBalanced      Type = "BALANCED"      // no single dominant tendency
)

// AllTypes lists the closed behaviour type enumeration.
func AllTypes() []Type {
	return []Type{
		TypeAggressive, TypeDefensive, TypeTactical, TypeExplorer,
		TypeCollector, TypeSocial, TypeCompletionist, TypeReactive,
		TypeBalanced,
	}
}

// Observation is a single observed behaviour event. Immutable.
type Observation struct {
	Category  string    `json:"category"`
	Action    string    `json:"action"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the "category:action" histogram key.
func (o Observation) Key() string {
	return o.Category + ":" + o.Action
}

// Pattern is a registered behaviour template: a set of qualifying
// (category, action) pairs plus an optional associated behaviour type.
// Patterns are registry-wide, not per-subject.
type Pattern struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CategoryActions maps category to the qualifying action names.
	CategoryActions map[string][]string `json:"categoryActions"`

	// AssociatedType, when non-empty, is the behaviour type whose weight
	// is nudged on every matching observation.
	AssociatedType Type `json:"associatedType,omitempty"`
}

// NewPattern creates an empty pattern.
func NewPattern(id, name string) *Pattern {
	return &Pattern{
		ID:              id,
		Name:            name,
		CategoryActions: make(map[string][]string),
	}
}

// AddAction registers a qualifying action under a category. Duplicates are
// ignored.
func (p *Pattern) AddAction(category, action string) *Pattern {
	for _, a := range p.CategoryActions[category] {
		if a == action {
			return p
		}
	}
	p.CategoryActions[category] = append(p.CategoryActions[category], action)
	return p
}

// ContainsAction reports whether (category, action) qualifies.
func (p *Pattern) ContainsAction(category, action string) bool {
	for _, a := range p.CategoryActions[category] {
		if a == action {
			return true
		}
	}
	return false
}

// Matches reports whether an observation's (category, action) pair is part
// of this pattern.
func (p *Pattern) Matches(obs Observation) bool {
	return p.ContainsAction(obs.Category, obs.Action)
}

// actionCount returns the total number of (category, action) pairs the
// pattern defines.
func (p *Pattern) actionCount() int {
	n := 0
	for _, actions := range p.CategoryActions {
		n += len(actions)
	}
	return n
}

// Insight is a derived, human-readable claim about one or more subjects.
type Insight struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`

	// ProfileIDs lists the subjects the insight applies to.
	ProfileIDs []string `json:"profileIds"`
}

// NewInsight creates an insight with confidence clamped to [0,1].
func NewInsight(id, name, description string, confidence float64) *Insight {
	return &Insight{
		ID:          id,
		Name:        name,
		Description: description,
		Confidence:  clamp01(confidence),
	}
}

// SetConfidence updates confidence, clamped to [0,1].
func (in *Insight) SetConfidence(c float64) {
	in.Confidence = clamp01(c)
}

// AddProfile marks the insight relevant for a subject.
func (in *Insight) AddProfile(profileID string) {
	for _, id := range in.ProfileIDs {
		if id == profileID {
			return
		}
	}
	in.ProfileIDs = append(in.ProfileIDs, profileID)
}

// RelevantFor reports whether the insight applies to the subject.
func (in *Insight) RelevantFor(profileID string) bool {
	for _, id := range in.ProfileIDs {
		if id == profileID {
			return true
		}
	}
	return false
}

// Profile is the accumulated behaviour state for one observed subject.
//
// Profiles are owned by a Tracker: all mutation happens under the
// tracker's lock and accessors return deep copies. Fields are exported for
// snapshot serialisation.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// ActionCounts is the "category:action" histogram. Monotonically
	// non-decreasing except on profile reset.
	ActionCounts map[string]int `json:"actionCounts"`

	// CategoryMetrics holds the EMA of observation values per category.
	CategoryMetrics map[string]float64 `json:"categoryMetrics"`

	// TypeWeights always sums to 1 (within floating point epsilon) after
	// any update.
	TypeWeights map[Type]float64 `json:"typeWeights"`

	// DetectedPatterns maps pattern id to its latest confidence. Entries
	// are never removed once present.
	DetectedPatterns map[string]float64 `json:"detectedPatterns"`

	DominantType Type `json:"dominantType"`
}

// NewProfile creates a profile with the uniform type-weight prior: 0.1 for
// every type, 0.2 for Balanced.
func NewProfile(id string) *Profile {
	p := &Profile{
		ID:               id,
		Name:             id,
		ActionCounts:     make(map[string]int),
		CategoryMetrics:  make(map[string]float64),
		TypeWeights:      make(map[Type]float64),
		DetectedPatterns: make(map[string]float64),
		DominantType:     TypeBalanced,
	}
	for _, t := range AllTypes() {
		p.TypeWeights[t] = 0.1
	}
	p.TypeWeights[TypeBalanced] = 0.2
	return p
}

// NormalizeTypeWeights rescales the weights to sum to 1.
func (p *Profile) NormalizeTypeWeights() {
	total := 0.0
	for _, w := range p.TypeWeights {
		total += w
	}
	if total <= 0 {
		return
	}
	for t, w := range p.TypeWeights {
		p.TypeWeights[t] = w / total
	}
}

// UpdateDominantType recomputes DominantType as the argmax of the weights,
// promoted from Balanced only when the winning weight exceeds 0.3.
func (p *Profile) UpdateDominantType() {
	best := TypeBalanced
	bestWeight := 0.0
	for t, w := range p.TypeWeights {
		if w > bestWeight {
			bestWeight = w
			best = t
		}
	}
	if bestWeight > 0.3 {
		p.DominantType = best
	} else {
		p.DominantType = TypeBalanced
	}
}

// HasDetectedPattern reports whether the pattern id has ever been detected.
func (p *Profile) HasDetectedPattern(patternID string) bool {
	_, ok := p.DetectedPatterns[patternID]
	return ok
}

// Summary renders a short human-readable report: dominant type, the top
// three type weights, and any detected patterns.
func (p *Profile) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profile: %s\n", p.Name)
	fmt.Fprintf(&b, "Dominant Type: %s\n", p.DominantType)

	type weighted struct {
		t Type
		w float64
	}
	sorted := make([]weighted, 0, len(p.TypeWeights))
	for t, w := range p.TypeWeights {
		sorted = append(sorted, weighted{t, w})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].w != sorted[j].w {
			return sorted[i].w > sorted[j].w
		}
		return sorted[i].t < sorted[j].t
	})

	b.WriteString("Top Behaviors:\n")
	for i := 0; i < 3 && i < len(sorted); i++ {
		fmt.Fprintf(&b, "- %s: %.2f%%\n", sorted[i].t, sorted[i].w*100)
	}

	if len(p.DetectedPatterns) > 0 {
		b.WriteString("Detected Patterns:\n")
		ids := make([]string, 0, len(p.DetectedPatterns))
		for id := range p.DetectedPatterns {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "- %s: %.2f%%\n", id, p.DetectedPatterns[id]*100)
		}
	}
	return b.String()
}

// copyProfile creates a deep copy of a profile.
func copyProfile(p *Profile) *Profile {
	if p == nil {
		return nil
	}
	copied := &Profile{
		ID:               p.ID,
		Name:             p.Name,
		ActionCounts:     make(map[string]int, len(p.ActionCounts)),
		CategoryMetrics:  make(map[string]float64, len(p.CategoryMetrics)),
		TypeWeights:      make(map[Type]float64, len(p.TypeWeights)),
		DetectedPatterns: make(map[string]float64, len(p.DetectedPatterns)),
		DominantType:     p.DominantType,
	}
	for k, v := range p.ActionCounts {
		copied.ActionCounts[k] = v
	}
	for k, v := range p.CategoryMetrics {
		copied.CategoryMetrics[k] = v
	}
	for k, v := range p.TypeWeights {
		copied.TypeWeights[k] = v
	}
	for k, v := range p.DetectedPatterns {
		copied.DetectedPatterns[k] = v
	}
	return copied
}

// copyPattern creates a deep copy of a pattern.
func copyPattern(p *Pattern) *Pattern {
	if p == nil {
		return nil
	}
	copied := &Pattern{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		CategoryActions: make(map[string][]string, len(p.CategoryActions)),
		AssociatedType:  p.AssociatedType,
	}
	for cat, actions := range p.CategoryActions {
		copied.CategoryActions[cat] = append([]string(nil), actions...)
	}
	return copied
}

// copyInsight creates a deep copy of an insight.
func copyInsight(in *Insight) *Insight {
	if in == nil {
		return nil
	}
	copied := *in
	copied.ProfileIDs = append([]string(nil), in.ProfileIDs...)
	return &copied
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

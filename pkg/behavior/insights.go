package behavior

import "fmt"

// Pattern co-occurrence rules. When both patterns are detected for a
// profile, the insight's confidence is the mean of the two pattern
// confidences.
var pairRules = []struct {
	id, name, description string
	patternA, patternB    string
}{
	{
		id:          "strategic_aggressor",
		name:        "Strategic Aggressor",
		description: "Combines aggressive actions with tactical positioning",
		patternA:    "aggressive",
		patternB:    "tactical",
	},
	{
		id:          "defensive_builder",
		name:        "Defensive Builder",
		description: "Protects while accumulating resources",
		patternA:    "defensive",
		patternB:    "resource_focused",
	},
	{
		id:          "thorough_explorer",
		name:        "Thorough Explorer",
		description: "Explores methodically and completes what is found",
		patternA:    "exploratory",
		patternB:    "completionist",
	},
}

// synthesizeInsightsLocked derives insights for one profile from pattern
// co-occurrence and recent observation trends. Returns insights that are
// new or whose confidence changed. Caller holds the write lock.
func (t *Tracker) synthesizeInsightsLocked(profile *Profile) []Insight {
	var generated []Insight

	for _, rule := range pairRules {
		confA, okA := profile.DetectedPatterns[rule.patternA]
		confB, okB := profile.DetectedPatterns[rule.patternB]
		if !okA || !okB {
			continue
		}
		confidence := (confA + confB) / 2
		if in := t.storeInsightLocked(profile.ID, rule.id, rule.name, rule.description, confidence); in != nil {
			generated = append(generated, *in)
		}
	}

	generated = append(generated, t.trendInsightsLocked(profile)...)
	return generated
}

// trendInsightsLocked inspects the subject's most recent observations for
// sustained tendencies. Requires at least 10 observations of that
// subject's history.
func (t *Tracker) trendInsightsLocked(profile *Profile) []Insight {
	window := t.history[profile.ID]
	if len(window) < 10 {
		return nil
	}
	if len(window) > t.cfg.TrendWindow {
		window = window[len(window)-t.cfg.TrendWindow:]
	}

	var generated []Insight

	// Combat aggression: mostly offensive actions within combat events.
	combat, aggressive := 0, 0
	for _, obs := range window {
		if obs.Category != "combat" {
			continue
		}
		combat++
		switch obs.Action {
		case "attack", "rush", "flank":
			aggressive++
		}
	}
	if combat >= 10 {
		ratio := float64(aggressive) / float64(combat)
		if ratio > 0.7 {
			if in := t.storeInsightLocked(profile.ID, "combat_aggression_trend",
				"Combat Aggression Trend",
				"Recent combat behaviour is predominantly offensive",
				ratio); in != nil {
				generated = append(generated, *in)
			}
		}
	}

	// Resource efficiency: high observed values on resource events.
	resourceCount, resourceSum := 0, 0.0
	for _, obs := range window {
		if obs.Category != "resource" {
			continue
		}
		resourceCount++
		resourceSum += obs.Value
	}
	if resourceCount >= 10 {
		mean := resourceSum / float64(resourceCount)
		if mean > 0.7 {
			if in := t.storeInsightLocked(profile.ID, "efficient_resource_trend",
				"Efficient Resource Trend",
				"Recent resource actions are consistently high value",
				mean); in != nil {
				generated = append(generated, *in)
			}
		}
	}

	// Movement style: dominant movement vocabulary over recent events.
	movement, exploratory, tactical := 0, 0, 0
	for _, obs := range window {
		if obs.Category != "movement" {
			continue
		}
		movement++
		switch obs.Action {
		case "explore", "examine":
			exploratory++
		case "position", "flank":
			tactical++
		}
	}
	if movement >= 15 {
		if ratio := float64(exploratory) / float64(movement); ratio > 0.6 {
			if in := t.storeInsightLocked(profile.ID, "exploratory_movement_trend",
				"Exploratory Movement Trend",
				"Recent movement is driven by exploration",
				ratio); in != nil {
				generated = append(generated, *in)
			}
		}
		if ratio := float64(tactical) / float64(movement); ratio > 0.6 {
			if in := t.storeInsightLocked(profile.ID, "tactical_movement_trend",
				"Tactical Movement Trend",
				"Recent movement is driven by positioning",
				ratio); in != nil {
				generated = append(generated, *in)
			}
		}
	}

	return generated
}

// storeInsightLocked creates or refreshes a per-profile insight. Returns
// the stored insight if it is new or its confidence changed, nil
// otherwise. Caller holds the write lock.
func (t *Tracker) storeInsightLocked(profileID, ruleID, name, description string, confidence float64) *Insight {
	id := fmt.Sprintf("%s_%s", ruleID, profileID)
	confidence = clamp01(confidence)

	existing, ok := t.insights[id]
	if ok {
		if existing.Confidence == confidence {
			return nil
		}
		existing.SetConfidence(confidence)
		return copyInsight(existing)
	}

	in := NewInsight(id, name, description, confidence)
	in.AddProfile(profileID)
	t.insights[id] = in
	return copyInsight(in)
}

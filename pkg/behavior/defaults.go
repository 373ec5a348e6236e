package behavior

// registerDefaultPatterns installs the built-in behaviour pattern
// registry. IDs are stable and referenced by the insight rules.
func registerDefaultPatterns(t *Tracker) {
	defaults := []*Pattern{
		withType(NewPattern("aggressive", "Aggressive Behavior").
			AddAction("combat", "attack").
			AddAction("movement", "rush"), TypeAggressive,
			"Direct confrontation and fast engagement"),

		withType(NewPattern("defensive", "Defensive Behavior").
			AddAction("combat", "block").
			AddAction("movement", "retreat"), TypeDefensive,
			"Damage avoidance and cautious withdrawal"),

		withType(NewPattern("tactical", "Tactical Behavior").
			AddAction("combat", "flank").
			AddAction("movement", "position"), TypeTactical,
			"Positioning for strategic advantage"),

		withType(NewPattern("exploratory", "Exploratory Behavior").
			AddAction("movement", "explore").
			AddAction("interaction", "examine"), TypeExplorer,
			"Discovering and inspecting the environment"),

		withType(NewPattern("resource_focused", "Resource Focused Behavior").
			AddAction("resource", "collect").
			AddAction("resource", "optimize"), TypeCollector,
			"Gathering and optimising resources"),

		withType(NewPattern("social", "Social Behavior").
			AddAction("social", "communicate").
			AddAction("social", "cooperate"), TypeSocial,
			"Communication and cooperation with others"),

		withType(NewPattern("completionist", "Completionist Behavior").
			AddAction("objective", "complete").
			AddAction("collection", "collect"), TypeCompletionist,
			"Finishing objectives and filling collections"),

		withType(NewPattern("reactive", "Reactive Behavior").
			AddAction("response", "react").
			AddAction("timing", "delay"), TypeReactive,
			"Responding to events rather than initiating"),
	}

	for _, p := range defaults {
		t.patterns[p.ID] = p
	}
}

func withType(p *Pattern, bt Type, description string) *Pattern {
	p.AssociatedType = bt
	p.Description = description
	return p
}

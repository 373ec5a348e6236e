// Package scene provides an in-memory scene graph for environment analysis.
//
// The graph holds typed nodes (entities, terrain, structures, players, ...)
// and typed relationships between them. Structural containment forms a tree
// (every node has at most one parent; cycles are rejected), while spatial
// relationships (NEAR, BLOCKS) are derived automatically from node positions
// as callers push updates.
//
// Design points:
//   - Caller-owned: construct a Graph with NewGraph and pass it around.
//     There is no package-level singleton.
//   - Single coarse lock: all mutation and queries go through one RWMutex.
//     Update rates for a scene graph are low (tens per second), so the
//     simple locking discipline wins over finer-grained coordination.
//   - Advisory semantics: lookups for unknown ids return ErrNotFound;
//     nothing in this package is fatal to the caller.
//
// Example Usage:
//
//	g := scene.NewGraph()
//
//	player, _ := g.CreateNode("player-1", scene.NodePlayer, "Player One")
//	crate, _ := g.CreateNode("crate-7", scene.NodeItem, "Supply Crate")
//
//	_ = g.AddChild(scene.RootNodeID, player.ID)
//	_ = g.UpdatePosition(crate.ID, 5, 0, 0)
//	_ = g.UpdatePosition(player.ID, 0, 0, 0)
//
//	rels, _ := g.FindRelationships(player.ID, crate.ID)
//	for _, r := range rels {
//		fmt.Printf("%s strength=%.2f\n", r.Type, r.Strength) // NEAR strength=0.50
//	}
package scene

import "errors"

// Common errors returned by graph operations.
//
// The set is deliberately small and closed: callers can branch on the
// contract (not found / cycle / bad id) instead of checking for nil results.
var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid id")
	// ErrCycle is returned by AddChild when the attachment would make a node
	// its own ancestor. The graph is left unchanged.
	ErrCycle = errors.New("attachment would create a cycle")
)

// NodeID is a strongly-typed unique identifier for scene nodes.
type NodeID string

// RelationshipID is a strongly-typed unique identifier for relationships.
//
// Derived relationships use deterministic ids so recomputation updates in
// place instead of duplicating: `contains_{parent}_{child}`,
// `near_{a}_{b}`, `blocks_{blocker}_{target}_from_{viewpoint}`.
type RelationshipID string

// RootNodeID is the id of the root container every Graph is created with.
const RootNodeID NodeID = "scene_root"

// NodeType classifies a scene node.
type NodeType string

// Node type enumeration. The set is closed; callers pick the nearest match
// for objects the upstream detector reports.
const (
	NodeEntity      NodeType = "ENTITY"
	NodeContainer   NodeType = "CONTAINER"
	NodeTerrain     NodeType = "TERRAIN"
	NodeStructure   NodeType = "STRUCTURE"
	NodePlayer      NodeType = "PLAYER"
	NodeNPC         NodeType = "NPC"
	NodeItem        NodeType = "ITEM"
	NodeTrigger     NodeType = "TRIGGER"
	NodeBoundary    NodeType = "BOUNDARY"
	NodeEnvironment NodeType = "ENVIRONMENT"
	NodeLight       NodeType = "LIGHT"
	NodeEffect      NodeType = "EFFECT"
)

// RelationType classifies a relationship between two nodes.
type RelationType string

const (
	RelContains      RelationType = "CONTAINS"
	RelSupports      RelationType = "SUPPORTS"
	RelBlocks        RelationType = "BLOCKS"
	RelConnects      RelationType = "CONNECTS"
	RelInteractsWith RelationType = "INTERACTS_WITH"
	RelDependsOn     RelationType = "DEPENDS_ON"
	RelControls      RelationType = "CONTROLS"
	RelThreatens     RelationType = "THREATENS"
	RelProtects      RelationType = "PROTECTS"
	// RelNear is a bidirectional proximity edge maintained by the spatial
	// engine. Strength is 1 - distance/ProximityRadius at the time of the
	// last position update; the edge is not removed when nodes move apart.
	RelNear         RelationType = "NEAR"
	RelFacing       RelationType = "FACING"
	RelMovingToward RelationType = "MOVING_TOWARD"
)

// Vec3 is a point or Euler rotation in scene space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Dimensions is an axis-aligned bounding size.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

// Max returns the largest extent. The visibility resolver uses it as a
// crude bounding radius.
func (d Dimensions) Max() float64 {
	m := d.Width
	if d.Height > m {
		m = d.Height
	}
	if d.Depth > m {
		m = d.Depth
	}
	return m
}

// Node is an addressable object in the scene graph.
//
// Nodes are owned by the Graph; accessors return deep copies, and all
// mutation goes through Graph methods so derived relationships stay in
// step with spatial state.
//
// Defaults on creation: position/rotation zero, dimensions 1x1x1,
// Visible=true, Interactable=false, Importance=0.5.
type Node struct {
	ID   NodeID   `json:"id"`
	Type NodeType `json:"type"`
	Name string   `json:"name"`

	Position   Vec3       `json:"position"`
	Rotation   Vec3       `json:"rotation"`
	Dimensions Dimensions `json:"dimensions"`

	Visible      bool    `json:"visible"`
	Interactable bool    `json:"interactable"`
	Importance   float64 `json:"importance"`

	// Properties holds stable attributes (team, material, label text).
	// DynamicState holds fast-changing attributes (animation, health).
	Properties   map[string]Value `json:"properties,omitempty"`
	DynamicState map[string]Value `json:"dynamicState,omitempty"`

	// Structural containment. Parent is empty for detached nodes and the
	// root. Children preserves attachment order.
	Parent   NodeID   `json:"parent,omitempty"`
	Children []NodeID `json:"children,omitempty"`
}

// Relationship is a typed directed (optionally bidirectional) edge between
// two nodes. Endpoints are referenced by id and are non-owning: a
// relationship survives independently of its endpoints.
//
// Strength semantics depend on the type: for NEAR it is
// 1 - distance/radius, for BLOCKS it is the estimated occluded fraction of
// the target, and for manually created relationships it defaults to 1.0.
type Relationship struct {
	ID     RelationshipID `json:"id"`
	Type   RelationType   `json:"type"`
	Source NodeID         `json:"source"`
	Target NodeID         `json:"target"`

	Strength      float64          `json:"strength"`
	Bidirectional bool             `json:"bidirectional"`
	Properties    map[string]Value `json:"properties,omitempty"`
}

// connects reports whether this relationship links a to b, honouring
// Bidirectional for the reversed orientation.
func (r *Relationship) connects(a, b NodeID) bool {
	if r.Source == a && r.Target == b {
		return true
	}
	return r.Bidirectional && r.Source == b && r.Target == a
}

// touches reports whether the relationship has id as either endpoint.
func (r *Relationship) touches(id NodeID) bool {
	return r.Source == id || r.Target == id
}

// Stats is a point-in-time summary of graph contents.
//
// Visible and Interactable count creation-time state: toggling a node's
// flags after creation does not move the counters. This mirrors the
// documented aggregate behaviour and keeps the counters cheap; query the
// nodes themselves for live state.
type Stats struct {
	TotalNodes         int              `json:"totalNodes"`
	VisibleNodes       int              `json:"visibleNodes"`
	InteractableNodes  int              `json:"interactableNodes"`
	TotalRelationships int              `json:"totalRelationships"`
	NodesByType        map[NodeType]int `json:"nodesByType"`
}

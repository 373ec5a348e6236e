package scene

import (
	"fmt"
	"log"
	"sync"
)

// GraphConfig holds the tunable constants of the spatial heuristics.
//
// The defaults reproduce the reference behaviour: NEAR edges inside 10
// units, a 50-unit visibility cutoff, and a 60-degree half-angle field of
// view for the facing test.
type GraphConfig struct {
	// ProximityRadius is the distance inside which the spatial engine
	// maintains NEAR relationships. Strength is 1 - distance/radius.
	ProximityRadius float64
	// VisibilityRange is the hard distance cutoff for VisibleFrom.
	VisibilityRange float64
	// FieldOfViewDeg is the maximum absolute angle, in degrees, between the
	// observer's facing and the target for the target to count as visible.
	FieldOfViewDeg float64
}

// DefaultGraphConfig returns the standard heuristic constants.
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		ProximityRadius: 10.0,
		VisibilityRange: 50.0,
		FieldOfViewDeg:  60.0,
	}
}

// Graph is a thread-safe in-memory scene graph.
//
// One RWMutex serialises every mutation; queries take the read lock and
// return deep copies so callers can never corrupt internal state. This is
// intentionally coarse: scene graphs see tens of updates per second, not
// thousands, and the coarse lock removes the check-then-act races a
// lock-free design would invite around derived-edge creation.
//
// Performance characteristics (n = nodes, m = relationships):
//   - Node lookup by id: O(1)
//   - Relationship queries: O(m) linear scan
//   - Position update: O(n) proximity scan + O(m) NEAR reconciliation
//
// Acceptable at the intended scale of low hundreds of scene objects.
type Graph struct {
	mu     sync.RWMutex
	config GraphConfig

	nodes         map[NodeID]*Node
	relationships []*Relationship

	// Aggregate counters, maintained on create/clear only.
	totalNodes        int
	visibleNodes      int
	interactableNodes int
	nodesByType       map[NodeType]int
}

// NewGraph creates a scene graph with default heuristics and a root
// container node (RootNodeID).
func NewGraph() *Graph {
	return NewGraphWithConfig(DefaultGraphConfig())
}

// NewGraphWithConfig creates a scene graph with custom heuristic constants.
// Non-positive values fall back to the defaults.
func NewGraphWithConfig(config GraphConfig) *Graph {
	def := DefaultGraphConfig()
	if config.ProximityRadius <= 0 {
		config.ProximityRadius = def.ProximityRadius
	}
	if config.VisibilityRange <= 0 {
		config.VisibilityRange = def.VisibilityRange
	}
	if config.FieldOfViewDeg <= 0 {
		config.FieldOfViewDeg = def.FieldOfViewDeg
	}

	g := &Graph{
		config:      config,
		nodes:       make(map[NodeID]*Node),
		nodesByType: make(map[NodeType]int),
	}
	g.installRoot()
	return g
}

// installRoot registers the root container. Caller must hold the write
// lock (or be the constructor).
func (g *Graph) installRoot() {
	root := newNode(RootNodeID, NodeContainer, "Scene Root")
	g.nodes[root.ID] = root
	g.totalNodes++
	g.visibleNodes++
	g.nodesByType[NodeContainer]++
}

// newNode allocates a node with the documented defaults.
func newNode(id NodeID, nodeType NodeType, name string) *Node {
	return &Node{
		ID:           id,
		Type:         nodeType,
		Name:         name,
		Dimensions:   Dimensions{Width: 1, Height: 1, Depth: 1},
		Visible:      true,
		Interactable: false,
		Importance:   0.5,
		Properties:   make(map[string]Value),
		DynamicState: make(map[string]Value),
	}
}

// CreateNode registers a node and returns a copy of it.
//
// Creation is idempotent: if the id is already registered the existing node
// is returned unchanged and no counter moves. An empty id returns
// ErrInvalidID.
func (g *Graph) CreateNode(id NodeID, nodeType NodeType, name string) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.nodes[id]; ok {
		log.Printf("scene: node %s already exists, returning existing", id)
		return copyNode(existing), nil
	}

	node := newNode(id, nodeType, name)
	g.nodes[id] = node

	g.totalNodes++
	if node.Visible {
		g.visibleNodes++
	}
	if node.Interactable {
		g.interactableNodes++
	}
	g.nodesByType[nodeType]++

	return copyNode(node), nil
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyNode(node), nil
}

// AddChild attaches child under parent in the containment tree.
//
// The child is detached from any prior parent first. If child is an
// ancestor of parent the call returns ErrCycle and the graph is unchanged.
// A CONTAINS relationship with the deterministic id
// `contains_{parent}_{child}` is created if absent.
func (g *Graph) AddChild(parentID, childID NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	parent, ok := g.nodes[parentID]
	if !ok {
		return fmt.Errorf("parent %s: %w", parentID, ErrNotFound)
	}
	child, ok := g.nodes[childID]
	if !ok {
		return fmt.Errorf("child %s: %w", childID, ErrNotFound)
	}

	// Walk parent's ancestor chain looking for child.
	if g.isDescendantLocked(childID, parentID) {
		return ErrCycle
	}

	if child.Parent != "" {
		if prev, ok := g.nodes[child.Parent]; ok {
			prev.Children = removeID(prev.Children, childID)
		}
	}

	parent.Children = append(parent.Children, childID)
	child.Parent = parentID

	relID := ContainsID(parentID, childID)
	if g.findRelationshipByIDLocked(relID) == nil {
		g.relationships = append(g.relationships, &Relationship{
			ID:         relID,
			Type:       RelContains,
			Source:     parentID,
			Target:     childID,
			Strength:   1.0,
			Properties: make(map[string]Value),
		})
	}

	return nil
}

// isDescendantLocked reports whether ancestorID appears on the parent chain
// of nodeID (inclusive). Caller must hold the lock.
func (g *Graph) isDescendantLocked(ancestorID, nodeID NodeID) bool {
	for id := nodeID; id != ""; {
		if id == ancestorID {
			return true
		}
		node, ok := g.nodes[id]
		if !ok {
			return false
		}
		id = node.Parent
	}
	return false
}

// ContainsID is the deterministic relationship id for parent→child
// containment. AddChild dedupes on it.
func ContainsID(parent, child NodeID) RelationshipID {
	return RelationshipID(fmt.Sprintf("contains_%s_%s", parent, child))
}

// NearID is the deterministic relationship id for a proximity edge created
// from a's position update toward b.
func NearID(a, b NodeID) RelationshipID {
	return RelationshipID(fmt.Sprintf("near_%s_%s", a, b))
}

// BlocksID is the deterministic relationship id for an occlusion edge of
// blocker over target as seen from viewpoint.
func BlocksID(blocker, target, viewpoint NodeID) RelationshipID {
	return RelationshipID(fmt.Sprintf("blocks_%s_%s_from_%s", blocker, target, viewpoint))
}

// CreateRelationship appends a relationship and returns a copy of it.
//
// Both endpoints must exist. Duplicate ids are NOT deduplicated here; only
// the derived CONTAINS/NEAR/BLOCKS edges dedupe, by construction of their
// deterministic ids.
func (g *Graph) CreateRelationship(id RelationshipID, relType RelationType, source, target NodeID) (*Relationship, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[source]; !ok {
		return nil, fmt.Errorf("source %s: %w", source, ErrNotFound)
	}
	if _, ok := g.nodes[target]; !ok {
		return nil, fmt.Errorf("target %s: %w", target, ErrNotFound)
	}

	rel := &Relationship{
		ID:         id,
		Type:       relType,
		Source:     source,
		Target:     target,
		Strength:   1.0,
		Properties: make(map[string]Value),
	}
	g.relationships = append(g.relationships, rel)

	return copyRelationship(rel), nil
}

// findRelationshipByIDLocked returns the live relationship with the given
// id, or nil. Caller must hold the lock.
func (g *Graph) findRelationshipByIDLocked(id RelationshipID) *Relationship {
	for _, rel := range g.relationships {
		if rel.ID == id {
			return rel
		}
	}
	return nil
}

// FindNodesByType returns copies of all nodes of the given type.
func (g *Graph) FindNodesByType(nodeType NodeType) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []*Node
	for _, node := range g.nodes {
		if node.Type == nodeType {
			result = append(result, copyNode(node))
		}
	}
	return result
}

// FindNodesByProperty returns copies of all nodes whose property bag holds
// the given key with an equal Value.
func (g *Graph) FindNodesByProperty(key string, want Value) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []*Node
	for _, node := range g.nodes {
		if v, ok := node.Properties[key]; ok && v.Equal(want) {
			result = append(result, copyNode(node))
		}
	}
	return result
}

// FindRelationships returns copies of all relationships from a to b,
// including bidirectional relationships declared from b to a.
func (g *Graph) FindRelationships(a, b NodeID) []*Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []*Relationship
	for _, rel := range g.relationships {
		if rel.connects(a, b) {
			result = append(result, copyRelationship(rel))
		}
	}
	return result
}

// FindRelationshipsByType returns copies of all relationships of one type.
func (g *Graph) FindRelationshipsByType(relType RelationType) []*Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []*Relationship
	for _, rel := range g.relationships {
		if rel.Type == relType {
			result = append(result, copyRelationship(rel))
		}
	}
	return result
}

// NodeRelationships returns copies of every relationship that has the node
// as either endpoint.
func (g *Graph) NodeRelationships(id NodeID) []*Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []*Relationship
	for _, rel := range g.relationships {
		if rel.touches(id) {
			result = append(result, copyRelationship(rel))
		}
	}
	return result
}

// SetNodeName updates a node's display label.
func (g *Graph) SetNodeName(id NodeID, name string) error {
	return g.mutateNode(id, func(n *Node) { n.Name = name })
}

// SetNodeVisible toggles a node's visibility flag. Aggregate counters are
// not adjusted; see Stats.
func (g *Graph) SetNodeVisible(id NodeID, visible bool) error {
	return g.mutateNode(id, func(n *Node) { n.Visible = visible })
}

// SetNodeInteractable toggles a node's interactable flag.
func (g *Graph) SetNodeInteractable(id NodeID, interactable bool) error {
	return g.mutateNode(id, func(n *Node) { n.Interactable = interactable })
}

// SetNodeImportance sets a node's importance, clamped to [0,1].
func (g *Graph) SetNodeImportance(id NodeID, importance float64) error {
	return g.mutateNode(id, func(n *Node) { n.Importance = clamp01(importance) })
}

// SetNodeDimensions sets a node's bounding size.
func (g *Graph) SetNodeDimensions(id NodeID, dim Dimensions) error {
	return g.mutateNode(id, func(n *Node) { n.Dimensions = dim })
}

// SetProperty sets a stable attribute on a node.
func (g *Graph) SetProperty(id NodeID, key string, value Value) error {
	return g.mutateNode(id, func(n *Node) { n.Properties[key] = value })
}

// SetDynamicState sets a fast-changing attribute on a node.
func (g *Graph) SetDynamicState(id NodeID, key string, value Value) error {
	return g.mutateNode(id, func(n *Node) { n.DynamicState[key] = value })
}

func (g *Graph) mutateNode(id NodeID, fn func(*Node)) error {
	if id == "" {
		return ErrInvalidID
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[id]
	if !ok {
		return ErrNotFound
	}
	fn(node)
	return nil
}

// Clear resets the graph to just the root node: all other nodes and all
// relationships are dropped and counters reset to {total=1, visible=1,
// interactable=0}.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[NodeID]*Node)
	g.relationships = nil
	g.nodesByType = make(map[NodeType]int)
	g.totalNodes = 0
	g.visibleNodes = 0
	g.interactableNodes = 0
	g.installRoot()

	log.Printf("scene: graph cleared")
}

// Stats returns a snapshot of the aggregate counters.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	byType := make(map[NodeType]int, len(g.nodesByType))
	for k, v := range g.nodesByType {
		byType[k] = v
	}
	return Stats{
		TotalNodes:         g.totalNodes,
		VisibleNodes:       g.visibleNodes,
		InteractableNodes:  g.interactableNodes,
		TotalRelationships: len(g.relationships),
		NodesByType:        byType,
	}
}

// Healthy reports whether the graph still holds its root node.
func (g *Graph) Healthy() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.nodes[RootNodeID]
	return ok
}

// AllNodes returns copies of every node. Intended for snapshots and
// reporting, not hot paths.
func (g *Graph) AllNodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		result = append(result, copyNode(node))
	}
	return result
}

// AllRelationships returns copies of every relationship in insertion order.
func (g *Graph) AllRelationships() []*Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*Relationship, 0, len(g.relationships))
	for _, rel := range g.relationships {
		result = append(result, copyRelationship(rel))
	}
	return result
}

// Restore replaces graph contents from a snapshot. Nodes and relationships
// are installed verbatim (parent/child links included) and counters are
// rebuilt from the node set. Used by the storage layer.
func (g *Graph) Restore(nodes []*Node, relationships []*Relationship) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[NodeID]*Node, len(nodes)+1)
	g.relationships = make([]*Relationship, 0, len(relationships))
	g.nodesByType = make(map[NodeType]int)
	g.totalNodes = 0
	g.visibleNodes = 0
	g.interactableNodes = 0

	for _, node := range nodes {
		stored := copyNode(node)
		g.nodes[stored.ID] = stored
		g.totalNodes++
		if stored.Visible {
			g.visibleNodes++
		}
		if stored.Interactable {
			g.interactableNodes++
		}
		g.nodesByType[stored.Type]++
	}
	if _, ok := g.nodes[RootNodeID]; !ok {
		g.installRoot()
	}
	for _, rel := range relationships {
		g.relationships = append(g.relationships, copyRelationship(rel))
	}
}

// copyNode creates a deep copy of a node.
func copyNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	copied := *n
	copied.Properties = make(map[string]Value, len(n.Properties))
	for k, v := range n.Properties {
		copied.Properties[k] = v
	}
	copied.DynamicState = make(map[string]Value, len(n.DynamicState))
	for k, v := range n.DynamicState {
		copied.DynamicState[k] = v
	}
	copied.Children = make([]NodeID, len(n.Children))
	copy(copied.Children, n.Children)
	return &copied
}

// copyRelationship creates a deep copy of a relationship.
func copyRelationship(r *Relationship) *Relationship {
	if r == nil {
		return nil
	}
	copied := *r
	copied.Properties = make(map[string]Value, len(r.Properties))
	for k, v := range r.Properties {
		copied.Properties[k] = v
	}
	return &copied
}

func removeID(ids []NodeID, target NodeID) []NodeID {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
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

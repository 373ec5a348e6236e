package scene

import "math"

// UpdatePosition moves a node and reconciles its proximity relationships.
//
// Every node inside ProximityRadius of the new position either gets its
// NEAR strength refreshed (1 - distance/radius) or a new bidirectional NEAR
// edge created. Nodes that have moved out of range keep their stale NEAR
// edge with whatever strength it last had; the resolver never deletes
// proximity edges. That matches the reference behaviour and may want
// revisiting.
func (g *Graph) UpdatePosition(id NodeID, x, y, z float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[id]
	if !ok {
		return ErrNotFound
	}

	node.Position = Vec3{X: x, Y: y, Z: z}
	g.updateSpatialRelationshipsLocked(node)
	return nil
}

// UpdateRotation sets a node's Euler rotation and reconciles proximity
// relationships, same as UpdatePosition.
func (g *Graph) UpdateRotation(id NodeID, rotX, rotY, rotZ float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[id]
	if !ok {
		return ErrNotFound
	}

	node.Rotation = Vec3{X: rotX, Y: rotY, Z: rotZ}
	g.updateSpatialRelationshipsLocked(node)
	return nil
}

// updateSpatialRelationshipsLocked recomputes NEAR edges around a node.
// Brute-force over the registry; caller must hold the write lock.
func (g *Graph) updateSpatialRelationshipsLocked(node *Node) {
	radius := g.config.ProximityRadius

	for _, other := range g.nodes {
		if other.ID == node.ID {
			continue
		}

		d := distance(node.Position, other.Position)
		if d >= radius {
			continue
		}
		strength := 1.0 - d/radius

		if rel := g.findNearLocked(node.ID, other.ID); rel != nil {
			rel.Strength = strength
			continue
		}

		g.relationships = append(g.relationships, &Relationship{
			ID:            NearID(node.ID, other.ID),
			Type:          RelNear,
			Source:        node.ID,
			Target:        other.ID,
			Strength:      strength,
			Bidirectional: true,
			Properties:    make(map[string]Value),
		})
	}
}

// findNearLocked returns the live NEAR edge between a and b in either
// orientation, or nil. Caller must hold the lock.
func (g *Graph) findNearLocked(a, b NodeID) *Relationship {
	for _, rel := range g.relationships {
		if rel.Type != RelNear {
			continue
		}
		if (rel.Source == a && rel.Target == b) || (rel.Source == b && rel.Target == a) {
			return rel
		}
	}
	return nil
}

// NearbyNodes returns copies of all nodes within maxDistance of the given
// node, excluding the node itself. O(n) scan.
func (g *Graph) NearbyNodes(id NodeID, maxDistance float64) ([]*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}

	var result []*Node
	for _, other := range g.nodes {
		if other.ID == id {
			continue
		}
		if distance(node.Position, other.Position) <= maxDistance {
			result = append(result, copyNode(other))
		}
	}
	return result, nil
}

// Distance returns the Euclidean distance between two nodes' positions.
func (g *Graph) Distance(a, b NodeID) (float64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	na, ok := g.nodes[a]
	if !ok {
		return 0, ErrNotFound
	}
	nb, ok := g.nodes[b]
	if !ok {
		return 0, ErrNotFound
	}
	return distance(na.Position, nb.Position), nil
}

func distance(a, b Vec3) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dz := b.Z - a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

package scene

import "math"

// VisibleFrom reports whether target falls inside observer's field of view.
//
// This is a cheap facing test, not raycasting: intervening geometry is
// ignored here (see BlockingRelationships for occlusion estimates). The
// check fails when either node is marked non-visible or the pair is beyond
// VisibilityRange. Otherwise the observer is assumed to face +Z rotated by
// its Y rotation, the observer→target vector is projected onto the XZ
// plane, and the target is visible iff the wrapped angular difference is
// under FieldOfViewDeg.
func (g *Graph) VisibleFrom(observerID, targetID NodeID) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	observer, ok := g.nodes[observerID]
	if !ok {
		return false, ErrNotFound
	}
	target, ok := g.nodes[targetID]
	if !ok {
		return false, ErrNotFound
	}

	return g.visibleFromLocked(observer, target), nil
}

func (g *Graph) visibleFromLocked(observer, target *Node) bool {
	if !observer.Visible || !target.Visible {
		return false
	}
	if distance(observer.Position, target.Position) > g.config.VisibilityRange {
		return false
	}

	dx := target.Position.X - observer.Position.X
	dz := target.Position.Z - observer.Position.Z

	targetAngle := math.Atan2(dx, dz) * 180 / math.Pi
	diff := wrapDegrees(targetAngle - observer.Rotation.Y)

	return math.Abs(diff) < g.config.FieldOfViewDeg
}

// wrapDegrees normalises an angle difference into [-180, 180].
func wrapDegrees(deg float64) float64 {
	for deg > 180 {
		deg -= 360
	}
	for deg < -180 {
		deg += 360
	}
	return deg
}

// VisibleNodes returns copies of every node visible from the viewpoint.
func (g *Graph) VisibleNodes(viewpointID NodeID) ([]*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	viewpoint, ok := g.nodes[viewpointID]
	if !ok {
		return nil, ErrNotFound
	}

	var result []*Node
	for _, node := range g.nodes {
		if node.ID == viewpointID || !node.Visible {
			continue
		}
		if g.visibleFromLocked(viewpoint, node) {
			result = append(result, copyNode(node))
		}
	}
	return result, nil
}

// BlockingRelationships estimates which nodes occlude target as seen from
// source, returning copies of the BLOCKS relationships involved.
//
// A node is a candidate blocker when its position lies within its own
// bounding size (largest dimension) of the source→target segment, with the
// projection parameter strictly inside (0,1) so the endpoints themselves
// never qualify. For each candidate a BLOCKS relationship scoped by a
// `viewpoint` property is created lazily with strength
//
//	min(1, blockerSize * (distToTarget/distToBlocker) / targetSize)
//
// which is a perspective-scaled size ratio, not a solid-angle computation.
// Existing BLOCKS edges (matched by deterministic id) are reused as-is.
func (g *Graph) BlockingRelationships(sourceID, targetID NodeID) ([]*Relationship, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	source, ok := g.nodes[sourceID]
	if !ok {
		return nil, ErrNotFound
	}
	target, ok := g.nodes[targetID]
	if !ok {
		return nil, ErrNotFound
	}

	var result []*Relationship
	for _, blocker := range g.potentialBlockersLocked(source, target) {
		relID := BlocksID(blocker.ID, targetID, sourceID)

		if rel := g.findRelationshipByIDLocked(relID); rel != nil {
			result = append(result, copyRelationship(rel))
			continue
		}

		rel := &Relationship{
			ID:       relID,
			Type:     RelBlocks,
			Source:   blocker.ID,
			Target:   targetID,
			Strength: blockingStrength(source, blocker, target),
			Properties: map[string]Value{
				"viewpoint": Text(string(sourceID)),
			},
		}
		g.relationships = append(g.relationships, rel)
		result = append(result, copyRelationship(rel))
	}

	return result, nil
}

// potentialBlockersLocked finds nodes near the source→target segment using
// closest-point projection. Caller must hold the lock.
func (g *Graph) potentialBlockersLocked(source, target *Node) []*Node {
	dx := target.Position.X - source.Position.X
	dy := target.Position.Y - source.Position.Y
	dz := target.Position.Z - source.Position.Z

	lenSq := dx*dx + dy*dy + dz*dz
	if lenSq == 0 {
		return nil
	}

	var result []*Node
	for _, node := range g.nodes {
		if node.ID == source.ID || node.ID == target.ID {
			continue
		}

		t := ((node.Position.X-source.Position.X)*dx +
			(node.Position.Y-source.Position.Y)*dy +
			(node.Position.Z-source.Position.Z)*dz) / lenSq
		clamped := math.Max(0, math.Min(1, t))

		closest := Vec3{
			X: source.Position.X + clamped*dx,
			Y: source.Position.Y + clamped*dy,
			Z: source.Position.Z + clamped*dz,
		}

		if distance(node.Position, closest) <= node.Dimensions.Max() && t > 0 && t < 1 {
			result = append(result, node)
		}
	}
	return result
}

// blockingStrength estimates the occluded fraction of target.
func blockingStrength(source, blocker, target *Node) float64 {
	blockerSize := blocker.Dimensions.Max()
	targetSize := target.Dimensions.Max()
	if targetSize == 0 {
		return 1.0
	}

	distToBlocker := distance(source.Position, blocker.Position)
	distToTarget := distance(source.Position, target.Position)
	if distToBlocker == 0 {
		return 1.0
	}

	adjusted := blockerSize * (distToTarget / distToBlocker)
	return math.Min(1.0, adjusted/targetSize)
}

// FindPath returns a relationship-connected route from start toward end.
//
// This is deliberately shallow, not pathfinding: if any relationship
// connects start and end the path is [start, end]; otherwise a single
// connector node with relationships to both sides is searched for,
// choosing the one minimising the summed Euclidean distance, giving
// [start, connector, end]. When nothing connects, the path is just
// [start]. Callers must not expect traversal deeper than one hop.
func (g *Graph) FindPath(startID, endID NodeID) ([]*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	start, ok := g.nodes[startID]
	if !ok {
		return nil, ErrNotFound
	}
	end, ok := g.nodes[endID]
	if !ok {
		return nil, ErrNotFound
	}

	path := []*Node{copyNode(start)}

	for _, rel := range g.relationships {
		if rel.connects(startID, endID) {
			return append(path, copyNode(end)), nil
		}
	}

	var best *Node
	bestDistance := math.MaxFloat64
	for _, node := range g.nodes {
		if node.ID == startID || node.ID == endID {
			continue
		}

		connectsStart := false
		connectsEnd := false
		for _, rel := range g.relationships {
			if rel.connects(startID, node.ID) {
				connectsStart = true
			}
			if rel.connects(node.ID, endID) {
				connectsEnd = true
			}
		}
		if !connectsStart || !connectsEnd {
			continue
		}

		d := distance(start.Position, node.Position) + distance(node.Position, end.Position)
		if d < bestDistance {
			bestDistance = d
			best = node
		}
	}

	if best != nil {
		path = append(path, copyNode(best), copyNode(end))
	}
	return path, nil
}

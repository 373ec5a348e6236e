package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraph(t *testing.T) {
	t.Run("installs the root node", func(t *testing.T) {
		g := NewGraph()

		root, err := g.Node(RootNodeID)
		require.NoError(t, err)
		assert.Equal(t, NodeContainer, root.Type)
		assert.Equal(t, "Scene Root", root.Name)
		assert.True(t, root.Visible)

		stats := g.Stats()
		assert.Equal(t, 1, stats.TotalNodes)
		assert.Equal(t, 1, stats.VisibleNodes)
		assert.Equal(t, 0, stats.InteractableNodes)
	})

	t.Run("non positive config falls back to defaults", func(t *testing.T) {
		g := NewGraphWithConfig(GraphConfig{})
		assert.Equal(t, 10.0, g.config.ProximityRadius)
		assert.Equal(t, 50.0, g.config.VisibilityRange)
		assert.Equal(t, 60.0, g.config.FieldOfViewDeg)
	})
}

func TestCreateNode(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		g := NewGraph()
		node, err := g.CreateNode("tree", NodeEntity, "Oak")
		require.NoError(t, err)

		assert.Equal(t, NodeID("tree"), node.ID)
		assert.True(t, node.Visible)
		assert.False(t, node.Interactable)
		assert.Equal(t, 0.5, node.Importance)
		assert.Equal(t, Dimensions{Width: 1, Height: 1, Depth: 1}, node.Dimensions)
		assert.Equal(t, Vec3{}, node.Position)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		g := NewGraph()
		_, err := g.CreateNode("", NodeEntity, "Oak")
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("idempotent", func(t *testing.T) {
		g := NewGraph()
		first, err := g.CreateNode("tree", NodeEntity, "Oak")
		require.NoError(t, err)

		second, err := g.CreateNode("tree", NodeEntity, "Impostor")
		require.NoError(t, err)

		// The original wins; type, name and counters are untouched.
		assert.Equal(t, first.Type, second.Type)
		assert.Equal(t, "Oak", second.Name)
		assert.Equal(t, 2, g.Stats().TotalNodes)
	})

	t.Run("returned copy is detached", func(t *testing.T) {
		g := NewGraph()
		node, err := g.CreateNode("tree", NodeEntity, "Oak")
		require.NoError(t, err)

		node.Name = "Mutated"
		node.Properties["hacked"] = Bool(true)

		fresh, err := g.Node("tree")
		require.NoError(t, err)
		assert.Equal(t, "Oak", fresh.Name)
		assert.NotContains(t, fresh.Properties, "hacked")
	})
}

func TestAddChild(t *testing.T) {
	t.Run("links parent and child", func(t *testing.T) {
		g := NewGraph()
		_, err := g.CreateNode("room", NodeContainer, "Room")
		require.NoError(t, err)
		_, err = g.CreateNode("chair", NodeEntity, "Chair")
		require.NoError(t, err)

		require.NoError(t, g.AddChild("room", "chair"))

		room, err := g.Node("room")
		require.NoError(t, err)
		assert.Contains(t, room.Children, NodeID("chair"))

		chair, err := g.Node("chair")
		require.NoError(t, err)
		assert.Equal(t, NodeID("room"), chair.Parent)

		rels := g.FindRelationships("room", "chair")
		require.Len(t, rels, 1)
		assert.Equal(t, RelContains, rels[0].Type)
		assert.Equal(t, ContainsID("room", "chair"), rels[0].ID)
	})

	t.Run("missing endpoint", func(t *testing.T) {
		g := NewGraph()
		_, err := g.CreateNode("room", NodeContainer, "Room")
		require.NoError(t, err)

		assert.ErrorIs(t, g.AddChild("room", "ghost"), ErrNotFound)
		assert.ErrorIs(t, g.AddChild("ghost", "room"), ErrNotFound)
	})

	t.Run("rejects cycles", func(t *testing.T) {
		g := NewGraph()
		for _, id := range []NodeID{"a", "b", "c"} {
			_, err := g.CreateNode(id, NodeContainer, string(id))
			require.NoError(t, err)
		}
		require.NoError(t, g.AddChild("a", "b"))
		require.NoError(t, g.AddChild("b", "c"))

		assert.ErrorIs(t, g.AddChild("c", "a"), ErrCycle)
		assert.ErrorIs(t, g.AddChild("a", "a"), ErrCycle)
	})

	t.Run("reparenting detaches the old parent", func(t *testing.T) {
		g := NewGraph()
		for _, id := range []NodeID{"room1", "room2", "chair"} {
			_, err := g.CreateNode(id, NodeContainer, string(id))
			require.NoError(t, err)
		}
		require.NoError(t, g.AddChild("room1", "chair"))
		require.NoError(t, g.AddChild("room2", "chair"))

		room1, err := g.Node("room1")
		require.NoError(t, err)
		assert.NotContains(t, room1.Children, NodeID("chair"))

		chair, err := g.Node("chair")
		require.NoError(t, err)
		assert.Equal(t, NodeID("room2"), chair.Parent)
	})

	t.Run("repeat add does not duplicate the edge", func(t *testing.T) {
		g := NewGraph()
		_, err := g.CreateNode("room", NodeContainer, "Room")
		require.NoError(t, err)
		_, err = g.CreateNode("chair", NodeEntity, "Chair")
		require.NoError(t, err)

		require.NoError(t, g.AddChild("room", "chair"))
		require.NoError(t, g.AddChild("room", "chair"))

		assert.Len(t, g.FindRelationships("room", "chair"), 1)

		room, err := g.Node("room")
		require.NoError(t, err)
		assert.Len(t, room.Children, 1)
	})
}

func TestCreateRelationship(t *testing.T) {
	g := NewGraph()
	_, err := g.CreateNode("wolf", NodeEntity, "Wolf")
	require.NoError(t, err)
	_, err = g.CreateNode("deer", NodeEntity, "Deer")
	require.NoError(t, err)

	t.Run("links two nodes", func(t *testing.T) {
		rel, err := g.CreateRelationship("hunt_1", RelMovingToward, "wolf", "deer")
		require.NoError(t, err)
		assert.Equal(t, RelMovingToward, rel.Type)
		assert.Equal(t, NodeID("wolf"), rel.Source)
	})

	t.Run("missing endpoint", func(t *testing.T) {
		_, err := g.CreateRelationship("bad", RelNear, "wolf", "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		_, err := g.CreateRelationship("", RelNear, "wolf", "deer")
		assert.ErrorIs(t, err, ErrInvalidID)
	})
}

func TestFindNodes(t *testing.T) {
	g := NewGraph()
	_, err := g.CreateNode("wolf", NodeEntity, "Wolf")
	require.NoError(t, err)
	_, err = g.CreateNode("deer", NodeEntity, "Deer")
	require.NoError(t, err)
	_, err = g.CreateNode("rock", NodeTerrain, "Rock")
	require.NoError(t, err)
	require.NoError(t, g.SetProperty("wolf", "hostile", Bool(true)))
	require.NoError(t, g.SetProperty("deer", "hostile", Bool(false)))

	t.Run("by type", func(t *testing.T) {
		entities := g.FindNodesByType(NodeEntity)
		assert.Len(t, entities, 2)
	})

	t.Run("by property value", func(t *testing.T) {
		hostile := g.FindNodesByProperty("hostile", Bool(true))
		require.Len(t, hostile, 1)
		assert.Equal(t, NodeID("wolf"), hostile[0].ID)
	})

	t.Run("by relationship type", func(t *testing.T) {
		_, err := g.CreateRelationship("hunt", RelMovingToward, "wolf", "deer")
		require.NoError(t, err)
		assert.Len(t, g.FindRelationshipsByType(RelMovingToward), 1)
	})
}

func TestNodeSetters(t *testing.T) {
	g := NewGraph()
	_, err := g.CreateNode("door", NodeEntity, "Door")
	require.NoError(t, err)

	require.NoError(t, g.SetNodeName("door", "Oak Door"))
	require.NoError(t, g.SetNodeVisible("door", false))
	require.NoError(t, g.SetNodeInteractable("door", true))
	require.NoError(t, g.SetNodeImportance("door", 2.5))
	require.NoError(t, g.SetNodeDimensions("door", Dimensions{Width: 1, Height: 2, Depth: 0.1}))
	require.NoError(t, g.SetDynamicState("door", "open", Bool(true)))

	door, err := g.Node("door")
	require.NoError(t, err)
	assert.Equal(t, "Oak Door", door.Name)
	assert.False(t, door.Visible)
	assert.True(t, door.Interactable)
	assert.Equal(t, 1.0, door.Importance, "importance clamps to [0,1]")
	assert.Equal(t, 2.0, door.Dimensions.Max())

	open, ok := door.DynamicState["open"].Bool()
	require.True(t, ok)
	assert.True(t, open)

	t.Run("counters track creation state only", func(t *testing.T) {
		// Hiding the door and making it interactable does not move Stats.
		stats := g.Stats()
		assert.Equal(t, 2, stats.VisibleNodes)
		assert.Equal(t, 0, stats.InteractableNodes)
	})

	t.Run("missing node", func(t *testing.T) {
		assert.ErrorIs(t, g.SetNodeName("ghost", "x"), ErrNotFound)
	})
}

func TestClear(t *testing.T) {
	g := NewGraph()
	_, err := g.CreateNode("junk", NodeEntity, "Junk")
	require.NoError(t, err)
	require.NoError(t, g.AddChild(RootNodeID, "junk"))

	g.Clear()

	stats := g.Stats()
	assert.Equal(t, 1, stats.TotalNodes)
	assert.Equal(t, 1, stats.VisibleNodes)
	assert.Equal(t, 0, stats.InteractableNodes)
	assert.Empty(t, g.AllRelationships())

	root, err := g.Node(RootNodeID)
	require.NoError(t, err)
	assert.Empty(t, root.Children)

	_, err = g.Node("junk")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRestore(t *testing.T) {
	g := NewGraph()
	_, err := g.CreateNode("tree", NodeEntity, "Oak")
	require.NoError(t, err)
	require.NoError(t, g.UpdatePosition("tree", 3, 0, 4))

	fresh := NewGraph()
	fresh.Restore(g.AllNodes(), g.AllRelationships())

	tree, err := fresh.Node("tree")
	require.NoError(t, err)
	assert.Equal(t, Vec3{X: 3, Y: 0, Z: 4}, tree.Position)

	stats := fresh.Stats()
	assert.Equal(t, 2, stats.TotalNodes)

	_, err = fresh.Node(RootNodeID)
	assert.NoError(t, err, "root survives restore")
}

func TestHealthy(t *testing.T) {
	g := NewGraph()
	assert.True(t, g.Healthy())
}

package chattypes_test

import (
	"encoding/json"
	"testing"

	"github.com/contenox/chatstate/chattypes"
	"github.com/stretchr/testify/require"
)

func TestUnit_MessageMapKey(t *testing.T) {
	require.Equal(t, "s1_t1", chattypes.MessageMapKey("s1", "t1"))
	require.Equal(t, "s1_null", chattypes.MessageMapKey("s1", ""))
	require.Equal(t, "s1_null", chattypes.Context{SessionID: "s1"}.Key())
}

func TestUnit_Kind(t *testing.T) {
	require.Equal(t, chattypes.KindGroup, chattypes.Message{Role: chattypes.RoleAssistantGroup}.Kind())
	require.Equal(t, chattypes.KindTool, chattypes.Message{Role: chattypes.RoleTool}.Kind())
	require.Equal(t, chattypes.KindLeaf, chattypes.Message{Role: chattypes.RoleAssistant}.Kind())
	require.Equal(t, chattypes.KindLeaf, chattypes.Message{Role: "unknown"}.Kind())
}

func TestUnit_PatchEmptyToolsMarshalsAsList(t *testing.T) {
	b, err := json.Marshal(chattypes.ToolsPatch(nil))
	require.NoError(t, err)
	require.JSONEq(t, `{"tools":[]}`, string(b))

	var p chattypes.Patch
	require.NoError(t, json.Unmarshal(b, &p))
	require.NotNil(t, p.Tools)
	require.Empty(t, *p.Tools)
}

func TestUnit_PatchApply(t *testing.T) {
	orig := chattypes.Message{
		ID:       "m1",
		Content:  "old",
		Tools:    []chattypes.ToolRef{{ID: "t1"}},
		Error:    &chattypes.MessageError{Type: "boom"},
		Metadata: map[string]any{"a": 1},
	}

	t.Run("content only leaves tools", func(t *testing.T) {
		got := chattypes.ContentPatch("new").Apply(orig)
		require.Equal(t, "new", got.Content)
		require.Len(t, got.Tools, 1)
		require.Equal(t, "old", orig.Content)
	})

	t.Run("empty tools replaces list", func(t *testing.T) {
		got := chattypes.ToolsPatch([]chattypes.ToolRef{}).Apply(orig)
		require.NotNil(t, got.Tools)
		require.Empty(t, got.Tools)
		require.Len(t, orig.Tools, 1)
	})

	t.Run("clear error and merge metadata", func(t *testing.T) {
		got := chattypes.Patch{ClearError: true, Metadata: map[string]any{"b": 2}}.Apply(orig)
		require.Nil(t, got.Error)
		require.Equal(t, map[string]any{"a": 1, "b": 2}, got.Metadata)
		require.Equal(t, map[string]any{"a": 1}, orig.Metadata)
	})
}

func TestUnit_Assemble(t *testing.T) {
	flat := []chattypes.Message{
		{ID: "u1", Role: chattypes.RoleUser},
		{ID: "g", Role: chattypes.RoleAssistantGroup, ParentID: "u1"},
		{ID: "c1", Role: chattypes.RoleAssistant, ParentID: "g"},
		{ID: "c2", Role: chattypes.RoleAssistant, ParentID: "g"},
		{ID: "r1", Role: chattypes.RoleAssistant, ParentID: "u1"},
	}

	nested := chattypes.Assemble(flat)
	require.Len(t, nested, 3)
	require.Equal(t, "g", nested[1].ID)
	require.Len(t, nested[1].Children, 2)
	require.Equal(t, "c1", nested[1].Children[0].ID)
	require.Equal(t, "r1", nested[2].ID)

	found, ok := chattypes.Find(nested, "c2")
	require.True(t, ok)
	require.Equal(t, "g", found.ParentID)
}

func TestUnit_CloneIsDeep(t *testing.T) {
	m := chattypes.Message{
		ID:       "m",
		Tools:    []chattypes.ToolRef{{ID: "t", Result: &chattypes.ToolResult{ID: "r"}}},
		Children: []chattypes.Message{{ID: "c"}},
	}
	c := m.Clone()
	c.Tools[0].Result.ID = "changed"
	c.Children[0].ID = "changed"
	require.Equal(t, "r", m.Tools[0].Result.ID)
	require.Equal(t, "c", m.Children[0].ID)
}

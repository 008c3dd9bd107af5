package cascade_test

import (
	"testing"

	"github.com/contenox/chatstate/cascade"
	"github.com/contenox/chatstate/chattypes"
	"github.com/stretchr/testify/require"
)

func leaf(id string, tools ...chattypes.ToolRef) chattypes.Message {
	return chattypes.Message{ID: id, Role: chattypes.RoleAssistant, Tools: tools}
}

func group(id string, children ...chattypes.Message) chattypes.Message {
	return chattypes.Message{ID: id, Role: chattypes.RoleAssistantGroup, Children: children}
}

func toolMsg(id, callID string) chattypes.Message {
	return chattypes.Message{ID: id, Role: chattypes.RoleTool, ToolCallID: callID}
}

func withResult(callID, resultID string) chattypes.ToolRef {
	return chattypes.ToolRef{ID: callID, Result: &chattypes.ToolResult{ID: resultID}}
}

func TestUnit_DeleteClosure(t *testing.T) {
	t.Run("plain message yields itself", func(t *testing.T) {
		msgs := []chattypes.Message{leaf("m"), leaf("other")}
		require.Equal(t, []string{"m"}, cascade.DeleteClosure([]string{"m"}, msgs))
	})

	t.Run("tool calls without results leave tool messages orphaned", func(t *testing.T) {
		msgs := []chattypes.Message{leaf("m1", chattypes.ToolRef{ID: "t1"}), toolMsg("2", "t1")}
		require.Equal(t, []string{"m1"}, cascade.DeleteClosure([]string{"m1"}, msgs))
	})

	t.Run("leaf brings its tool results in tools order", func(t *testing.T) {
		msgs := []chattypes.Message{
			leaf("m1", withResult("t1", "r1"), chattypes.ToolRef{ID: "t2"}, withResult("t3", "r3")),
			toolMsg("r1", "t1"),
			toolMsg("r3", "t3"),
		}
		require.Equal(t, []string{"m1", "r1", "r3"}, cascade.DeleteClosure([]string{"m1"}, msgs))
	})

	t.Run("group yields group then children then child results", func(t *testing.T) {
		msgs := []chattypes.Message{
			group("g",
				leaf("c1", withResult("t1", "r1")),
				leaf("c2", withResult("t2", "r2"), withResult("t1b", "r1")),
			),
			leaf("o"),
		}
		require.Equal(t, []string{"g", "c1", "c2", "r1", "r2"}, cascade.DeleteClosure([]string{"g"}, msgs))
	})

	t.Run("group scenario leaves unrelated messages", func(t *testing.T) {
		msgs := []chattypes.Message{group("g", leaf("c1"), leaf("c2")), leaf("o")}
		got := cascade.DeleteClosure([]string{"g"}, msgs)
		require.Equal(t, []string{"g", "c1", "c2"}, got)
		require.NotContains(t, got, "o")
	})

	t.Run("nested groups", func(t *testing.T) {
		msgs := []chattypes.Message{
			group("g",
				group("g2", leaf("gc", withResult("t", "r"))),
				leaf("c2"),
			),
		}
		require.Equal(t, []string{"g", "g2", "gc", "c2", "r"}, cascade.DeleteClosure([]string{"g"}, msgs))
	})

	t.Run("unknown ids are dropped", func(t *testing.T) {
		msgs := []chattypes.Message{leaf("a"), leaf("b")}
		require.Equal(t, []string{"b"}, cascade.DeleteClosure([]string{"missing", "b"}, msgs))
		require.Empty(t, cascade.DeleteClosure([]string{"missing"}, nil))
	})

	t.Run("multiple ids dedupe", func(t *testing.T) {
		msgs := []chattypes.Message{group("g", leaf("c1")), leaf("x")}
		require.Equal(t, []string{"g", "c1", "x"}, cascade.DeleteClosure([]string{"g", "c1", "x", "g"}, msgs))
	})

	t.Run("child addressed directly", func(t *testing.T) {
		msgs := []chattypes.Message{group("g", leaf("c1", withResult("t", "r")), leaf("c2"))}
		require.Equal(t, []string{"c1", "r"}, cascade.DeleteClosure([]string{"c1"}, msgs))
	})
}

func TestUnit_ToolOwnerPatch(t *testing.T) {
	t.Run("strips the matching entry", func(t *testing.T) {
		msgs := []chattypes.Message{
			leaf("m1", chattypes.ToolRef{ID: "t1"}),
			toolMsg("2", "t1"),
		}
		p, ok := cascade.ToolOwnerPatch("2", msgs)
		require.True(t, ok)
		require.Equal(t, "m1", p.OwnerID)
		require.NotNil(t, p.Tools)
		require.Empty(t, p.Tools)
	})

	t.Run("siblings keep their entries", func(t *testing.T) {
		msgs := []chattypes.Message{
			leaf("m1", chattypes.ToolRef{ID: "t0"}, chattypes.ToolRef{ID: "t1"}, chattypes.ToolRef{ID: "t2"}),
			toolMsg("x", "t1"),
		}
		p, ok := cascade.ToolOwnerPatch("x", msgs)
		require.True(t, ok)
		require.Equal(t, []chattypes.ToolRef{{ID: "t0"}, {ID: "t2"}}, p.Tools)
		require.Len(t, msgs[0].Tools, 3)
	})

	t.Run("owner inside a group", func(t *testing.T) {
		msgs := []chattypes.Message{
			group("g", leaf("c1", chattypes.ToolRef{ID: "t1"})),
			toolMsg("tm", "t1"),
		}
		p, ok := cascade.ToolOwnerPatch("tm", msgs)
		require.True(t, ok)
		require.Equal(t, "c1", p.OwnerID)
	})

	t.Run("not a tool message", func(t *testing.T) {
		msgs := []chattypes.Message{leaf("m1", chattypes.ToolRef{ID: "t1"})}
		_, ok := cascade.ToolOwnerPatch("m1", msgs)
		require.False(t, ok)
	})

	t.Run("orphaned tool message", func(t *testing.T) {
		_, ok := cascade.ToolOwnerPatch("2", []chattypes.Message{toolMsg("2", "gone")})
		require.False(t, ok)
	})
}

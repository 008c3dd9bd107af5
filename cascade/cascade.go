// Package cascade computes which messages a delete drags along with it.
//
// The functions are pure and tolerate stale or malformed lists: ids that
// cannot be found contribute nothing.
package cascade

import "github.com/contenox/chatstate/chattypes"

// DeleteClosure returns every id that must be removed together with ids,
// in discovery order and without duplicates.
//
// A leaf brings the persisted results of its own tool calls. A group
// brings its children (recursively) followed by the tool results of those
// children in tools order.
func DeleteClosure(ids []string, msgs []chattypes.Message) []string {
	c := closure{seen: make(map[string]bool)}
	for _, id := range ids {
		m, ok := chattypes.Find(msgs, id)
		if !ok {
			continue
		}
		c.collect(m)
	}
	return c.out
}

type closure struct {
	seen map[string]bool
	out  []string
}

func (c *closure) add(id string) {
	if id == "" || c.seen[id] {
		return
	}
	c.seen[id] = true
	c.out = append(c.out, id)
}

func (c *closure) collect(m chattypes.Message) {
	c.add(m.ID)
	switch m.Kind() {
	case chattypes.KindGroup:
		for _, child := range m.Children {
			c.subtree(child)
		}
		for _, child := range m.Children {
			c.toolResults(child)
		}
	default:
		c.ownResults(m)
	}
}

func (c *closure) subtree(m chattypes.Message) {
	c.add(m.ID)
	if m.Kind() == chattypes.KindGroup {
		for _, child := range m.Children {
			c.subtree(child)
		}
	}
}

func (c *closure) toolResults(m chattypes.Message) {
	if m.Kind() == chattypes.KindGroup {
		for _, child := range m.Children {
			c.toolResults(child)
		}
		return
	}
	c.ownResults(m)
}

func (c *closure) ownResults(m chattypes.Message) {
	if m.Kind() != chattypes.KindLeaf {
		return
	}
	for _, t := range m.Tools {
		if t.Result != nil {
			c.add(t.Result.ID)
		}
	}
}

// OwnerPatch strips one tool call from the assistant message that issued it.
type OwnerPatch struct {
	OwnerID string
	Tools   []chattypes.ToolRef
}

func (p OwnerPatch) Patch() chattypes.Patch {
	return chattypes.ToolsPatch(p.Tools)
}

// ToolOwnerPatch finds the message owning the tool call answered by the
// tool message toolMessageID. ok is false when the id is not a tool
// message or no owner references its tool_call_id.
func ToolOwnerPatch(toolMessageID string, msgs []chattypes.Message) (OwnerPatch, bool) {
	tool, found := chattypes.Find(msgs, toolMessageID)
	if !found || tool.Kind() != chattypes.KindTool || tool.ToolCallID == "" {
		return OwnerPatch{}, false
	}
	owner, found := findOwner(msgs, tool.ToolCallID)
	if !found {
		return OwnerPatch{}, false
	}

	remaining := make([]chattypes.ToolRef, 0, len(owner.Tools))
	for _, t := range owner.Tools {
		if t.ID != tool.ToolCallID {
			remaining = append(remaining, t)
		}
	}
	return OwnerPatch{OwnerID: owner.ID, Tools: remaining}, true
}

func findOwner(msgs []chattypes.Message, toolCallID string) (chattypes.Message, bool) {
	for _, m := range msgs {
		switch m.Kind() {
		case chattypes.KindGroup:
			if owner, ok := findOwner(m.Children, toolCallID); ok {
				return owner, true
			}
		case chattypes.KindLeaf:
			for _, t := range m.Tools {
				if t.ID == toolCallID {
					return m, true
				}
			}
		}
	}
	return chattypes.Message{}, false
}

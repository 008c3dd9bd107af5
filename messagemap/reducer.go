package messagemap

import (
	"time"

	"github.com/contenox/chatstate/chattypes"
)

// Reduce returns the list that results from applying a to msgs. msgs is
// never modified. Updates and deletes also reach group children; an
// action that matches nothing returns an equal copy.
func Reduce(msgs []chattypes.Message, a Action) []chattypes.Message {
	switch a.Type {
	case AddMessage:
		out := make([]chattypes.Message, 0, len(msgs)+1)
		out = append(out, msgs...)
		return append(out, a.Message.Clone())
	case UpdateMessage:
		return update(msgs, a.ID, a.Value)
	case DeleteMessage:
		return remove(msgs, map[string]bool{a.ID: true})
	case DeleteMessages:
		ids := make(map[string]bool, len(a.IDs))
		for _, id := range a.IDs {
			ids[id] = true
		}
		return remove(msgs, ids)
	default:
		return append([]chattypes.Message(nil), msgs...)
	}
}

func update(msgs []chattypes.Message, id string, p chattypes.Patch) []chattypes.Message {
	out := make([]chattypes.Message, len(msgs))
	for i, m := range msgs {
		switch {
		case m.ID == id:
			m = p.Apply(m)
			m.UpdatedAt = time.Now().UTC()
		case m.Kind() == chattypes.KindGroup && len(m.Children) > 0:
			m.Children = update(m.Children, id, p)
		}
		out[i] = m
	}
	return out
}

func remove(msgs []chattypes.Message, ids map[string]bool) []chattypes.Message {
	out := make([]chattypes.Message, 0, len(msgs))
	for _, m := range msgs {
		if ids[m.ID] {
			continue
		}
		if m.Kind() == chattypes.KindGroup && len(m.Children) > 0 {
			m.Children = remove(m.Children, ids)
		}
		out = append(out, m)
	}
	return out
}

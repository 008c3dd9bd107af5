package chattypes

// Assemble nests messages whose parent is an assistantGroup into that
// group's Children, keeping list order. Other parent links are plain
// back-references and stay at the top level.
func Assemble(flat []Message) []Message {
	groups := make(map[string]bool)
	for _, m := range flat {
		if m.Kind() == KindGroup {
			groups[m.ID] = true
		}
	}

	children := make(map[string][]Message)
	top := make([]Message, 0, len(flat))
	for _, m := range flat {
		if m.ParentID != "" && m.ParentID != m.ID && groups[m.ParentID] {
			children[m.ParentID] = append(children[m.ParentID], m)
			continue
		}
		top = append(top, m)
	}

	var attach func(m Message, seen map[string]bool) Message
	attach = func(m Message, seen map[string]bool) Message {
		if m.Kind() != KindGroup || seen[m.ID] {
			return m
		}
		seen[m.ID] = true
		kids := children[m.ID]
		m.Children = make([]Message, 0, len(kids))
		for _, c := range kids {
			m.Children = append(m.Children, attach(c, seen))
		}
		return m
	}

	seen := make(map[string]bool)
	for i := range top {
		top[i] = attach(top[i], seen)
	}
	return top
}

package tree

import (
	"fmt"
	"strings"

	"github.com/go-drift/hostbridge/pkg/host"
)

// Dump renders the subtree rooted at node as indented text, one node per line:
//
//	#1 root
//	  #2 class="list"
//	    #3 "hello"
//
// A line holds the node id, its name, its attributes sorted by name and its
// quoted text, in that order. Output is deterministic for a given tree.
func (m *Mutator) Dump(node NodeID) string {
	var b strings.Builder
	m.cell.Must(func(s host.Store) {
		m.dump(&b, s, node, 0)
	})
	return b.String()
}

func (m *Mutator) dump(b *strings.Builder, s host.Store, node NodeID, depth int) {
	rec := m.get("tree.Dump", node)
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(node.String())

	if v, ok := s.Component(rec.Entity, NameComponent); ok {
		fmt.Fprintf(b, " %v", v)
	}
	for _, name := range s.ComponentNames(rec.Entity) {
		key, ok := strings.CutPrefix(name, AttributePrefix)
		if !ok {
			continue
		}
		v, _ := s.Component(rec.Entity, name)
		fmt.Fprintf(b, " %s=%q", key, fmt.Sprint(v))
	}
	if v, ok := s.Component(rec.Entity, TextComponent); ok {
		fmt.Fprintf(b, " %q", fmt.Sprint(v))
	}
	b.WriteByte('\n')

	for _, e := range s.Children(rec.Entity) {
		if id, ok := m.registry.Lookup(e); ok {
			m.dump(b, s, id, depth+1)
		}
	}
}

package bridge

import (
	"slices"
	"strings"
)

// Snapshot describes the mounted roots.
type Snapshot struct {
	Tick  uint64         `json:"tick"`
	Nodes int            `json:"nodes"`
	Roots []RootSnapshot `json:"roots"`
}

// RootSnapshot describes one root.
type RootSnapshot struct {
	Entity  string          `json:"entity"`
	Node    uint64          `json:"node"`
	Owner   string          `json:"owner"`
	Watches []WatchSnapshot `json:"watches,omitempty"`
	Tree    string          `json:"tree"`
}

// WatchSnapshot describes the subscriptions on one resource.
type WatchSnapshot struct {
	Resource string `json:"resource"`
	Triggers int    `json:"triggers"`
	LastSeen uint64 `json:"lastSeen"`
}

// Snapshot captures every root and its tree. It reads the host, so it must
// run while the store is leased: from a task, or between Enter and Exit.
func (r *Runtime) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:  r.ticks,
		Nodes: r.registry.Len(),
	}
	for _, id := range r.order {
		rt := r.roots[id]
		rs := RootSnapshot{
			Entity: id.String(),
			Node:   uint64(rt.node),
			Owner:  rt.owner.ID().String(),
			Tree:   r.mutator.Dump(rt.node),
		}
		for res, w := range rt.watches {
			rs.Watches = append(rs.Watches, WatchSnapshot{
				Resource: string(res),
				Triggers: len(w.triggers),
				LastSeen: w.lastSeen,
			})
		}
		slices.SortFunc(rs.Watches, func(a, b WatchSnapshot) int {
			return strings.Compare(a.Resource, b.Resource)
		})
		snap.Roots = append(snap.Roots, rs)
	}
	return snap
}

package view

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/hostbridge/pkg/access"
	"github.com/go-drift/hostbridge/pkg/executor"
	"github.com/go-drift/hostbridge/pkg/host"
	"github.com/go-drift/hostbridge/pkg/nodes"
	"github.com/go-drift/hostbridge/pkg/reactive"
	"github.com/go-drift/hostbridge/pkg/tree"
)

type fixture struct {
	ctx  *Context
	m    *tree.Mutator
	exec *executor.Executor
	root tree.NodeID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cell := access.NewCell()
	g, err := cell.Enter(host.NewWorld())
	require.NoError(t, err)
	t.Cleanup(g.Exit)

	m := tree.New(nodes.NewRegistry(), cell)
	exec := executor.New()
	root := m.CreateNode()
	m.SetName(root, "root")
	return &fixture{
		ctx:  &Context{Mutator: m, Executor: exec, Owner: reactive.NewOwner()},
		m:    m,
		exec: exec,
		root: root,
	}
}

// shape renders the subtree as name[children] with text quoted, ignoring ids.
func (f *fixture) shape(id tree.NodeID) string {
	var b strings.Builder
	if name, ok := f.m.Name(id); ok {
		b.WriteString(name)
	} else if text, ok := f.m.Text(id); ok {
		b.WriteString(strconv.Quote(text))
	} else {
		b.WriteString("_")
	}
	children := f.m.Children(id)
	if len(children) > 0 {
		parts := make([]string, len(children))
		for i, c := range children {
			parts[i] = f.shape(c)
		}
		b.WriteString("[" + strings.Join(parts, " ") + "]")
	}
	return b.String()
}

func (f *fixture) mount(v View) State {
	s := v.Build(f.ctx)
	s.Mount(f.root, 0)
	return s
}

func TestElement_BuildAndMount(t *testing.T) {
	f := newFixture(t)
	f.mount(Element{
		Name:  "list",
		Attrs: map[string]string{"class": "items"},
		Children: []View{
			Text("a"),
			El("item", Text("b")),
		},
	})

	assert.Equal(t, `root[list["a" item["b"]]]`, f.shape(f.root))
	list, _ := f.m.FirstChild(f.root)
	class, ok := f.m.Attribute(list, "class")
	require.True(t, ok)
	assert.Equal(t, "items", class)
}

func TestText_RebuildKeepsNode(t *testing.T) {
	f := newFixture(t)
	s := f.mount(Text("one"))
	before := s.Nodes()

	next := s.Rebuild(Text("two"))
	assert.Same(t, s, next)
	assert.Equal(t, before, next.Nodes())
	assert.Equal(t, `root["two"]`, f.shape(f.root))
}

func TestElement_RebuildPatchesAttributesAndChildren(t *testing.T) {
	f := newFixture(t)
	s := f.mount(Element{
		Name:     "box",
		Attrs:    map[string]string{"a": "1", "b": "2"},
		Children: []View{Text("x"), Text("y"), Text("z")},
	})
	box := s.Nodes()[0]

	s = s.Rebuild(Element{
		Name:     "box",
		Attrs:    map[string]string{"b": "3", "c": "4"},
		Children: []View{Text("x"), Text("w")},
	})

	assert.Equal(t, box, s.Nodes()[0], "same node")
	assert.Equal(t, `root[box["x" "w"]]`, f.shape(f.root))
	_, ok := f.m.Attribute(box, "a")
	assert.False(t, ok)
	b, _ := f.m.Attribute(box, "b")
	c, _ := f.m.Attribute(box, "c")
	assert.Equal(t, "3", b)
	assert.Equal(t, "4", c)

	s.Rebuild(Element{
		Name:     "box",
		Children: []View{Text("x"), Text("w"), El("more")},
	})
	assert.Equal(t, `root[box["x" "w" more]]`, f.shape(f.root))
}

func TestRebuild_DifferentShapeReplacesInPlace(t *testing.T) {
	f := newFixture(t)
	f.mount(El("first"))
	s := f.mount(Text("middle"))
	f.mount(El("last"))
	old := s.Nodes()[0]

	s = s.Rebuild(Fragment{El("p"), El("q")})

	assert.Equal(t, "root[first p q fragment last]", f.shape(f.root))
	assert.False(t, f.m.Alive(old))
	assert.Len(t, s.Nodes(), 2)
}

func TestFragment_MountBeforeMarker(t *testing.T) {
	f := newFixture(t)
	f.mount(El("a"))
	marker := f.mount(El("z")).Nodes()[0]

	s := Fragment{Text("1"), Text("2")}.Build(f.ctx)
	s.Mount(f.root, marker)

	assert.Equal(t, `root[a "1" "2" fragment z]`, f.shape(f.root))
}

func TestFragment_RebuildGrowsInPlace(t *testing.T) {
	f := newFixture(t)
	s := f.mount(Fragment{Text("1")})
	f.mount(El("tail"))

	s = s.Rebuild(Fragment{Text("1"), Text("2"), Text("3")})
	assert.Equal(t, `root["1" "2" "3" fragment tail]`, f.shape(f.root))

	s.Rebuild(Fragment{Text("9")})
	assert.Equal(t, `root["9" fragment tail]`, f.shape(f.root))
}

func TestFragment_EmptyGrowsAtItsPosition(t *testing.T) {
	f := newFixture(t)
	s := f.mount(El("list", Fragment{}, Text("b")))

	s.Rebuild(El("list", Fragment{Text("a")}, Text("b")))
	assert.Equal(t, `root[list["a" fragment "b"]]`, f.shape(f.root))
}

func TestFragment_EmptyReplacedInPlace(t *testing.T) {
	f := newFixture(t)
	before := f.m.Registry().Len()
	s := f.mount(El("list", Fragment{}, Text("b")))

	s = s.Rebuild(El("list", Text("x"), Text("b")))
	assert.Equal(t, `root[list["x" "b"]]`, f.shape(f.root))

	s.Unmount()
	assert.Equal(t, before, f.m.Registry().Len(), "no orphaned nodes")
}

func TestRebuild_ThroughEmptyFragmentKeepsOrder(t *testing.T) {
	f := newFixture(t)
	s := f.mount(El("list", Text("a"), Text("b")))

	s = s.Rebuild(El("list", Fragment{}, Text("b")))
	assert.Equal(t, `root[list[fragment "b"]]`, f.shape(f.root))

	s.Rebuild(El("list", El("p"), Text("b")))
	assert.Equal(t, `root[list[p "b"]]`, f.shape(f.root))
}

func TestFragment_RebuildBeforeMountThenMount(t *testing.T) {
	f := newFixture(t)
	s := Fragment{Text("1")}.Build(f.ctx)
	s = s.Rebuild(Fragment{Text("1"), El("two")})
	f.mount(El("tail"))

	s.Mount(f.root, 0)
	assert.Equal(t, `root[tail "1" two fragment]`, f.shape(f.root))
}

func TestMount_MarkerMissFallsBackToAppend(t *testing.T) {
	f := newFixture(t)
	f.mount(El("a"))
	stranger := f.m.CreateNode()

	El("b").Build(f.ctx).Mount(f.root, stranger)
	assert.Equal(t, "root[a b]", f.shape(f.root))
}

func TestUnmount_DestroysEverything(t *testing.T) {
	f := newFixture(t)
	before := f.m.Registry().Len()
	s := f.mount(El("outer", El("inner", Text("t")), Fragment{Text("u")}))

	s.Unmount()
	assert.Equal(t, "root", f.shape(f.root))
	assert.Equal(t, before, f.m.Registry().Len())
}

func TestInsertBeforeThis(t *testing.T) {
	f := newFixture(t)
	s := f.mount(El("b"))

	require.True(t, s.InsertBeforeThis(El("a").Build(f.ctx)))
	assert.Equal(t, "root[a b]", f.shape(f.root))

	detached := El("c").Build(f.ctx)
	assert.False(t, detached.InsertBeforeThis(El("d").Build(f.ctx)))
	assert.False(t, Fragment{}.Build(f.ctx).InsertBeforeThis(El("e").Build(f.ctx)))
}

func TestDynamic_RerendersOnFlush(t *testing.T) {
	f := newFixture(t)
	trigger := reactive.NewTrigger()
	count := 0
	f.mount(El("head"))
	f.mount(Dynamic{
		Trigger: trigger,
		Render: func() View {
			return Text("n=" + strconv.Itoa(count))
		},
	})
	f.mount(El("foot"))

	assert.Equal(t, `root[head "n=0" dynamic foot]`, f.shape(f.root))

	count = 1
	trigger.Notify()
	trigger.Notify()
	assert.Equal(t, `root[head "n=0" dynamic foot]`, f.shape(f.root), "nothing changes before flush")

	stats := f.exec.Flush()
	assert.Equal(t, 1, stats.Completed, "notifications within a tick coalesce")
	assert.Equal(t, `root[head "n=1" dynamic foot]`, f.shape(f.root))
}

func TestDynamic_EmptyContentKeepsPosition(t *testing.T) {
	f := newFixture(t)
	trigger := reactive.NewTrigger()
	show := false
	f.mount(El("a"))
	f.mount(Dynamic{
		Trigger: trigger,
		Render: func() View {
			if show {
				return Fragment{Text("x"), Text("y")}
			}
			return Fragment{}
		},
	})
	f.mount(El("b"))
	assert.Equal(t, "root[a fragment dynamic b]", f.shape(f.root))

	show = true
	trigger.Notify()
	f.exec.Flush()
	assert.Equal(t, `root[a "x" "y" fragment dynamic b]`, f.shape(f.root))
}

func TestDynamic_NestedContentOwnerDisposedOnRerender(t *testing.T) {
	f := newFixture(t)
	outer := reactive.NewTrigger()
	inner := reactive.NewTrigger()
	f.mount(Dynamic{
		Trigger: outer,
		Render: func() View {
			return Dynamic{Trigger: inner, Render: func() View { return Text("i") }}
		},
	})
	assert.Equal(t, 1, inner.Listeners())

	outer.Notify()
	f.exec.Flush()
	assert.Equal(t, 1, inner.Listeners(), "old inner subscription dropped, new one added")
	assert.Equal(t, `root["i" dynamic dynamic]`, f.shape(f.root))
}

func TestDynamic_UnmountUnsubscribes(t *testing.T) {
	f := newFixture(t)
	trigger := reactive.NewTrigger()
	renders := 0
	s := f.mount(Dynamic{
		Trigger: trigger,
		Render: func() View {
			renders++
			return Text("x")
		},
	})

	trigger.Notify()
	s.Unmount()
	f.exec.Flush()

	assert.Equal(t, 1, renders, "queued re-render skipped after unmount")
	assert.Zero(t, trigger.Listeners())
	assert.Equal(t, "root", f.shape(f.root))
}

func TestDynamic_UnmountReleasesParentCleanup(t *testing.T) {
	f := newFixture(t)
	base := f.ctx.Owner.Cleanups()
	for range 3 {
		s := f.mount(Dynamic{Trigger: reactive.NewTrigger(), Render: func() View { return Text("x") }})
		s.Unmount()
	}
	assert.Equal(t, base, f.ctx.Owner.Cleanups())
}

func TestDynamic_OwnerDisposeStopsUpdates(t *testing.T) {
	f := newFixture(t)
	trigger := reactive.NewTrigger()
	renders := 0
	f.mount(Dynamic{
		Trigger: trigger,
		Render: func() View {
			renders++
			return Text("x")
		},
	})

	f.ctx.Owner.Dispose()
	trigger.Notify()
	f.exec.Flush()
	assert.Equal(t, 1, renders)
	assert.Zero(t, trigger.Listeners())
}

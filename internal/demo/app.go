// Package demo is the sample application the CLI mounts: a panel that shows
// a host-side frame counter.
package demo

import (
	"strconv"

	"github.com/go-drift/hostbridge/pkg/bridge"
	"github.com/go-drift/hostbridge/pkg/host"
	"github.com/go-drift/hostbridge/pkg/view"
)

const (
	// FrameResource holds the number of host frames as a uint64.
	FrameResource host.ResourceID = "demo:frame"
	// SessionComponent marks the entity the app keeps alive while mounted.
	SessionComponent = "demo:session"
)

// Setup inserts the resources the app reads.
func Setup(w *host.World) {
	w.InsertResource(FrameResource, uint64(0))
}

// Step advances the frame counter. It is the host system run before every
// bridge tick.
func Step(w *host.World) {
	w.UpdateResource(FrameResource, func(old any) any {
		n, _ := old.(uint64)
		return n + 1
	})
}

// App renders the frame counter. The counter text is rebuilt every tick in
// which the host advanced the frame.
func App(ctx *bridge.Context) view.View {
	frame := bridge.UseResource(ctx, FrameResource)
	bridge.UseLifecycleEntity(ctx, func(s host.Store) host.Entity {
		e := s.Spawn()
		s.SetComponent(e, SessionComponent, ctx.Root().String())
		return e
	})

	return view.Element{
		Name:  "panel",
		Attrs: map[string]string{"title": "hostbridge"},
		Children: []view.View{
			view.El("label", view.Text("frame")),
			view.Dynamic{
				Trigger: frame.Trigger(),
				Render: func() view.View {
					n, _ := bridge.ResourceValue[uint64](frame)
					return view.Text(strconv.FormatUint(n, 10))
				},
			},
		},
	}
}

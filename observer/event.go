package observer

import (
	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/hooking"
	"github.com/sarchlab/framescope/idgen"
	"github.com/sarchlab/framescope/tree"
)

// HookPosNodeCreated fires when a node is tracked for the first time. The
// item is a NodeEvent.
var HookPosNodeCreated = &hooking.HookPos{Name: "NodeCreated"}

// HookPosNodeDestroyed fires when a tracked node is no longer reachable. The
// item is a NodeEvent carrying the last known position.
var HookPosNodeDestroyed = &hooking.HookPos{Name: "NodeDestroyed"}

// HookPosChangeMeasured fires after the composite operation of a tracked node
// ran. The item is a Measurement.
var HookPosChangeMeasured = &hooking.HookPos{Name: "ChangeMeasured"}

// HookPosLifecycleMeasured fires after a lifecycle operation of a tracked
// node ran. The item is a Measurement.
var HookPosLifecycleMeasured = &hooking.HookPos{Name: "LifecycleMeasured"}

// NodeEvent describes the creation or the destruction of a node.
type NodeEvent struct {
	Node        tree.Node
	Identity    idgen.ID
	IsComposite bool
	Position    tree.Position
}

// Measurement is one timing sample attributed to a tracked node.
type Measurement struct {
	Node        tree.Node
	Identity    idgen.ID
	IsComposite bool
	Position    tree.Position
	Kind        frame.Kind
	DurationMs  float64
}

// Config holds the callbacks of an observer. Nil callbacks are skipped. The
// composite operations are only instrumented when OnChangeMeasured is set
// and the lifecycle operations only when OnLifecycleMeasured is set.
type Config struct {
	OnCreate            func(e NodeEvent)
	OnDestroy           func(e NodeEvent)
	OnChangeMeasured    func(m Measurement)
	OnLifecycleMeasured func(m Measurement)
}

type configHook struct {
	cfg Config
}

func (h *configHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosNodeCreated:
		if h.cfg.OnCreate != nil {
			h.cfg.OnCreate(ctx.Item.(NodeEvent))
		}
	case HookPosNodeDestroyed:
		if h.cfg.OnDestroy != nil {
			h.cfg.OnDestroy(ctx.Item.(NodeEvent))
		}
	case HookPosChangeMeasured:
		if h.cfg.OnChangeMeasured != nil {
			h.cfg.OnChangeMeasured(ctx.Item.(Measurement))
		}
	case HookPosLifecycleMeasured:
		if h.cfg.OnLifecycleMeasured != nil {
			h.cfg.OnLifecycleMeasured(ctx.Item.(Measurement))
		}
	}
}

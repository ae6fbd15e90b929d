// Package demo builds a synthetic component tree that mutates over time. It
// gives the profiler something to observe without a real UI framework.
package demo

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/sarchlab/framescope/hosttree"
	"github.com/sarchlab/framescope/instrumentation"
	"github.com/sarchlab/framescope/timing"
	"github.com/sarchlab/framescope/tree"
)

// Lifecycle hook names of the demo items.
const (
	HookOnInit           = "ngOnInit"
	HookDoCheck          = "ngDoCheck"
	HookAfterViewChecked = "ngAfterViewChecked"
	HookOnDestroy        = "ngOnDestroy"
	HookOnChanges        = "ngOnChanges"
)

// App is a todo-list like tree: an app with a header, a list of items, each
// item carrying a tooltip directive, and a footer.
type App struct {
	Tree *hosttree.Tree

	engine *timing.SerialEngine
	clock  *instrumentation.ManualClock
	rng    *rand.Rand
	log    zerolog.Logger

	appType, headerType, listType, itemType, footerType *hosttree.Type
	tooltipType                                         *hosttree.Type

	root, list *hosttree.Node
	items      []*hosttree.Node
	nextItem   int
	ticks      int
}

// New builds the initial tree with numItems items. The render and hook
// operations advance clock by pseudo random durations drawn from seed.
func New(
	engine *timing.SerialEngine,
	clock *instrumentation.ManualClock,
	numItems int,
	seed int64,
	logger zerolog.Logger,
) *App {
	a := &App{
		Tree:   hosttree.New(engine),
		engine: engine,
		clock:  clock,
		rng:    rand.New(rand.NewSource(seed)),
		log:    logger,
	}

	a.createTypes()

	a.root = a.Tree.NewNode(a.appType, "app")
	a.list = a.Tree.NewNode(a.listType, "list")
	a.Tree.AppendRoot(a.root)
	a.Tree.Append(a.root, a.Tree.NewNode(a.headerType, "header"))
	a.Tree.Append(a.root, a.list)
	a.Tree.Append(a.root, a.Tree.NewNode(a.footerType, "footer"))

	for i := 0; i < numItems; i++ {
		a.addItem()
	}

	return a
}

func (a *App) work(minUs, maxUs int) tree.Operation {
	return func(tree.Node, ...any) (any, error) {
		us := minUs + a.rng.Intn(maxUs-minUs+1)
		a.clock.Advance(time.Duration(us) * time.Microsecond)

		return nil, nil
	}
}

func (a *App) createTypes() {
	a.appType = hosttree.NewComponentType("AppComponent", a.work(300, 900))
	a.headerType = hosttree.NewComponentType("HeaderComponent", a.work(50, 200))
	a.listType = hosttree.NewComponentType("ListComponent", a.work(200, 600)).
		WithHook(HookDoCheck, a.work(20, 80))
	a.footerType = hosttree.NewComponentType("FooterComponent", a.work(50, 150))

	a.itemType = hosttree.NewComponentType("ItemComponent", a.work(100, 1500)).
		WithHook(HookOnInit, a.work(200, 600)).
		WithHook(HookDoCheck, a.work(10, 50)).
		WithHook(HookAfterViewChecked, a.work(10, 40)).
		WithHook(HookOnDestroy, a.work(50, 150))

	a.tooltipType = hosttree.NewDirectiveType("TooltipDirective").
		WithHook(HookOnChanges, a.work(5, 30))
}

func (a *App) addItem() *hosttree.Node {
	item := a.Tree.NewNode(a.itemType, fmt.Sprintf("item-%d", a.nextItem))
	a.nextItem++

	idx := 0
	if len(a.items) > 0 {
		idx = a.rng.Intn(len(a.items) + 1)
	}

	a.Tree.Insert(a.list, idx, item)
	a.Tree.Append(item, a.Tree.NewNode(a.tooltipType, "tooltip"))
	a.items = append(a.items, item)

	a.mustCall(item, HookOnInit)

	return item
}

func (a *App) removeItem() {
	if len(a.items) == 0 {
		return
	}

	i := a.rng.Intn(len(a.items))
	item := a.items[i]
	a.items = append(a.items[:i], a.items[i+1:]...)

	a.mustCall(item, HookOnDestroy)
	a.Tree.Remove(item)
}

func (a *App) moveItem() {
	if len(a.items) < 2 {
		return
	}

	item := a.items[a.rng.Intn(len(a.items))]
	a.Tree.Move(item, a.list, a.rng.Intn(len(a.items)))
}

func (a *App) mustCall(n *hosttree.Node, hook string) {
	if _, err := a.Tree.CallHook(n, hook); err != nil {
		panic(err)
	}
}

// NumItems returns the number of items currently in the list.
func (a *App) NumItems() int {
	return len(a.items)
}

// Ticks returns the number of ticks run so far.
func (a *App) Ticks() int {
	return a.ticks
}

// Tick runs one turn of work: an optional mutation of the list followed by
// a change detection pass.
func (a *App) Tick() error {
	a.ticks++

	source := "tick"

	switch r := a.rng.Intn(10); {
	case r < 2:
		source = "click"
		a.addItem()
	case r < 3:
		source = "click"
		a.removeItem()
	case r < 4:
		source = "drag"
		a.moveItem()
	}

	a.Tree.SetSource(source)

	a.mustCall(a.list, HookDoCheck)
	for _, item := range a.items {
		a.mustCall(item, HookDoCheck)
		for _, c := range item.Children() {
			a.mustCall(c, HookOnChanges)
		}
	}

	if err := a.Tree.CheckAll(); err != nil {
		return err
	}

	for _, item := range a.items {
		a.mustCall(item, HookAfterViewChecked)
	}

	a.log.Trace().
		Int("tick", a.ticks).
		Str("source", source).
		Int("items", len(a.items)).
		Msg("tick")

	return nil
}

// Schedule queues n ticks on the engine, interval apart, starting one
// interval from now. onTick runs after each tick.
func (a *App) Schedule(n int, interval time.Duration, onTick func(i int)) {
	start := a.engine.Now()

	for i := 0; i < n; i++ {
		i := i
		t := start + timing.DurationToVTime(interval)*float64(i+1)

		a.engine.Schedule(timing.NewFuncEvent(t, func() {
			if err := a.Tick(); err != nil {
				a.log.Error().Err(err).Int("tick", i).Msg("tick failed")
			}

			if onTick != nil {
				onTick(i)
			}
		}, false))
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/aretw0/cartkeeper/internal/logging"
	"github.com/aretw0/cartkeeper/internal/presentation/tui"
	"github.com/aretw0/cartkeeper/pkg/adapters/memory"
	"github.com/aretw0/cartkeeper/pkg/cart"
	"github.com/aretw0/cartkeeper/pkg/domain"
	"github.com/aretw0/cartkeeper/pkg/session"
)

var errSimulatedOutage = errors.New("simulated provider outage")

var catalog = []domain.ItemInput{
	{ProductID: "p1", Name: "Keyboard", Price: 100, Quantity: 1},
	{ProductID: "p2", Name: "Mouse", Price: 50, Quantity: 2},
	{ProductID: "p3", Name: "Monitor", Price: 300, Quantity: 1},
	{ProductID: "p4", Name: "Headset", Price: 80, Quantity: 1},
	{ProductID: "p5", Name: "Cable", Price: 5, Quantity: 4},
	{ProductID: "p6", Name: "Webcam", Price: 60, Quantity: 1},
}

// DemoOptions configures RunDemo.
type DemoOptions struct {
	Out    io.Writer
	Render tui.Renderer
	Logger *slog.Logger
	// ExpireEvery > 0 adds a run over the whole catalog forcing expiry before every n-th add.
	ExpireEvery int
}

// DemoReport summarizes a demo run.
type DemoReport struct {
	Steps      int
	Recoveries int64
	Final      *domain.Cart
}

type demo struct {
	opts       DemoOptions
	provider   *memory.Provider
	coord      *cart.Coordinator
	steps      int
	recoveries atomic.Int64
}

// RunDemo walks through the recovery scenarios against an in-process simulated
// provider, writing each resulting cart to opts.Out.
func RunDemo(ctx context.Context, opts DemoOptions) (*DemoReport, error) {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Render == nil {
		opts.Render = tui.Plain
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	d := &demo{
		opts:     opts,
		provider: memory.NewProvider(),
	}
	d.coord = cart.New(d.provider, session.NewManager(memory.NewStore(), session.WithLogger(opts.Logger)),
		cart.WithLogger(opts.Logger),
		cart.WithLifecycleHooks(domain.LifecycleHooks{
			OnRecovered: func(context.Context, *domain.RecoveryEvent) { d.recoveries.Add(1) },
		}),
	)

	scenarios := []func(context.Context) (*domain.Cart, error){
		d.scenarioAB,
		d.scenarioC,
	}
	var last *domain.Cart
	for _, run := range scenarios {
		c, err := run(ctx)
		if err != nil {
			return nil, err
		}
		last = c
	}
	last, err := d.scenarioD(ctx, last.ID)
	if err != nil {
		return nil, err
	}
	if opts.ExpireEvery > 0 {
		if last, err = d.spree(ctx, opts.ExpireEvery); err != nil {
			return nil, err
		}
	}

	return &DemoReport{Steps: d.steps, Recoveries: d.recoveries.Load(), Final: last}, nil
}

func (d *demo) show(title string, c *domain.Cart) error {
	d.steps++
	out, err := d.opts.Render(tui.CartMarkdown(title, c))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(d.opts.Out, out)
	return err
}

func (d *demo) note(format string, args ...any) {
	fmt.Fprintf(d.opts.Out, ">>> %s\n", fmt.Sprintf(format, args...))
}

func expectTotal(scenario string, c *domain.Cart, want float64) error {
	if c.Total != want {
		return fmt.Errorf("scenario %s: total = %.2f, want %.2f", scenario, c.Total, want)
	}
	return nil
}

func (d *demo) scenarioAB(ctx context.Context) (*domain.Cart, error) {
	c, err := d.coord.CreateCart(ctx)
	if err != nil {
		return nil, err
	}
	if c, err = d.coord.AddItem(ctx, c.ID, catalog[0]); err != nil {
		return nil, err
	}
	if err := d.show("A: first item", c); err != nil {
		return nil, err
	}
	if err := expectTotal("A", c, 100); err != nil {
		return nil, err
	}

	d.note("Forcing expiry of the backend context for cart %s", c.ID)
	if err := d.coord.ForceExpiry(ctx, c.ID); err != nil {
		return nil, err
	}
	if c, err = d.coord.AddItem(ctx, c.ID, catalog[1]); err != nil {
		return nil, err
	}
	if err := d.show("B: add after expiry", c); err != nil {
		return nil, err
	}
	return c, expectTotal("B", c, 200)
}

func (d *demo) scenarioC(ctx context.Context) (*domain.Cart, error) {
	c, err := d.coord.CreateCart(ctx)
	if err != nil {
		return nil, err
	}
	for _, in := range catalog[:2] {
		if c, err = d.coord.AddItem(ctx, c.ID, in); err != nil {
			return nil, err
		}
	}
	stale := c.Items[0].ID

	d.note("Forcing expiry, then removing item %s by its pre-expiry id", stale)
	if err := d.coord.ForceExpiry(ctx, c.ID); err != nil {
		return nil, err
	}
	if c, err = d.coord.RemoveItem(ctx, c.ID, stale); err != nil {
		return nil, err
	}
	if err := d.show("C: remove with a stale item id", c); err != nil {
		return nil, err
	}
	if len(c.Items) != 1 || c.Items[0].ProductID != catalog[1].ProductID {
		return nil, fmt.Errorf("scenario C: unexpected items %+v", c.Items)
	}
	return c, nil
}

func (d *demo) scenarioD(ctx context.Context, cartID string) (*domain.Cart, error) {
	d.note("Forcing expiry with context creation failing")
	if err := d.coord.ForceExpiry(ctx, cartID); err != nil {
		return nil, err
	}
	d.provider.InjectFault(memory.OpCreate, errSimulatedOutage)
	_, err := d.coord.GetCart(ctx, cartID)
	if !errors.Is(err, domain.ErrRecoveryFailed) {
		return nil, fmt.Errorf("scenario D: expected recovery failure, got %v", err)
	}
	d.note("Caller sees %s: %v", domain.KindOf(err), err)

	d.provider.ClearFaults()
	c, err := d.coord.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := d.show("D: provider healthy again", c); err != nil {
		return nil, err
	}
	return c, expectTotal("D", c, 100)
}

func (d *demo) spree(ctx context.Context, every int) (*domain.Cart, error) {
	c, err := d.coord.CreateCart(ctx)
	if err != nil {
		return nil, err
	}
	for i, in := range catalog {
		if i > 0 && i%every == 0 {
			if err := d.coord.ForceExpiry(ctx, c.ID); err != nil {
				return nil, err
			}
		}
		if c, err = d.coord.AddItem(ctx, c.ID, in); err != nil {
			return nil, err
		}
	}
	if err := d.show(fmt.Sprintf("Catalog run, expiring every %d adds", every), c); err != nil {
		return nil, err
	}
	var want float64
	for _, in := range catalog {
		want += in.Price * float64(in.Quantity)
	}
	return c, expectTotal("catalog", c, want)
}

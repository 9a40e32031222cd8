// Package cart owns the shopping cart: an ordered set of product lines that
// is written through to a storage slot on every change.
package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"MiniCart/internal/catalog"
	"MiniCart/internal/storage"
)

// SlotKey is the storage slot holding the serialized cart.
const SlotKey = "shopping-cart"

// MaxQuantity caps a single line. Increases past it saturate.
const MaxQuantity = 9999

// Line is one product in the cart. Quantity is always at least 1.
type Line struct {
	ProductID int64 `json:"id"`
	Quantity  int   `json:"quantity"`
}

// Snapshot is a consistent view of the cart handed to observers.
type Snapshot struct {
	Lines         []Line
	TotalQuantity int
	IsOpen        bool
}

// Cart is the single owner of cart state. All changes go through its
// methods; each one runs to completion, including its write and its
// observer notification, before the next begins.
type Cart struct {
	slot *storage.Slot[[]Line]
	log  *zap.Logger

	mu        sync.Mutex
	lines     []Line
	open      bool
	observers map[int]func(Snapshot)
	nextObs   int
}

// New loads the cart from b under SlotKey. A nil backend keeps the cart in
// memory only.
func New(ctx context.Context, b storage.Backend, log *zap.Logger) *Cart {
	if log == nil {
		log = zap.NewNop()
	}
	return FromSlot(storage.NewSlot(ctx, b, SlotKey, []Line{}, log), log)
}

// FromSlot builds a cart over an existing slot. Stored lines that break the
// cart invariants are dropped or merged.
func FromSlot(slot *storage.Slot[[]Line], log *zap.Logger) *Cart {
	if log == nil {
		log = zap.NewNop()
	}
	stored := slot.Get()
	lines := normalize(stored)
	if len(lines) != len(stored) {
		log.Warn("dropped invalid cart lines", zap.Int("stored", len(stored)), zap.Int("kept", len(lines)))
	}
	return &Cart{
		slot:      slot,
		log:       log,
		lines:     lines,
		observers: map[int]func(Snapshot){},
	}
}

func normalize(in []Line) []Line {
	out := make([]Line, 0, len(in))
	pos := map[int64]int{}
	for _, l := range in {
		if l.Quantity < 1 {
			continue
		}
		l.Quantity = min(l.Quantity, MaxQuantity)
		if i, ok := pos[l.ProductID]; ok {
			out[i].Quantity = min(out[i].Quantity+l.Quantity, MaxQuantity)
			continue
		}
		pos[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

func (c *Cart) indexOf(id int64) int {
	for i, l := range c.lines {
		if l.ProductID == id {
			return i
		}
	}
	return -1
}

// Quantity returns the quantity for id, or 0 when it is not in the cart.
func (c *Cart) Quantity(id int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(id); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

// Increase adds one of id, creating the line if needed. A line already at
// MaxQuantity stays there.
func (c *Cart) Increase(id int64) {
	c.mutate(func() {
		if i := c.indexOf(id); i >= 0 {
			if c.lines[i].Quantity < MaxQuantity {
				c.lines[i].Quantity++
			}
			return
		}
		c.lines = append(c.lines, Line{ProductID: id, Quantity: 1})
	})
}

// Decrease removes one of id and drops the line at zero. Absent ids are
// left alone.
func (c *Cart) Decrease(id int64) {
	c.mutate(func() {
		i := c.indexOf(id)
		switch {
		case i < 0:
		case c.lines[i].Quantity <= 1:
			c.removeAt(i)
		default:
			c.lines[i].Quantity--
		}
	})
}

// SetQuantity sets the quantity for id directly; n <= 0 removes the line and
// n above MaxQuantity is capped.
func (c *Cart) SetQuantity(id int64, n int) {
	c.mutate(func() { c.set(id, n) })
}

// Adjust changes the quantity for id by delta, as a +/- stepper does.
func (c *Cart) Adjust(id int64, delta int) {
	c.mutate(func() {
		cur := 0
		if i := c.indexOf(id); i >= 0 {
			cur = c.lines[i].Quantity
		}
		// cur is within [0, MaxQuantity], so the clamped sum cannot overflow
		c.set(id, cur+max(-MaxQuantity, min(delta, MaxQuantity)))
	})
}

// Remove drops the line for id. Removing an absent id is a no-op.
func (c *Cart) Remove(id int64) {
	c.mutate(func() {
		if i := c.indexOf(id); i >= 0 {
			c.removeAt(i)
		}
	})
}

func (c *Cart) set(id int64, n int) {
	n = min(n, MaxQuantity)
	i := c.indexOf(id)
	switch {
	case n <= 0 && i >= 0:
		c.removeAt(i)
	case n <= 0:
	case i >= 0:
		c.lines[i].Quantity = n
	default:
		c.lines = append(c.lines, Line{ProductID: id, Quantity: n})
	}
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
}

// mutate applies fn, then writes the cart through and notifies observers
// exactly once, even when fn changed nothing.
func (c *Cart) mutate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn()
	c.slot.Set(c.copyLines())
	c.notify()
}

func (c *Cart) notify() {
	snap := c.snapshot()
	for _, fn := range c.observers {
		fn(snap)
	}
}

func (c *Cart) copyLines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) snapshot() Snapshot {
	return Snapshot{
		Lines:         c.copyLines(),
		TotalQuantity: c.totalQuantity(),
		IsOpen:        c.open,
	}
}

func (c *Cart) totalQuantity() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLines()
}

func (c *Cart) TotalQuantity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalQuantity()
}

// TotalPrice prices the cart against products as they are now. Lines whose
// product is not in the catalog count as zero; this happens while the
// catalog is still loading.
func (c *Cart) TotalPrice(products []catalog.Product) decimal.Decimal {
	byID := catalog.Index(products)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalPrice(byID)
}

func (c *Cart) totalPrice(byID map[int64]catalog.Product) decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		p, ok := byID[l.ProductID]
		if !ok {
			continue
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// View is a snapshot priced against a catalog, taken under one lock so the
// lines and the total always agree.
type View struct {
	Snapshot
	TotalPrice decimal.Decimal
	Persistent bool
}

// View prices the cart against products and captures its state atomically.
func (c *Cart) View(products []catalog.Product) View {
	byID := catalog.Index(products)

	c.mu.Lock()
	defer c.mu.Unlock()

	return View{
		Snapshot:   c.snapshot(),
		TotalPrice: c.totalPrice(byID),
		Persistent: !c.slot.Degraded(),
	}
}

func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Open and Close toggle the cart drawer. The flag is never persisted.
func (c *Cart) Open()  { c.setOpen(true) }
func (c *Cart) Close() { c.setOpen(false) }

func (c *Cart) setOpen(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open == v {
		return
	}
	c.open = v
	c.notify()
}

func (c *Cart) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Subscribe registers fn to run after every change. Observers run with the
// cart locked and must not call back into it.
func (c *Cart) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// Persistent reports whether cart writes currently reach durable storage.
func (c *Cart) Persistent() bool {
	return !c.slot.Degraded()
}

// Ping checks the storage backend behind the cart.
func (c *Cart) Ping(ctx context.Context) error {
	return c.slot.Ping(ctx)
}

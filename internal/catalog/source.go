package catalog

// State is the lifecycle of a product source. Loading is the only
// non-terminal state.
type State int

const (
	StateLoading State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Source yields the current catalog. Products is empty until the source is
// ready, and Err is non-nil only in StateFailed.
type Source interface {
	Products() []Product
	State() State
	Err() error
}

// StaticSource serves a catalog fixed at build time.
type StaticSource struct {
	products []Product
}

// NewStaticSource serves products, or the bundled catalog when none are given.
func NewStaticSource(products ...Product) *StaticSource {
	if len(products) == 0 {
		products = MustBundled()
	}
	return &StaticSource{products: products}
}

func (s *StaticSource) Products() []Product {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

func (s *StaticSource) State() State { return StateReady }

func (s *StaticSource) Err() error { return nil }

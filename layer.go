package hiermem

// Layer names a position in the five-tier hierarchy. Transitions only ever
// move forward through this order, or to LayerDeleted.
type Layer int

const (
	LayerActive Layer = iota
	LayerShortTerm
	LayerMediumTerm
	LayerLongTerm
	LayerArchived
	// LayerDeleted is terminal: a record that has left every layer without
	// being promoted (cleared, or superseded by a summary record).
	LayerDeleted
)

func (l Layer) String() string {
	switch l {
	case LayerActive:
		return "active"
	case LayerShortTerm:
		return "short_term"
	case LayerMediumTerm:
		return "medium_term"
	case LayerLongTerm:
		return "long_term"
	case LayerArchived:
		return "archived"
	case LayerDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// rank orders layers for query tie-breaking: active > short > medium > long
// > archived. Lower rank wins ties.
func (l Layer) rank() int {
	return int(l)
}

// CapacityPolicy describes the size threshold at which a layer overflows and
// the promotion trigger it fires.
type CapacityPolicy struct {
	Layer    Layer
	Capacity int // 0 means unbounded (archived)
}

// DefaultCapacities mirrors the capacity table: active promotes into
// short_term past 10, short_term enqueues for compression past 50,
// medium_term compresses into long_term past 200, long_term archives past
// 1000, archived is unbounded.
var DefaultCapacities = map[Layer]int{
	LayerActive:     10,
	LayerShortTerm:  50,
	LayerMediumTerm: 200,
	LayerLongTerm:   1000,
	LayerArchived:   0,
}

// DefaultCompressionBatchSize is the default number of records coalesced
// into one compression batch before a new batch starts: the scheduler
// drains a batch of this size per eligible tick rather than one record at
// a time.
const DefaultCompressionBatchSize = 10

// DefaultBackpressureBound is the default compression-queue capacity: 10x
// short_term's capacity. A session whose queued-plus-dead-lettered item
// count exceeds this is marked "behind" in Stats(); the bound is advisory
// and never blocks AddMessage.
const DefaultBackpressureBound = 10 * 50

// VectorLayers are the layers backed by the Vector Index rather than plain
// in-RAM sequences.
var VectorLayers = []Layer{LayerMediumTerm, LayerLongTerm, LayerArchived}

// DefaultQueryLayers is the layer filter query() uses when the caller
// supplies none.
var DefaultQueryLayers = []Layer{LayerMediumTerm, LayerLongTerm, LayerArchived}

// nextLayer returns the layer one step colder than l, and false if l has no
// successor (archived, deleted).
func nextLayer(l Layer) (Layer, bool) {
	switch l {
	case LayerActive:
		return LayerShortTerm, true
	case LayerShortTerm:
		return LayerMediumTerm, true
	case LayerMediumTerm:
		return LayerLongTerm, true
	case LayerLongTerm:
		return LayerArchived, true
	default:
		return LayerDeleted, false
	}
}

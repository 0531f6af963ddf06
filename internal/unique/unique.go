// Package unique merges two layers of ranged values into a single ordered
// sequence of blocks that never share an index.
package unique

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"slices"

	"datecell/internal/cell"
	appLog "datecell/internal/log"
	"datecell/internal/model"
)

var (
	// ErrMissingFillFactory is returned when FillFill is configured without
	// a FillFactory.
	ErrMissingFillFactory = errors.New("unique: fill option requires a fill factory")
	// ErrInvalidOption is returned for unknown fill or overlap options.
	ErrInvalidOption = errors.New("unique: invalid option")
	// ErrInvalidBounds is returned when EndAtIndex is before StartAtIndex.
	ErrInvalidBounds = errors.New("unique: end index is before start index")
)

// FillOption selects how gaps between blocks are closed.
type FillOption string

const (
	// FillNone leaves gaps open.
	FillNone FillOption = ""
	// FillExtend stretches the preceding block over the gap. A leading gap
	// is closed by stretching the first block backwards.
	FillExtend FillOption = "extend"
	// FillFill closes each gap with a value built by the FillFactory.
	FillFill FillOption = "fill"
)

// Source tells which layer a block came from.
type Source string

const (
	SourceCurrent Source = "current"
	SourceNext    Source = "next"
	SourceFill    Source = "fill"
)

// Config configures an Expander.
type Config[T model.Ranged] struct {
	// StartAtIndex and EndAtIndex bound the output. Items wholly outside
	// are discarded and the rest are clipped.
	StartAtIndex *model.Index
	EndAtIndex   *model.Index

	Fill        FillOption
	FillFactory func(r model.Range) T

	// RetainOnOverlap is the layer whose items win where both layers cover
	// the same index. Empty means SourceNext. Within one layer the item that
	// comes later in the input wins.
	RetainOnOverlap Source
}

// Block is one output run. Its Range is authoritative; Value keeps the
// range it had on input.
type Block[T any] struct {
	model.Range
	Value T      `json:"value"`
	From  Source `json:"from"`
}

// Result is the output of Expand.
type Result[T any] struct {
	// Blocks are ascending and never share an index.
	Blocks []Block[T] `json:"blocks"`
	// Discarded holds the input items that produced no block, in input
	// order, current layer first.
	Discarded []T `json:"discarded,omitempty"`
}

// Expander merges layers of ranged values. It is immutable and safe for
// concurrent use.
type Expander[T model.Ranged] struct {
	cfg    Config[T]
	bounds model.Range
}

// NewExpander validates cfg.
func NewExpander[T model.Ranged](cfg Config[T]) (*Expander[T], error) {
	switch cfg.Fill {
	case FillNone, FillExtend:
	case FillFill:
		if cfg.FillFactory == nil {
			return nil, ErrMissingFillFactory
		}
	default:
		return nil, fmt.Errorf("%w: fill %q", ErrInvalidOption, cfg.Fill)
	}

	switch cfg.RetainOnOverlap {
	case "":
		cfg.RetainOnOverlap = SourceNext
	case SourceCurrent, SourceNext:
	default:
		return nil, fmt.Errorf("%w: retain on overlap %q", ErrInvalidOption, cfg.RetainOnOverlap)
	}

	bounds := model.Range{I: math.MinInt, To: math.MaxInt - 1}
	if cfg.StartAtIndex != nil {
		bounds.I = *cfg.StartAtIndex
	}
	if cfg.EndAtIndex != nil {
		bounds.To = *cfg.EndAtIndex
	}
	if bounds.To < bounds.I {
		return nil, fmt.Errorf("%w: %d < %d", ErrInvalidBounds, bounds.To, bounds.I)
	}

	return &Expander[T]{cfg: cfg, bounds: bounds}, nil
}

// item is one input value in the arena.
type item[T model.Ranged] struct {
	value T
	rng   model.Range
	src   Source
	// order is the position across both layers; rank is 1 for the retained
	// layer. Higher (rank, order) wins.
	order int
	rank  int
	live  bool
	used  bool
}

func (it *item[T]) CellRange() model.Range { return it.rng }

func (it *item[T]) beats(o *item[T]) bool {
	if it.rank != o.rank {
		return it.rank > o.rank
	}
	return it.order > o.order
}

// winners is a max-heap of arena items by priority.
type winners[T model.Ranged] []*item[T]

func (h winners[T]) Len() int           { return len(h) }
func (h winners[T]) Less(i, j int) bool { return h[i].beats(h[j]) }
func (h winners[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *winners[T]) Push(x any)        { *h = append(*h, x.(*item[T])) }
func (h *winners[T]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// Expand merges current and next into disjoint blocks. Where items overlap
// the higher priority item keeps the index and the other is split or
// truncated around it. Gaps are then closed according to the fill option.
func (e *Expander[T]) Expand(current, next []T) Result[T] {
	arena := make([]*item[T], 0, len(current)+len(next))
	for _, layer := range []struct {
		values []T
		src    Source
	}{{current, SourceCurrent}, {next, SourceNext}} {
		rank := 0
		if layer.src == e.cfg.RetainOnOverlap {
			rank = 1
		}
		for _, v := range layer.values {
			it := &item[T]{value: v, src: layer.src, order: len(arena), rank: rank}
			if r := v.CellRange(); r.To >= r.I {
				it.rng, it.live = cell.FitRangeToRange(e.bounds, r)
			}
			arena = append(arena, it)
		}
	}

	blocks := e.sweep(arena)
	blocks = e.fillGaps(blocks)

	var res Result[T]
	res.Blocks = blocks
	for _, it := range arena {
		if !it.used {
			res.Discarded = append(res.Discarded, it.value)
		}
	}
	if len(res.Discarded) > 0 {
		appLog.Debug("unique: discarded items", "count", len(res.Discarded), "blocks", len(res.Blocks))
	}
	return res
}

// sweep walks the boundaries of every live item in ascending order. Between
// two boundaries the winner is the highest priority item that covers them.
func (e *Expander[T]) sweep(arena []*item[T]) []Block[T] {
	live := make([]*item[T], 0, len(arena))
	points := make([]model.Index, 0, 2*len(arena))
	for _, it := range arena {
		if it.live {
			live = append(live, it)
			points = append(points, it.rng.I, it.rng.To+1)
		}
	}
	if len(live) == 0 {
		return nil
	}
	cell.SortRanges(live)
	slices.Sort(points)
	points = slices.Compact(points)

	var (
		blocks []Block[T]
		owners []*item[T]
		h      winners[T]
		pushed int
		steps  int
	)
	maxSteps := 4 * len(live)

	for k := 0; k < len(points)-1; k++ {
		p := points[k]
		for pushed < len(live) && live[pushed].rng.I <= p {
			heap.Push(&h, live[pushed])
			pushed++
			steps++
		}
		for h.Len() > 0 && h[0].rng.To < p {
			heap.Pop(&h)
			steps++
		}
		steps++
		if steps > maxSteps {
			panic(fmt.Sprintf("unique: sweep exceeded %d steps for %d items", maxSteps, len(live)))
		}
		if h.Len() == 0 {
			continue
		}

		top := h[0]
		run := model.Range{I: p, To: points[k+1] - 1}
		if n := len(blocks); n > 0 && owners[n-1] == top && blocks[n-1].To+1 == run.I {
			blocks[n-1].To = run.To
			continue
		}
		top.used = true
		blocks = append(blocks, Block[T]{Range: run, Value: top.value, From: top.src})
		owners = append(owners, top)
	}
	return blocks
}

func (e *Expander[T]) fillGaps(blocks []Block[T]) []Block[T] {
	if e.cfg.Fill == FillNone {
		return blocks
	}

	start, end := e.cfg.StartAtIndex, e.cfg.EndAtIndex
	if len(blocks) == 0 {
		if e.cfg.Fill == FillFill && start != nil && end != nil {
			return []Block[T]{e.fillBlock(model.Range{I: *start, To: *end})}
		}
		return nil
	}

	out := make([]Block[T], 0, 2*len(blocks)+1)
	if start != nil && blocks[0].I > *start {
		if e.cfg.Fill == FillExtend {
			blocks[0].I = *start
		} else {
			out = append(out, e.fillBlock(model.Range{I: *start, To: blocks[0].I - 1}))
		}
	}

	for _, b := range blocks {
		if n := len(out); n > 0 && b.I > out[n-1].To+1 {
			if e.cfg.Fill == FillExtend {
				out[n-1].To = b.I - 1
			} else {
				out = append(out, e.fillBlock(model.Range{I: out[n-1].To + 1, To: b.I - 1}))
			}
		}
		out = append(out, b)
	}

	if last := &out[len(out)-1]; end != nil && last.To < *end {
		if e.cfg.Fill == FillExtend {
			last.To = *end
		} else {
			out = append(out, e.fillBlock(model.Range{I: last.To + 1, To: *end}))
		}
	}
	return out
}

func (e *Expander[T]) fillBlock(r model.Range) Block[T] {
	return Block[T]{Range: r, Value: e.cfg.FillFactory(r), From: SourceFill}
}

package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Class is one vessel class of the fleet: Count vessels of Length cells.
type Class struct {
	Length int `json:"length"`
	Count  int `json:"count"`
}

// Classes is the fixed placement order.
var Classes = []Class{{Length: 1, Count: 4}, {Length: 2, Count: 2}, {Length: 3, Count: 1}}

const (
	FleetSize  = 7
	FleetCells = 11
)

// Fleet is the set of vessels belonging to one side.
type Fleet []Vessel

// Cells returns the number of cells covered by the fleet.
func (f Fleet) Cells() int {
	n := 0
	for _, v := range f {
		n += len(v)
	}
	return n
}

// Lengths returns the sorted vessel lengths.
func (f Fleet) Lengths() []int {
	out := make([]int, len(f))
	for i, v := range f {
		out[i] = len(v)
	}
	slices.Sort(out)
	return out
}

var standardLengths = []int{1, 1, 1, 1, 2, 2, 3}

// FleetOf recovers the vessels of a board from its Occupied and Hit cells.
// Cells are grouped by 8-neighbourhood; every group must be a straight
// contiguous run and the lengths must match the standard fleet.
func FleetOf(b *Board) (Fleet, error) {
	var seen [Size][Size]bool
	ship := func(c Coordinate) bool {
		s := b.At(c)
		return c.InBounds() && (s == Occupied || s == Hit)
	}
	var fleet Fleet
	for r := 1; r <= Size; r++ {
		for c := 1; c <= Size; c++ {
			start := Coordinate{Row: r, Col: c}
			if !ship(start) || seen[r-1][c-1] {
				continue
			}
			var group Vessel
			stack := []Coordinate{start}
			seen[r-1][c-1] = true
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				group = append(group, cur)
				for dr := -1; dr <= 1; dr++ {
					for dc := -1; dc <= 1; dc++ {
						n := Coordinate{Row: cur.Row + dr, Col: cur.Col + dc}
						if ship(n) && !seen[n.Row-1][n.Col-1] {
							seen[n.Row-1][n.Col-1] = true
							stack = append(stack, n)
						}
					}
				}
			}
			slices.SortFunc(group, func(a, b Coordinate) int { return a.Index() - b.Index() })
			if !isRun(group, 1, 0) && !isRun(group, 0, 1) {
				return nil, fmt.Errorf("%w: vessel at %v is not a straight run", ErrInvalidBoard, group[0])
			}
			fleet = append(fleet, group)
		}
	}
	if !slices.Equal(fleet.Lengths(), standardLengths) {
		return nil, fmt.Errorf("%w: vessel lengths %v, want %v", ErrInvalidBoard, fleet.Lengths(), standardLengths)
	}
	return fleet, nil
}

// Phase is the state of a Builder.
type Phase uint8

const (
	PlacingSingles Phase = iota
	PlacingDoubles
	PlacingTriple
	Done
)

func (p Phase) String() string {
	switch p {
	case PlacingSingles:
		return "placing_singles"
	case PlacingDoubles:
		return "placing_doubles"
	case PlacingTriple:
		return "placing_triple"
	case Done:
		return "done"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// ErrInfeasible reports that the remaining classes no longer fit and the
// board was reset.
var ErrInfeasible = errors.New("remaining vessels do not fit, fleet reset")

// Builder places the fleet on a board one request at a time.
// After finishing a class it checks the next class with CanPlace and
// restarts from an empty board when the check fails.
type Builder struct {
	board    *Board
	fleet    Fleet
	class    int
	placed   int
	restarts int
}

// NewBuilder resets b and starts placing the first class on it.
func NewBuilder(b *Board) *Builder {
	b.Reset()
	return &Builder{board: b}
}

func (bl *Builder) Board() *Board { return bl.board }

func (bl *Builder) Phase() Phase { return Phase(bl.class) }

// Current returns the class being placed and how many of it remain.
// ok is false once the fleet is complete.
func (bl *Builder) Current() (c Class, remaining int, ok bool) {
	if bl.class >= len(Classes) {
		return Class{}, 0, false
	}
	c = Classes[bl.class]
	return c, c.Count - bl.placed, true
}

// Fleet returns the vessels placed so far.
func (bl *Builder) Fleet() Fleet { return slices.Clone(bl.fleet) }

// Restarts counts board resets since the builder was created.
func (bl *Builder) Restarts() int { return bl.restarts }

// Reset clears the board and starts again from the first class.
func (bl *Builder) Reset() {
	bl.board.Reset()
	bl.fleet = nil
	bl.class, bl.placed = 0, 0
	bl.restarts++
}

// Place applies req for the current class. Placement errors leave the
// builder unchanged. When the placement completes a class and the next
// class fails the feasibility check, the vessel is returned together with
// ErrInfeasible and the builder has already been reset.
func (bl *Builder) Place(req Request) (Vessel, error) {
	cls, _, ok := bl.Current()
	if !ok {
		return nil, errors.New("fleet already complete")
	}
	v, err := Place(bl.board, cls.Length, req)
	if err != nil {
		return nil, err
	}
	bl.fleet = append(bl.fleet, v)
	bl.placed++
	if bl.placed < cls.Count {
		return v, nil
	}
	bl.class++
	bl.placed = 0
	if next, _, ok := bl.Current(); ok && !CanPlace(FreeCells(bl.board), next.Length, next.Count) {
		bl.Reset()
		return v, ErrInfeasible
	}
	return v, nil
}

// ChoiceSource supplies placement and attack choices. Implementations
// return only in-bounds coordinates; errors mean the source is exhausted.
type ChoiceSource interface {
	Coordinate(ctx context.Context) (Coordinate, error)
	Direction(ctx context.Context) (Direction, error)
}

// BuildOptions bounds the otherwise open-ended retry loops of Build.
// Zero values mean no limit.
type BuildOptions struct {
	// MaxAttempts is the number of rejected requests for one vessel after
	// which the board is reset.
	MaxAttempts int
	// MaxRestarts is the number of resets after which Build gives up.
	MaxRestarts int

	OnPlaced   func(b *Board, v Vessel)
	OnRejected func(c Class, err error)
	OnReset    func(restarts int, cause error)
	OnClass    func(c Class)
}

// Build drives a Builder from src until the standard fleet is on b.
func Build(ctx context.Context, b *Board, src ChoiceSource, opts BuildOptions) (Fleet, error) {
	bl := NewBuilder(b)
	attempts := 0
	lastClass := -1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cls, _, ok := bl.Current()
		if !ok {
			return bl.Fleet(), nil
		}
		if bl.class != lastClass {
			lastClass = bl.class
			if opts.OnClass != nil {
				opts.OnClass(cls)
			}
		}
		req, err := request(ctx, src, cls.Length)
		if err != nil {
			return nil, err
		}
		v, err := bl.Place(req)
		switch {
		case err == nil:
			attempts = 0
			if opts.OnPlaced != nil {
				opts.OnPlaced(b, v)
			}
			continue
		case errors.Is(err, ErrInfeasible):
			if opts.OnPlaced != nil {
				opts.OnPlaced(b, v)
			}
		default:
			attempts++
			if opts.OnRejected != nil {
				opts.OnRejected(cls, err)
			}
			if opts.MaxAttempts == 0 || attempts < opts.MaxAttempts {
				continue
			}
			bl.Reset()
			err = fmt.Errorf("%w: %d rejected requests for a %d-cell vessel", ErrInfeasible, attempts, cls.Length)
		}
		attempts = 0
		lastClass = -1
		if opts.OnReset != nil {
			opts.OnReset(bl.Restarts(), err)
		}
		if opts.MaxRestarts > 0 && bl.Restarts() >= opts.MaxRestarts {
			return nil, fmt.Errorf("gave up after %d restarts: %w", bl.Restarts(), err)
		}
	}
}

func request(ctx context.Context, src ChoiceSource, length int) (Request, error) {
	anchor, err := src.Coordinate(ctx)
	if err != nil {
		return Request{}, err
	}
	req := Request{Anchor: anchor}
	if length > 1 {
		if req.Dir, err = src.Direction(ctx); err != nil {
			return Request{}, err
		}
	}
	return req, nil
}

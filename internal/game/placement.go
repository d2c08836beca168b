package game

import (
	"errors"
	"fmt"
	"strings"
)

// Direction is the way a multi-cell vessel extends from its anchor.
type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions lists every direction in a stable order.
var Directions = []Direction{Up, Down, Left, Right}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

func (d Direction) step() (dr, dc int) {
	switch d {
	case Up:
		return -1, 0
	case Down:
		return 1, 0
	case Left:
		return 0, -1
	}
	return 0, 1
}

var ErrDirection = errors.New("unknown direction")

// ParseDirection accepts left, right, up or down, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrDirection, s)
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Vessel is the ordered list of cells of one placed ship.
type Vessel []Coordinate

func (v Vessel) Len() int { return len(v) }

// Touches reports whether any cell of v neighbours any cell of o.
func (v Vessel) Touches(o Vessel) bool {
	for _, a := range v {
		for _, b := range o {
			if Neighbours(a, b) {
				return true
			}
		}
	}
	return false
}

// Request asks for a vessel anchored at Anchor. Dir is ignored for
// single-cell vessels.
type Request struct {
	Anchor Coordinate `json:"anchor"`
	Dir    Direction  `json:"dir"`
}

// Placement failures. All are recoverable: the caller asks again.
var (
	ErrOutOfBounds  = errors.New("vessel out of bounds")
	ErrCellOccupied = errors.New("cell occupied")
	ErrAdjacent     = errors.New("vessel touches another vessel")
)

// Cells computes the cells a vessel of the given length would cover. The
// result may lie partly off the board.
func (r Request) Cells(length int) Vessel {
	dr, dc := r.Dir.step()
	v := make(Vessel, length)
	for i := range v {
		v[i] = Coordinate{Row: r.Anchor.Row + dr*i, Col: r.Anchor.Col + dc*i}
	}
	return v
}

// Place puts a vessel of the given length on b. Every cell must be on the
// board, Empty, and not neighbour any Occupied cell. The board is only
// modified on success.
func Place(b *Board, length int, req Request) (Vessel, error) {
	if length < 1 {
		return nil, fmt.Errorf("%w: length %d", ErrOutOfBounds, length)
	}
	v := req.Cells(length)
	for _, c := range v {
		if !c.InBounds() {
			return nil, fmt.Errorf("%w: %v", ErrOutOfBounds, c)
		}
	}
	for _, c := range v {
		if b.At(c) != Empty {
			return nil, fmt.Errorf("%w: %v", ErrCellOccupied, c)
		}
	}
	placed := b.Coordinates(Occupied)
	for _, c := range v {
		for _, p := range placed {
			if Neighbours(c, p) {
				return nil, fmt.Errorf("%w: %v next to %v", ErrAdjacent, c, p)
			}
		}
	}
	for _, c := range v {
		b.set(c, Occupied)
	}
	return v, nil
}

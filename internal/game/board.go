package game

import (
	"errors"
	"fmt"
)

// Size is the edge length of the square board. Rows and columns are 1-based.
const Size = 6

// CellState is the state of a single board cell.
type CellState uint8

const (
	Empty CellState = iota
	Occupied
	Hit
	Miss
)

func (s CellState) String() string {
	switch s {
	case Empty:
		return "empty"
	case Occupied:
		return "occupied"
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	}
	return fmt.Sprintf("CellState(%d)", uint8(s))
}

// Coordinate addresses a cell as (row, col), each in [1, Size].
type Coordinate struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Coordinate) String() string { return fmt.Sprintf("(%d,%d)", c.Row, c.Col) }

// InBounds reports whether c lies on the board.
func (c Coordinate) InBounds() bool {
	return c.Row >= 1 && c.Row <= Size && c.Col >= 1 && c.Col <= Size
}

// Index is the row-major position of c in [0, Size*Size).
func (c Coordinate) Index() int { return (c.Row-1)*Size + (c.Col - 1) }

// CoordinateAt is the inverse of Coordinate.Index.
func CoordinateAt(idx int) Coordinate {
	return Coordinate{Row: idx/Size + 1, Col: idx%Size + 1}
}

// Board is a 6x6 grid of cell states. The zero value is an empty board.
type Board struct {
	Cells [Size][Size]CellState `json:"cells"`
}

var ErrInvalidBoard = errors.New("invalid board")

// At returns the state of c. Out-of-bounds coordinates read as Empty.
func (b *Board) At(c Coordinate) CellState {
	if !c.InBounds() {
		return Empty
	}
	return b.Cells[c.Row-1][c.Col-1]
}

func (b *Board) set(c Coordinate, s CellState) { b.Cells[c.Row-1][c.Col-1] = s }

// Reset returns every cell to Empty. Only fleet setup resets a board.
func (b *Board) Reset() { *b = Board{} }

// Count returns the number of cells currently in state s.
func (b *Board) Count(s CellState) int {
	n := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b.Cells[r][c] == s {
				n++
			}
		}
	}
	return n
}

// Coordinates lists, in row-major order, every cell in state s.
func (b *Board) Coordinates(s CellState) []Coordinate {
	var out []Coordinate
	for r := 1; r <= Size; r++ {
		for c := 1; c <= Size; c++ {
			if b.Cells[r-1][c-1] == s {
				out = append(out, Coordinate{Row: r, Col: c})
			}
		}
	}
	return out
}

// Flatten returns row-major ship bits: 1 for Occupied or Hit, 0 otherwise.
func (b *Board) Flatten() []uint8 {
	out := make([]uint8, Size*Size)
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if s := b.Cells[r][c]; s == Occupied || s == Hit {
				out[r*Size+c] = 1
			}
		}
	}
	return out
}

// Validate checks that the ship cells form exactly the standard fleet with
// no two vessels touching.
func (b *Board) Validate() error {
	_, err := FleetOf(b)
	return err
}

// BoardFromRows builds a board from Size strings of Size runes each,
// '#' marking a ship cell and '.' water.
func BoardFromRows(rows ...string) (Board, error) {
	var b Board
	if len(rows) != Size {
		return b, fmt.Errorf("%w: want %d rows, got %d", ErrInvalidBoard, Size, len(rows))
	}
	for r, line := range rows {
		if len(line) != Size {
			return b, fmt.Errorf("%w: row %d has %d cells", ErrInvalidBoard, r+1, len(line))
		}
		for c := 0; c < Size; c++ {
			switch line[c] {
			case '#':
				b.Cells[r][c] = Occupied
			case '.':
			default:
				return b, fmt.Errorf("%w: unexpected %q at row %d", ErrInvalidBoard, line[c], r+1)
			}
		}
	}
	return b, nil
}

package game

// Neighbours reports whether a and b are within Chebyshev distance 1.
// A cell is its own neighbour.
func Neighbours(a, b Coordinate) bool {
	return abs(a.Row-b.Row) <= 1 && abs(a.Col-b.Col) <= 1
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// FreeCells returns, in row-major order, the Empty cells that have no
// Occupied neighbour. The result is the placement surface for the next
// vessel only and must be recomputed after every placement.
func FreeCells(b *Board) []Coordinate {
	filled := b.Coordinates(Occupied)
	var out []Coordinate
	for _, cell := range b.Coordinates(Empty) {
		touching := false
		for _, f := range filled {
			if Neighbours(cell, f) {
				touching = true
				break
			}
		}
		if !touching {
			out = append(out, cell)
		}
	}
	return out
}

// CanPlace is a greedy look-ahead over an ordered candidate list. For each
// of count vessels it takes the first window of length consecutive entries
// that forms a vertical or horizontal unit-step run and removes it from the
// pool. It fails as soon as one vessel finds no run.
//
// Runs are not checked against each other for adjacency, so a true result
// is a hint, not a guarantee that the vessels can actually be placed.
func CanPlace(cells []Coordinate, length, count int) bool {
	pool := append([]Coordinate(nil), cells...)
	for n := 0; n < count; n++ {
		found := -1
		for i := 0; i+length-1 < len(pool); i++ {
			if isRun(pool[i:i+length], 1, 0) || isRun(pool[i:i+length], 0, 1) {
				found = i
				break
			}
		}
		if found < 0 {
			return false
		}
		pool = append(pool[:found], pool[found+length:]...)
	}
	return true
}

func isRun(window []Coordinate, dr, dc int) bool {
	for k := 1; k < len(window); k++ {
		if window[k].Row != window[k-1].Row+dr || window[k].Col != window[k-1].Col+dc {
			return false
		}
	}
	return true
}

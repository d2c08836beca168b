// Package render turns boards into the 7x7 presentation grid and prints it.
package render

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"navybattle/internal/game"
)

// GridSize is the edge of the presentation grid: a header row and column
// plus one entry per board cell.
const GridSize = game.Size + 1

// Grid is a board laid out for display. Grid[0] holds the column numbers
// and Grid[r][0] the row numbers.
type Grid [GridSize][GridSize]string

// Symbols maps cell states to what is drawn for them.
type Symbols map[game.CellState]string

// DefaultSymbols draws ships as filled squares, water as circles, hits as
// X and misses as T.
var DefaultSymbols = Symbols{
	game.Empty:    "◯",
	game.Occupied: "■",
	game.Hit:      "X",
	game.Miss:     "T",
}

// GridOf lays out b using sym. States missing from sym fall back to
// DefaultSymbols.
func GridOf(b *game.Board, sym Symbols) Grid {
	var g Grid
	g[0][0] = " "
	for i := 1; i < GridSize; i++ {
		g[0][i] = strconv.Itoa(i)
		g[i][0] = strconv.Itoa(i)
	}
	for r := 1; r <= game.Size; r++ {
		for c := 1; c <= game.Size; c++ {
			st := b.At(game.Coordinate{Row: r, Col: c})
			s, ok := sym[st]
			if !ok {
				s = DefaultSymbols[st]
			}
			g[r][c] = s
		}
	}
	return g
}

// Rows joins each grid row with " | " separators.
func (g Grid) Rows() []string {
	out := make([]string, GridSize)
	for i, row := range g {
		out[i] = strings.Join(row[:], " | ")
	}
	return out
}

func (g Grid) String() string { return strings.Join(g.Rows(), "\n") + "\n" }

const (
	ansiRed   = "\x1b[31m"
	ansiBlue  = "\x1b[34m"
	ansiReset = "\x1b[0m"
)

// Terminal prints grids, colouring hits red and misses blue when the
// output is a terminal.
type Terminal struct {
	out   io.Writer
	color bool
}

// NewTerminal wraps f, enabling colour only when f is a terminal.
func NewTerminal(f *os.File) *Terminal {
	tty := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	return &Terminal{out: colorable.NewColorable(f), color: tty}
}

// NewPlain prints to w without colour.
func NewPlain(w io.Writer) *Terminal { return &Terminal{out: w} }

func (t *Terminal) symbols() Symbols {
	if !t.color {
		return DefaultSymbols
	}
	return Symbols{
		game.Hit:  ansiRed + DefaultSymbols[game.Hit] + ansiReset,
		game.Miss: ansiBlue + DefaultSymbols[game.Miss] + ansiReset,
	}
}

// Println writes a line of text.
func (t *Terminal) Println(a ...any) { fmt.Fprintln(t.out, a...) }

// Printf writes formatted text.
func (t *Terminal) Printf(format string, a ...any) { fmt.Fprintf(t.out, format, a...) }

// Board prints one board followed by a blank line.
func (t *Terminal) Board(b *game.Board) {
	fmt.Fprintln(t.out, GridOf(b, t.symbols()))
}

// Pair prints two boards side by side.
func (t *Terminal) Pair(left, right *game.Board) {
	l, r := GridOf(left, t.symbols()).Rows(), GridOf(right, t.symbols()).Rows()
	for i := range l {
		fmt.Fprintf(t.out, "%s    %s\n", l[i], r[i])
	}
	fmt.Fprintln(t.out)
}

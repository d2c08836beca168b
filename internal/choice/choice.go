// Package choice provides the two sources of placement and attack choices:
// a uniform random generator for the computer side and a line-oriented
// prompt for a human at a terminal.
package choice

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"navybattle/internal/game"
)

// Random picks coordinates and directions uniformly.
type Random struct {
	rng *rand.Rand
}

// NewRandom seeds a Random source. A zero seed uses the current time.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// Rand exposes the underlying generator so callers can share one seed.
func (r *Random) Rand() *rand.Rand { return r.rng }

func (r *Random) Coordinate(ctx context.Context) (game.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return game.Coordinate{}, err
	}
	return game.Coordinate{Row: r.rng.Intn(game.Size) + 1, Col: r.rng.Intn(game.Size) + 1}, nil
}

func (r *Random) Direction(ctx context.Context) (game.Direction, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return game.Directions[r.rng.Intn(len(game.Directions))], nil
}

// Prompt reads choices from a human. Invalid input is reported on out and
// asked again; only the end of input or a cancelled context stops it.
// Coordinates are entered as X (column) first, then Y (row).
type Prompt struct {
	in  *bufio.Scanner
	out io.Writer
}

func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewScanner(in), out: out}
}

var ErrInputClosed = errors.New("input closed")

// Say writes a line to the prompt's output.
func (p *Prompt) Say(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Prompt) readLine(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", ErrInputClosed
	}
	return strings.TrimSpace(p.in.Text()), nil
}

func (p *Prompt) readAxis(ctx context.Context, label string) (int, bool, error) {
	line, err := p.readLine(ctx, label)
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		p.Say("Invalid input. Try again.")
		return 0, false, nil
	}
	return n, true, nil
}

func (p *Prompt) Coordinate(ctx context.Context) (game.Coordinate, error) {
	for {
		x, ok, err := p.readAxis(ctx, "Enter X coordinate: ")
		if err != nil {
			return game.Coordinate{}, err
		}
		if !ok {
			continue
		}
		y, ok, err := p.readAxis(ctx, "Enter Y coordinate: ")
		if err != nil {
			return game.Coordinate{}, err
		}
		if !ok {
			continue
		}
		c := game.Coordinate{Row: y, Col: x}
		if c.InBounds() {
			return c, nil
		}
		p.Say("Outside the board. Try again.")
	}
}

func (p *Prompt) Direction(ctx context.Context) (game.Direction, error) {
	for {
		line, err := p.readLine(ctx, "Choose a direction (left/right/up/down): ")
		if err != nil {
			return 0, err
		}
		d, err := game.ParseDirection(line)
		if err == nil {
			return d, nil
		}
		p.Say("Invalid input. Try again.")
	}
}

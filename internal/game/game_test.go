package game

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func at(r, c int) Coordinate { return Coordinate{Row: r, Col: c} }

func TestNeighbours(t *testing.T) {
	cases := []struct {
		a, b Coordinate
		want bool
	}{
		{at(3, 3), at(3, 3), true},
		{at(3, 3), at(2, 2), true},
		{at(3, 3), at(4, 4), true},
		{at(3, 3), at(3, 4), true},
		{at(3, 3), at(3, 5), false},
		{at(3, 3), at(5, 3), false},
		{at(1, 1), at(6, 6), false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Neighbours(tc.a, tc.b), "%v vs %v", tc.a, tc.b)
		require.Equal(t, tc.want, Neighbours(tc.b, tc.a), "%v vs %v", tc.b, tc.a)
	}
}

func TestFreeCellsEmptyBoard(t *testing.T) {
	var b Board
	require.Len(t, FreeCells(&b), Size*Size)
}

func TestFreeCellsAfterSingle(t *testing.T) {
	var b Board
	_, err := Place(&b, 1, Request{Anchor: at(3, 3)})
	require.NoError(t, err)
	free := FreeCells(&b)
	require.Len(t, free, 36-9)
	for _, c := range free {
		require.False(t, Neighbours(c, at(3, 3)), "free cell %v touches (3,3)", c)
	}

	var corner Board
	_, err = Place(&corner, 1, Request{Anchor: at(1, 1)})
	require.NoError(t, err)
	require.Len(t, FreeCells(&corner), 36-4)
}

func TestFreeCellsTwoVessels(t *testing.T) {
	var b Board
	_, err := Place(&b, 1, Request{Anchor: at(1, 1)})
	require.NoError(t, err)
	_, err = Place(&b, 2, Request{Anchor: at(1, 3), Dir: Right})
	require.NoError(t, err)

	free := FreeCells(&b)
	for _, c := range []Coordinate{at(1, 1), at(1, 2), at(2, 1), at(2, 2), at(1, 3), at(1, 4), at(1, 5), at(2, 3), at(2, 4), at(2, 5)} {
		require.NotContains(t, free, c)
	}
	require.Contains(t, free, at(4, 4))
}

func TestCanPlace(t *testing.T) {
	row := []Coordinate{at(1, 1), at(1, 2), at(1, 3)}
	require.True(t, CanPlace(row, 2, 1))
	require.False(t, CanPlace(row, 2, 2))
	require.True(t, CanPlace(row, 3, 1))

	column := []Coordinate{at(2, 4), at(3, 4), at(4, 4)}
	require.True(t, CanPlace(column, 3, 1))

	scattered := []Coordinate{at(1, 1), at(1, 3), at(3, 1), at(3, 3)}
	require.False(t, CanPlace(scattered, 2, 1))
	require.True(t, CanPlace(scattered, 1, 4))
	require.False(t, CanPlace(scattered, 1, 5))

	require.Len(t, row, 3, "input must not be modified")
	require.Equal(t, at(1, 3), row[2])
}

func TestCanPlaceEmptyBoard(t *testing.T) {
	var b Board
	require.True(t, CanPlace(FreeCells(&b), 2, 2))
	require.True(t, CanPlace(FreeCells(&b), 3, 1))
}

func TestPlace(t *testing.T) {
	var b Board
	v, err := Place(&b, 3, Request{Anchor: at(2, 2), Dir: Down})
	require.NoError(t, err)
	require.Equal(t, Vessel{at(2, 2), at(3, 2), at(4, 2)}, v)
	for _, c := range v {
		require.Equal(t, Occupied, b.At(c))
	}

	v, err = Place(&b, 2, Request{Anchor: at(2, 6), Dir: Left})
	require.NoError(t, err)
	require.Equal(t, Vessel{at(2, 6), at(2, 5)}, v)

	before := b
	cases := []struct {
		name   string
		length int
		req    Request
		want   error
	}{
		{"off the top", 2, Request{Anchor: at(1, 5), Dir: Up}, ErrOutOfBounds},
		{"off the right", 3, Request{Anchor: at(5, 5), Dir: Right}, ErrOutOfBounds},
		{"anchor outside", 1, Request{Anchor: at(0, 3)}, ErrOutOfBounds},
		{"on a ship", 1, Request{Anchor: at(3, 2)}, ErrCellOccupied},
		{"crossing a ship", 3, Request{Anchor: at(3, 1), Dir: Right}, ErrCellOccupied},
		{"touching diagonally", 1, Request{Anchor: at(5, 3)}, ErrAdjacent},
		{"touching sideways", 2, Request{Anchor: at(4, 3), Dir: Right}, ErrAdjacent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Place(&b, tc.length, tc.req)
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, before, b, "failed placement must not modify the board")
		})
	}
}

func TestParseDirection(t *testing.T) {
	for _, d := range Directions {
		got, err := ParseDirection(" " + d.String() + "\n")
		require.NoError(t, err)
		require.Equal(t, d, got)
	}
	got, err := ParseDirection("LEFT")
	require.NoError(t, err)
	require.Equal(t, Left, got)
	_, err = ParseDirection("sideways")
	require.ErrorIs(t, err, ErrDirection)
}

func TestBuilderResetsWhenDoublesCannotFit(t *testing.T) {
	var b Board
	bl := NewBuilder(&b)
	require.Equal(t, PlacingSingles, bl.Phase())

	for _, c := range []Coordinate{at(2, 2), at(2, 5), at(5, 2)} {
		_, err := bl.Place(Request{Anchor: c})
		require.NoError(t, err)
	}
	_, remaining, ok := bl.Current()
	require.True(t, ok)
	require.Equal(t, 1, remaining)

	v, err := bl.Place(Request{Anchor: at(5, 5)})
	require.ErrorIs(t, err, ErrInfeasible)
	require.Equal(t, Vessel{at(5, 5)}, v)
	require.Equal(t, PlacingSingles, bl.Phase())
	require.Equal(t, 1, bl.Restarts())
	require.Empty(t, bl.Fleet())
	require.Equal(t, 0, b.Count(Occupied))
}

func TestBuilderPhases(t *testing.T) {
	b, _, err := Preset(0)
	require.NoError(t, err)
	fleet, err := FleetOf(&b)
	require.NoError(t, err)

	var target Board
	bl := NewBuilder(&target)
	order := []int{1, 2, 3}
	phases := []Phase{PlacingSingles, PlacingDoubles, PlacingTriple}
	for i, length := range order {
		for _, v := range fleet {
			if len(v) != length {
				continue
			}
			require.Equal(t, phases[i], bl.Phase())
			req := Request{Anchor: v[0], Dir: Right}
			if len(v) > 1 && v[1].Row != v[0].Row {
				req.Dir = Down
			}
			_, err := bl.Place(req)
			require.NoError(t, err)
		}
	}
	require.Equal(t, Done, bl.Phase())
	require.Equal(t, b, target)
	_, _, ok := bl.Current()
	require.False(t, ok)
	_, err = bl.Place(Request{Anchor: at(6, 6)})
	require.Error(t, err)
}

type rngSource struct{ rng *rand.Rand }

func (s rngSource) Coordinate(context.Context) (Coordinate, error) {
	return Coordinate{Row: s.rng.Intn(Size) + 1, Col: s.rng.Intn(Size) + 1}, nil
}

func (s rngSource) Direction(context.Context) (Direction, error) {
	return Directions[s.rng.Intn(len(Directions))], nil
}

func requireStandardFleet(t *testing.T, b *Board, fleet Fleet) {
	t.Helper()
	require.Len(t, fleet, FleetSize)
	require.Equal(t, FleetCells, fleet.Cells())
	require.Equal(t, FleetCells, b.Count(Occupied))
	require.Equal(t, []int{1, 1, 1, 1, 2, 2, 3}, fleet.Lengths())
	for i := range fleet {
		for j := i + 1; j < len(fleet); j++ {
			require.False(t, fleet[i].Touches(fleet[j]), "vessels %v and %v touch", fleet[i], fleet[j])
		}
	}
	require.NoError(t, b.Validate())
}

func TestBuildRandomFleets(t *testing.T) {
	for seed := int64(1); seed <= 40; seed++ {
		var b Board
		src := rngSource{rng: rand.New(rand.NewSource(seed))}
		resets := 0
		fleet, err := Build(context.Background(), &b, src, BuildOptions{
			MaxAttempts: 500,
			OnReset:     func(int, error) { resets++ },
		})
		require.NoError(t, err, "seed %d", seed)
		requireStandardFleet(t, &b, fleet)
		t.Logf("seed %d: %d resets", seed, resets)
	}
}

type scriptedSource struct {
	coords []Coordinate
	dirs   []Direction
}

func (s *scriptedSource) Coordinate(context.Context) (Coordinate, error) {
	if len(s.coords) == 0 {
		return Coordinate{}, errors.New("script exhausted")
	}
	c := s.coords[0]
	s.coords = s.coords[1:]
	return c, nil
}

func (s *scriptedSource) Direction(context.Context) (Direction, error) {
	if len(s.dirs) == 0 {
		return 0, errors.New("script exhausted")
	}
	d := s.dirs[0]
	s.dirs = s.dirs[1:]
	return d, nil
}

func TestBuildReportsRejectionsAndStopsOnSourceError(t *testing.T) {
	src := &scriptedSource{coords: []Coordinate{at(1, 1), at(1, 2), at(1, 1)}}
	var rejected []error
	var placed int
	var b Board
	_, err := Build(context.Background(), &b, src, BuildOptions{
		OnPlaced:   func(*Board, Vessel) { placed++ },
		OnRejected: func(_ Class, err error) { rejected = append(rejected, err) },
	})
	require.EqualError(t, err, "script exhausted")
	require.Equal(t, 1, placed)
	require.Len(t, rejected, 2)
	require.ErrorIs(t, rejected[0], ErrAdjacent)
	require.ErrorIs(t, rejected[1], ErrCellOccupied)
}

func TestBuildGivesUpAfterMaxRestarts(t *testing.T) {
	coords := make([]Coordinate, 0, 64)
	for i := 0; i < 16; i++ {
		coords = append(coords, at(2, 2), at(2, 5), at(5, 2), at(5, 5))
	}
	var b Board
	_, err := Build(context.Background(), &b, &scriptedSource{coords: coords}, BuildOptions{MaxRestarts: 3})
	require.ErrorIs(t, err, ErrInfeasible)
}

func TestBuildHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var b Board
	_, err := Build(ctx, &b, rngSource{rng: rand.New(rand.NewSource(1))}, BuildOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestAttack(t *testing.T) {
	var b, view Board
	_, err := Place(&b, 2, Request{Anchor: at(4, 4), Dir: Up})
	require.NoError(t, err)
	var log AttackLog

	out, err := Attack(&b, &view, &log, at(3, 4))
	require.NoError(t, err)
	require.Equal(t, OutcomeHit, out)
	require.Equal(t, Hit, b.At(at(3, 4)))
	require.Equal(t, Hit, view.At(at(3, 4)))

	out, err = Attack(&b, &view, &log, at(1, 1))
	require.NoError(t, err)
	require.Equal(t, OutcomeMiss, out)
	require.Equal(t, Miss, b.At(at(1, 1)))
	require.Equal(t, Miss, view.At(at(1, 1)))

	snapshot := b
	out, err = Attack(&b, &view, &log, at(3, 4))
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyAttacked, out)
	require.Equal(t, snapshot, b)
	require.Equal(t, 2, log.Len())
	require.Equal(t, []Coordinate{at(3, 4), at(1, 1)}, log.Coordinates())

	_, err = Attack(&b, nil, &log, at(7, 1))
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestAttackSinksWholeFleet(t *testing.T) {
	b, fleet, err := Preset(3)
	require.NoError(t, err)
	var log AttackLog
	afloat := fleet.Cells()
	for _, v := range fleet {
		for _, c := range v {
			require.Equal(t, Occupied, b.At(c))
			out, err := Attack(&b, nil, &log, c)
			require.NoError(t, err)
			require.Equal(t, OutcomeHit, out)
			afloat--
			if afloat > 0 {
				require.NotZero(t, b.Count(Occupied))
			}
		}
	}
	require.Zero(t, afloat)
	require.Zero(t, b.Count(Occupied))
	require.Equal(t, FleetCells, b.Count(Hit))
	require.NoError(t, b.Validate(), "hit cells still count as the fleet")
}

func TestPresetsAreLegal(t *testing.T) {
	for i := 0; i < Presets; i++ {
		b, fleet, err := Preset(i)
		require.NoError(t, err, "preset %d", i)
		requireStandardFleet(t, &b, fleet)
	}
	_, _, err := Preset(Presets)
	require.Error(t, err)

	b, _, err := RandomPreset(rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	require.Equal(t, FleetCells, b.Count(Occupied))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string][]string{
		"bent vessel":     {"##....", ".#....", "......", "#.#.#.", "......", "#.##.#"},
		"touching":        {"###...", "...#..", "......", "#.#.#.", "......", "##.#.."},
		"missing vessel":  {"###...", "......", "##.##.", "......", "#.#.#.", "......"},
		"too long vessel": {"####..", "......", "##.##.", "......", "#.#.#.", "......"},
	}
	for name, rows := range cases {
		t.Run(name, func(t *testing.T) {
			b, err := BoardFromRows(rows...)
			require.NoError(t, err)
			require.ErrorIs(t, b.Validate(), ErrInvalidBoard)
		})
	}
	_, err := BoardFromRows("......")
	require.ErrorIs(t, err, ErrInvalidBoard)
	_, err = BoardFromRows("x.....", "......", "......", "......", "......", "......")
	require.ErrorIs(t, err, ErrInvalidBoard)
}

func TestIndexRoundTrip(t *testing.T) {
	for i := 0; i < Size*Size; i++ {
		require.Equal(t, i, CoordinateAt(i).Index())
	}
	b, _, err := Preset(0)
	require.NoError(t, err)
	bits := b.Flatten()
	require.Len(t, bits, 36)
	require.Equal(t, uint8(1), bits[at(1, 1).Index()])
	require.Equal(t, uint8(0), bits[at(1, 4).Index()])
}

package match

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"navybattle/internal/choice"
	"navybattle/internal/game"
)

type recorder struct {
	NopObserver
	attacks  []string
	dupes    int
	finished []Outcome
	placed   int
	resets   int
}

func (r *recorder) Placed(*Side, game.Vessel) { r.placed++ }

func (r *recorder) Reset(*Side, int, error) { r.resets++ }

func (r *recorder) Attacked(attacker, _ *Side, _ game.Coordinate, out game.Outcome) {
	if out == game.OutcomeAlreadyAttacked {
		r.dupes++
		return
	}
	r.attacks = append(r.attacks, attacker.Name)
}

func (r *recorder) Finished(_ *Match, o Outcome) { r.finished = append(r.finished, o) }

type script struct{ coords []game.Coordinate }

func (s *script) Coordinate(context.Context) (game.Coordinate, error) {
	if len(s.coords) == 0 {
		return game.Coordinate{}, errors.New("script exhausted")
	}
	c := s.coords[0]
	s.coords = s.coords[1:]
	return c, nil
}

func (s *script) Direction(context.Context) (game.Direction, error) { return game.Right, nil }

func allCells() []game.Coordinate {
	out := make([]game.Coordinate, 0, game.Size*game.Size)
	for i := 0; i < game.Size*game.Size; i++ {
		out = append(out, game.CoordinateAt(i))
	}
	return out
}

func newReadyMatch(t *testing.T, seed int64, obs Observer) *Match {
	t.Helper()
	m := New(Options{PresetOpponent: true, MaxAttempts: 500}, choice.NewRandom(seed), obs)
	ctx := context.Background()
	require.NoError(t, m.DeployHuman(ctx, choice.NewRandom(seed+1000)))
	require.NoError(t, m.DeployComputer(ctx))
	require.True(t, m.Ready())
	return m
}

func TestDeployBothSides(t *testing.T) {
	rec := &recorder{}
	m := newReadyMatch(t, 3, rec)
	require.Equal(t, game.FleetCells, m.Human.Afloat)
	require.Equal(t, game.FleetCells, m.Computer.Afloat)
	require.NoError(t, m.Human.Board.Validate())
	require.NoError(t, m.Computer.Board.Validate())
	require.GreaterOrEqual(t, rec.placed, game.FleetSize)
}

func TestDeployComputerWithoutPreset(t *testing.T) {
	m := New(Options{MaxAttempts: 500}, choice.NewRandom(11), nil)
	require.NoError(t, m.DeployComputer(context.Background()))
	require.True(t, m.Computer.Ready())
	require.NoError(t, m.Computer.Board.Validate())
}

func TestRoundRequiresFleets(t *testing.T) {
	m := New(Options{PresetOpponent: true}, choice.NewRandom(1), nil)
	_, err := m.Round(context.Background(), &script{})
	require.ErrorIs(t, err, ErrNotReady)
	_, err = m.PlayRound(context.Background(), game.Coordinate{Row: 1, Col: 1})
	require.ErrorIs(t, err, ErrNotReady)
}

func TestRoundOrderAndDuplicates(t *testing.T) {
	rec := &recorder{}
	m := newReadyMatch(t, 5, rec)
	src := &script{coords: []game.Coordinate{{Row: 1, Col: 1}, {Row: 1, Col: 1}, {Row: 2, Col: 2}}}

	res, err := m.Round(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 1, res.Round)
	require.Equal(t, game.Coordinate{Row: 1, Col: 1}, res.Human.At)

	res, err = m.Round(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 2, res.Round)
	require.Equal(t, game.Coordinate{Row: 2, Col: 2}, res.Human.At)

	require.Equal(t, []string{"computer", "human", "computer", "human"}, rec.attacks)
	require.Equal(t, 1, rec.dupes)
	require.Equal(t, 2, m.Human.Log.Len())
	require.Equal(t, 2, m.Computer.Log.Len())
	require.Equal(t, 2, m.Rounds())
}

func TestPlayRoundRejectsDuplicateWithoutConsumingTurn(t *testing.T) {
	m := newReadyMatch(t, 8, nil)
	ctx := context.Background()
	target := game.Coordinate{Row: 4, Col: 4}

	_, err := m.PlayRound(ctx, target)
	require.NoError(t, err)
	human, computer := m.Human.Board, m.Computer.Board

	_, err = m.PlayRound(ctx, target)
	require.ErrorIs(t, err, ErrAlreadyAttacked)
	require.Equal(t, 1, m.Computer.Log.Len(), "computer must not attack on a rejected round")
	require.Equal(t, human, m.Human.Board)
	require.Equal(t, computer, m.Computer.Board)
	require.Equal(t, 1, m.Rounds())

	_, err = m.PlayRound(ctx, game.Coordinate{Row: 0, Col: 3})
	require.ErrorIs(t, err, game.ErrOutOfBounds)
}

func TestTrackingMirrorsOpponent(t *testing.T) {
	m := newReadyMatch(t, 13, nil)
	ctx := context.Background()
	for _, c := range allCells()[:10] {
		_, err := m.PlayRound(ctx, c)
		require.NoError(t, err)
	}
	for _, c := range m.Human.Log.Coordinates() {
		require.Equal(t, m.Computer.Board.At(c), m.Human.Tracking.At(c))
	}
	for _, c := range m.Computer.Log.Coordinates() {
		require.Equal(t, m.Human.Board.At(c), m.Computer.Tracking.At(c))
	}
	require.Zero(t, m.Human.Tracking.Count(game.Occupied))
}

func TestRunToTheEnd(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		rec := &recorder{}
		m := newReadyMatch(t, seed, rec)
		out, err := m.Run(context.Background(), &script{coords: allCells()})
		require.NoError(t, err, "seed %d", seed)
		require.NotEqual(t, Undecided, out)
		require.Equal(t, []Outcome{out}, rec.finished)

		switch out {
		case Victory:
			require.Zero(t, m.Computer.Afloat)
			require.Positive(t, m.Human.Afloat)
		case Defeat:
			require.Zero(t, m.Human.Afloat)
			require.Positive(t, m.Computer.Afloat)
		case Draw:
			require.Zero(t, m.Human.Afloat)
			require.Zero(t, m.Computer.Afloat)
		}
		require.Equal(t, m.Human.Log.Len(), m.Computer.Log.Len(), "both sides attack every round")
		require.Equal(t, game.FleetCells-m.Computer.Afloat, m.Computer.Board.Count(game.Hit))

		_, err = m.Round(context.Background(), &script{coords: allCells()})
		require.ErrorIs(t, err, ErrFinished)
	}
}

func TestSettle(t *testing.T) {
	cases := []struct {
		human, computer int
		want            Outcome
	}{
		{3, 2, Undecided},
		{0, 0, Draw},
		{4, 0, Victory},
		{0, 1, Defeat},
	}
	for _, tc := range cases {
		m := New(Options{}, choice.NewRandom(1), nil)
		m.Human.Afloat, m.Computer.Afloat = tc.human, tc.computer
		require.Equal(t, tc.want, m.settle())
	}
}

func TestPlaceHumanManually(t *testing.T) {
	preset, fleet, err := game.Preset(2)
	require.NoError(t, err)
	rec := &recorder{}
	m := New(Options{PresetOpponent: true}, choice.NewRandom(1), rec)

	cls, remaining, ok := m.HumanNext()
	require.True(t, ok)
	require.Equal(t, 1, cls.Length)
	require.Equal(t, 4, remaining)

	_, err = m.PlaceHuman(game.Request{Anchor: game.Coordinate{Row: 0, Col: 1}})
	require.ErrorIs(t, err, game.ErrOutOfBounds)

	for length := 1; length <= 3; length++ {
		for _, v := range fleet {
			if len(v) != length {
				continue
			}
			req := game.Request{Anchor: v[0], Dir: game.Right}
			if len(v) > 1 && v[1].Col == v[0].Col {
				req.Dir = game.Down
			}
			_, err := m.PlaceHuman(req)
			require.NoError(t, err, "vessel %v", v)
		}
	}
	require.True(t, m.Human.Ready())
	require.Equal(t, preset, m.Human.Board)
	require.Equal(t, game.FleetCells, m.Human.Afloat)
	require.Equal(t, game.FleetSize, rec.placed)
	_, _, ok = m.HumanNext()
	require.False(t, ok)

	_, err = m.PlaceHuman(game.Request{Anchor: game.Coordinate{Row: 1, Col: 1}})
	require.ErrorIs(t, err, ErrFleetPlaced)
}

func TestPlaceHumanInfeasibleResets(t *testing.T) {
	rec := &recorder{}
	m := New(Options{}, choice.NewRandom(1), rec)
	for _, c := range []game.Coordinate{{Row: 2, Col: 2}, {Row: 2, Col: 5}, {Row: 5, Col: 2}} {
		_, err := m.PlaceHuman(game.Request{Anchor: c})
		require.NoError(t, err)
	}
	_, err := m.PlaceHuman(game.Request{Anchor: game.Coordinate{Row: 5, Col: 5}})
	require.ErrorIs(t, err, game.ErrInfeasible)
	require.Equal(t, 1, rec.resets)
	require.Zero(t, m.Human.Board.Count(game.Occupied))
	cls, remaining, ok := m.HumanNext()
	require.True(t, ok)
	require.Equal(t, 1, cls.Length)
	require.Equal(t, 4, remaining)
}

func TestDeployHumanFromPromptIgnoresRetryCaps(t *testing.T) {
	rec := &recorder{}
	m := New(Options{MaxAttempts: 2, MaxRestarts: 1}, choice.NewRandom(1), rec)
	single := game.Coordinate{Row: 5, Col: 1}
	src := &script{coords: []game.Coordinate{
		single, single, single, single, // three rejections of an occupied cell
		{Row: 5, Col: 3}, {Row: 5, Col: 5}, {Row: 1, Col: 6},
		{Row: 3, Col: 1}, {Row: 3, Col: 4},
		{Row: 1, Col: 1},
	}}
	require.NoError(t, m.DeployHuman(context.Background(), src))
	require.True(t, m.Human.Ready())
	require.NoError(t, m.Human.Board.Validate())
	require.Zero(t, rec.resets)
	require.Empty(t, src.coords)
}

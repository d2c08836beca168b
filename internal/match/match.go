// Package match runs one game between a human-directed side and a
// randomly directed computer side.
package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"navybattle/internal/choice"
	"navybattle/internal/game"
)

// Outcome is the result of a match from the human side's point of view.
type Outcome uint8

const (
	Undecided Outcome = iota
	Victory
	Defeat
	Draw
)

func (o Outcome) String() string {
	switch o {
	case Undecided:
		return "undecided"
	case Victory:
		return "victory"
	case Defeat:
		return "defeat"
	case Draw:
		return "draw"
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(b []byte) error {
	for _, v := range []Outcome{Undecided, Victory, Defeat, Draw} {
		if v.String() == string(b) {
			*o = v
			return nil
		}
	}
	return fmt.Errorf("unknown match outcome %q", b)
}

// Side is everything one player owns: its board, its view of the
// opponent's board, the log of its own attacks and the count of its
// cells still afloat.
type Side struct {
	Name     string
	Board    game.Board
	Tracking game.Board
	Log      game.AttackLog
	Fleet    game.Fleet
	Afloat   int

	builder *game.Builder
}

// Ready reports whether the side's fleet is fully placed.
func (s *Side) Ready() bool { return len(s.Fleet) == game.FleetSize }

func (s *Side) arm(f game.Fleet) {
	s.Fleet = f
	s.Afloat = f.Cells()
	s.builder = nil
}

// Observer receives every state change. Implementations render boards or
// push them to clients.
type Observer interface {
	Class(s *Side, c game.Class)
	Placed(s *Side, v game.Vessel)
	Rejected(s *Side, c game.Class, err error)
	Reset(s *Side, restarts int, cause error)
	Attacked(attacker, defender *Side, c game.Coordinate, out game.Outcome)
	Finished(m *Match, o Outcome)
}

// NopObserver ignores everything. Embed it to implement only some hooks.
type NopObserver struct{}

func (NopObserver) Class(*Side, game.Class) {}
func (NopObserver) Placed(*Side, game.Vessel) {}
func (NopObserver) Rejected(*Side, game.Class, error) {}
func (NopObserver) Reset(*Side, int, error) {}
func (NopObserver) Attacked(*Side, *Side, game.Coordinate, game.Outcome) {}
func (NopObserver) Finished(*Match, Outcome) {}

// Options tune setup. Zero limits mean unlimited retries. The limits only
// bound fleets built from random choices.
type Options struct {
	PresetOpponent bool
	MaxAttempts    int
	MaxRestarts    int
}

var (
	ErrNotReady        = errors.New("fleets are not placed yet")
	ErrFinished        = errors.New("match is over")
	ErrAlreadyAttacked = errors.New("cell already attacked")
	ErrBoardExhausted  = errors.New("no cell left to attack")
	ErrFleetPlaced     = errors.New("fleet already placed")
)

// Match is the state of one game. It is not safe for concurrent use.
type Match struct {
	Human    *Side
	Computer *Side

	opts     Options
	computer *choice.Random
	obs      Observer
	rounds   int
	outcome  Outcome
}

// New creates a match whose computer side draws every choice from computer.
func New(opts Options, computer *choice.Random, obs Observer) *Match {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Match{
		Human:    &Side{Name: "human"},
		Computer: &Side{Name: "computer"},
		opts:     opts,
		computer: computer,
		obs:      obs,
	}
}

func (m *Match) Outcome() Outcome { return m.outcome }

func (m *Match) Rounds() int { return m.rounds }

// Ready reports whether both fleets are placed.
func (m *Match) Ready() bool { return m.Human.Ready() && m.Computer.Ready() }

// limits returns the retry caps for src. Only random sources are capped;
// a person answering prompts is never cut off.
func (m *Match) limits(src game.ChoiceSource) (attempts, restarts int) {
	if _, ok := src.(*choice.Random); !ok {
		return 0, 0
	}
	return m.opts.MaxAttempts, m.opts.MaxRestarts
}

func (m *Match) deploy(ctx context.Context, s *Side, src game.ChoiceSource) error {
	maxAttempts, maxRestarts := m.limits(src)
	fleet, err := game.Build(ctx, &s.Board, src, game.BuildOptions{
		MaxAttempts: maxAttempts,
		MaxRestarts: maxRestarts,
		OnClass:     func(c game.Class) { m.obs.Class(s, c) },
		OnPlaced:    func(_ *game.Board, v game.Vessel) { m.obs.Placed(s, v) },
		OnRejected:  func(c game.Class, err error) { m.obs.Rejected(s, c, err) },
		OnReset: func(restarts int, cause error) {
			log.Debug().Str("side", s.Name).Int("restarts", restarts).Err(cause).Msg("Fleet placement restarted")
			m.obs.Reset(s, restarts, cause)
		},
	})
	if err != nil {
		return fmt.Errorf("placing %s fleet: %w", s.Name, err)
	}
	s.arm(fleet)
	log.Debug().Str("side", s.Name).Int("cells", s.Afloat).Msg("Fleet placed")
	return nil
}

// DeployHuman places the human fleet from src, retrying until it is legal.
func (m *Match) DeployHuman(ctx context.Context, src game.ChoiceSource) error {
	return m.deploy(ctx, m.Human, src)
}

// DeployComputer places the computer fleet, either from a preset board or
// by building one from random choices.
func (m *Match) DeployComputer(ctx context.Context) error {
	if !m.opts.PresetOpponent {
		return m.deploy(ctx, m.Computer, m.computer)
	}
	b, fleet, err := game.RandomPreset(m.computer.Rand())
	if err != nil {
		return err
	}
	m.Computer.Board = b
	m.Computer.arm(fleet)
	log.Debug().Str("side", m.Computer.Name).Msg("Preset fleet selected")
	return nil
}

// PlaceHuman applies one manual placement request to the human fleet.
// game.ErrInfeasible means the vessel fit but the fleet was reset.
func (m *Match) PlaceHuman(req game.Request) (game.Vessel, error) {
	s := m.Human
	if s.Ready() {
		return nil, ErrFleetPlaced
	}
	if s.builder == nil {
		s.builder = game.NewBuilder(&s.Board)
	}
	cls, _, _ := s.builder.Current()
	v, err := s.builder.Place(req)
	switch {
	case err == nil:
		m.obs.Placed(s, v)
	case errors.Is(err, game.ErrInfeasible):
		m.obs.Placed(s, v)
		m.obs.Reset(s, s.builder.Restarts(), err)
		return v, err
	default:
		m.obs.Rejected(s, cls, err)
		return nil, err
	}
	if _, _, more := s.builder.Current(); !more {
		s.arm(s.builder.Fleet())
	}
	return v, nil
}

// HumanNext returns the class the next manual placement must be.
func (m *Match) HumanNext() (game.Class, int, bool) {
	if m.Human.Ready() {
		return game.Class{}, 0, false
	}
	if m.Human.builder == nil {
		return game.Classes[0], game.Classes[0].Count, true
	}
	return m.Human.builder.Current()
}

// Shot is one attack and its outcome.
type Shot struct {
	At      game.Coordinate `json:"at"`
	Outcome game.Outcome    `json:"outcome"`
}

// RoundResult reports both attacks of a round.
type RoundResult struct {
	Round    int     `json:"round"`
	Computer Shot    `json:"computer"`
	Human    Shot    `json:"human"`
	Outcome  Outcome `json:"outcome"`
}

func (m *Match) attack(attacker, defender *Side, c game.Coordinate) (game.Outcome, error) {
	out, err := game.Attack(&defender.Board, &attacker.Tracking, &attacker.Log, c)
	if err != nil {
		return out, err
	}
	if out == game.OutcomeHit {
		defender.Afloat--
	}
	log.Debug().Str("side", attacker.Name).Int("row", c.Row).Int("col", c.Col).Stringer("outcome", out).Msg("Attack")
	m.obs.Attacked(attacker, defender, c, out)
	return out, nil
}

func (m *Match) computerAttack(ctx context.Context) (Shot, error) {
	if m.Computer.Log.Len() >= game.Size*game.Size {
		return Shot{}, ErrBoardExhausted
	}
	for {
		c, err := m.computer.Coordinate(ctx)
		if err != nil {
			return Shot{}, err
		}
		if m.Computer.Log.Contains(c) {
			continue
		}
		out, err := m.attack(m.Computer, m.Human, c)
		return Shot{At: c, Outcome: out}, err
	}
}

func (m *Match) check() error {
	if !m.Ready() {
		return ErrNotReady
	}
	if m.outcome != Undecided {
		return ErrFinished
	}
	return nil
}

// settle decides the match once both attacks of a round are done.
func (m *Match) settle() Outcome {
	m.rounds++
	humanSunk, computerSunk := m.Human.Afloat == 0, m.Computer.Afloat == 0
	switch {
	case humanSunk && computerSunk:
		m.outcome = Draw
	case computerSunk:
		m.outcome = Victory
	case humanSunk:
		m.outcome = Defeat
	}
	if m.outcome != Undecided {
		log.Info().Int("rounds", m.rounds).Stringer("outcome", m.outcome).Msg("Match finished")
		m.obs.Finished(m, m.outcome)
	}
	return m.outcome
}

// Round plays one full round: the computer attacks, then the human attacks
// with coordinates from src, then the end condition is checked. Coordinates
// the human already attacked are reported and asked for again.
func (m *Match) Round(ctx context.Context, src game.ChoiceSource) (RoundResult, error) {
	if err := m.check(); err != nil {
		return RoundResult{}, err
	}
	res := RoundResult{Round: m.rounds + 1}
	var err error
	if res.Computer, err = m.computerAttack(ctx); err != nil {
		return res, err
	}
	for {
		c, err := src.Coordinate(ctx)
		if err != nil {
			return res, err
		}
		out, err := m.attack(m.Human, m.Computer, c)
		if err != nil {
			return res, err
		}
		if out != game.OutcomeAlreadyAttacked {
			res.Human = Shot{At: c, Outcome: out}
			break
		}
	}
	res.Outcome = m.settle()
	return res, nil
}

// PlayRound is Round for callers that already hold the human's target.
// A target the human already attacked returns ErrAlreadyAttacked and
// does not start the round.
func (m *Match) PlayRound(ctx context.Context, target game.Coordinate) (RoundResult, error) {
	if err := m.check(); err != nil {
		return RoundResult{}, err
	}
	if !target.InBounds() {
		return RoundResult{}, fmt.Errorf("%w: %v", game.ErrOutOfBounds, target)
	}
	if m.Human.Log.Contains(target) {
		m.obs.Attacked(m.Human, m.Computer, target, game.OutcomeAlreadyAttacked)
		return RoundResult{}, ErrAlreadyAttacked
	}
	res := RoundResult{Round: m.rounds + 1}
	var err error
	if res.Computer, err = m.computerAttack(ctx); err != nil {
		return res, err
	}
	out, err := m.attack(m.Human, m.Computer, target)
	if err != nil {
		return res, err
	}
	res.Human = Shot{At: target, Outcome: out}
	res.Outcome = m.settle()
	return res, nil
}

// Run plays rounds until the match is decided.
func (m *Match) Run(ctx context.Context, src game.ChoiceSource) (Outcome, error) {
	for m.outcome == Undecided {
		if _, err := m.Round(ctx, src); err != nil {
			return m.outcome, err
		}
	}
	return m.outcome, nil
}

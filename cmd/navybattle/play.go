package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"navybattle/internal/app"
	"navybattle/internal/choice"
	"navybattle/internal/codec"
	"navybattle/internal/config"
	"navybattle/internal/game"
	"navybattle/internal/match"
	"navybattle/internal/render"
	"navybattle/internal/zk"
)

const rules = `Welcome to Navy Battle!

Both sides hide a fleet on a %[1]dx%[1]d board: four 1-cell vessels, two 2-cell
vessels and one 3-cell vessel, %[2]d cells in all. Vessels are straight and
never touch each other, not even at the corners.

Every round the computer fires first, then you. Each cell can be fired at
only once. Sink all %[2]d enemy cells to win; if both fleets go down in the
same round the game is a draw.

Coordinates are entered as X (column) and then Y (row), both from 1 to %[1]d.
`

func cmdPlay(cfg *config.Config) {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed (0 = time based)")
	fs.BoolVar(&cfg.PresetOpponent, "preset", cfg.PresetOpponent, "computer uses one of the preset boards")
	fs.BoolVar(&cfg.Verify, "verify", cfg.Verify, "prove every enemy answer against its board commitment")
	fs.StringVar(&cfg.KeysDir, "keys", cfg.KeysDir, "keys directory (with --verify)")
	auto := fs.Bool("auto", false, "place your fleet randomly")
	_ = fs.Parse(os.Args[2:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	term := render.NewTerminal(os.Stdout)
	prompt := choice.NewPrompt(os.Stdin, os.Stdout)
	con := &console{term: term}
	m := match.New(match.Options{
		PresetOpponent: cfg.PresetOpponent,
		MaxAttempts:    cfg.MaxAttempts,
		MaxRestarts:    cfg.MaxRestarts,
	}, choice.NewRandom(cfg.Seed), con)

	if err := play(ctx, cfg, m, con, prompt, *auto); err != nil {
		if errors.Is(err, choice.ErrInputClosed) || errors.Is(err, context.Canceled) {
			term.Println("\nBye.")
			return
		}
		log.Fatal().Err(err).Msg("Game aborted")
	}
}

func play(ctx context.Context, cfg *config.Config, m *match.Match, con *console, prompt *choice.Prompt, auto bool) error {
	term := con.term
	term.Printf(rules, game.Size, game.FleetCells)
	term.Println()

	if err := m.DeployComputer(ctx); err != nil {
		return err
	}
	var judge *referee
	if cfg.Verify {
		term.Println("Preparing proof keys, this can take a moment...")
		var err error
		if judge, err = newReferee(cfg.KeysDir, m.Computer.Board); err != nil {
			return err
		}
		term.Printf("The enemy committed to its board: %s\n\n", judge.commit.RootHex)
	}

	var src game.ChoiceSource = prompt
	if auto {
		humanSeed := int64(0)
		if cfg.Seed != 0 {
			humanSeed = cfg.Seed + 1
		}
		src = choice.NewRandom(humanSeed)
		con.quiet = true
	}
	term.Println("Place your fleet.")
	term.Board(&m.Human.Board)
	if err := m.DeployHuman(ctx, src); err != nil {
		return err
	}
	con.quiet = false
	if auto {
		term.Board(&m.Human.Board)
	}

	term.Println("Battle stations! Your waters on the left, the enemy's on the right.")
	for m.Outcome() == match.Undecided {
		res, err := m.Round(ctx, prompt)
		if err != nil {
			return err
		}
		term.Printf("Enemy cells hit: %d/%d\n", m.Computer.Board.Count(game.Hit), game.FleetCells)
		if judge != nil {
			judge.check(term, res.Human)
		}
		term.Println()
	}
	return nil
}

var counts = map[int]string{1: "one", 2: "two", 3: "three", 4: "four"}

// console prints the match to a terminal as it happens.
type console struct {
	match.NopObserver
	term  *render.Terminal
	quiet bool
}

func (c *console) Class(s *match.Side, cls game.Class) {
	if s.Name != "human" || c.quiet {
		return
	}
	noun := "vessel"
	if cls.Count > 1 {
		noun = "vessels"
	}
	c.term.Printf("== Place %s %d-cell %s ==\n", counts[cls.Count], cls.Length, noun)
}

func (c *console) Placed(s *match.Side, _ game.Vessel) {
	if s.Name != "human" || c.quiet {
		return
	}
	c.term.Board(&s.Board)
}

func (c *console) Rejected(s *match.Side, _ game.Class, err error) {
	if s.Name != "human" || c.quiet {
		return
	}
	switch {
	case errors.Is(err, game.ErrOutOfBounds):
		c.term.Println("The vessel does not fit on the board. Try again.")
	case errors.Is(err, game.ErrCellOccupied):
		c.term.Println("That cell is already taken. Try again.")
	case errors.Is(err, game.ErrAdjacent):
		c.term.Println("Vessels must not touch each other. Try again.")
	default:
		c.term.Printf("%v. Try again.\n", err)
	}
}

func (c *console) Reset(s *match.Side, _ int, _ error) {
	if s.Name != "human" || c.quiet {
		return
	}
	c.term.Println("The remaining vessels can no longer fit. The board was cleared, start again.")
}

func (c *console) Attacked(attacker, defender *match.Side, at game.Coordinate, out game.Outcome) {
	if attacker.Name == "computer" {
		c.term.Printf("The enemy fires at X=%d Y=%d: %s\n", at.Col, at.Row, out)
		c.term.Pair(&defender.Board, &defender.Tracking)
		c.term.Println("Your shot:")
		return
	}
	switch out {
	case game.OutcomeHit:
		c.term.Printf("X=%d Y=%d: Hit!\n", at.Col, at.Row)
	case game.OutcomeMiss:
		c.term.Printf("X=%d Y=%d: Miss.\n", at.Col, at.Row)
	case game.OutcomeAlreadyAttacked:
		c.term.Println("You already fired at that cell. Try again.")
	}
}

func (c *console) Finished(m *match.Match, o match.Outcome) {
	c.term.Pair(&m.Human.Board, &m.Computer.Board)
	switch o {
	case match.Victory:
		c.term.Println("You sank the whole enemy fleet. You win!")
	case match.Defeat:
		c.term.Println("Your fleet was sunk. You lose.")
	case match.Draw:
		c.term.Println("Both fleets sank in the same round. It's a draw.")
	}
}

// referee proves every answer of the computer side against the board it
// committed to before the battle.
type referee struct {
	keys   *zk.Keys
	commit *app.CommitResult
}

func newReferee(keysDir string, b game.Board) (*referee, error) {
	keys, err := zk.EnsureKeys(keysDir)
	if err != nil {
		return nil, err
	}
	com, err := app.Commit(b)
	if err != nil {
		return nil, err
	}
	return &referee{keys: keys, commit: com}, nil
}

func (r *referee) verify(shot match.Shot) error {
	res, err := app.Shoot(r.keys, r.commit.Secret, shot.At)
	if err != nil {
		return err
	}
	vr, err := app.VerifyWithRoot(r.keys.VerifyingKey(), r.commit.Root, res.Payload)
	if err != nil {
		return err
	}
	if (vr.Hit == 1) != (shot.Outcome == game.OutcomeHit) {
		return fmt.Errorf("reported %s but the commitment says hit=%d", shot.Outcome, vr.Hit)
	}
	return nil
}

func (r *referee) check(term *render.Terminal, shot match.Shot) {
	if err := r.verify(shot); err != nil {
		log.Warn().Err(err).Str("root", codec.Hex(r.commit.Root)).Msg("Enemy answer failed verification")
		term.Printf("✗ proof rejected: %v\n", err)
		return
	}
	term.Println("✓ answer proven against the enemy's commitment")
}

package server

import (
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"navybattle/internal/codec"
	"navybattle/internal/game"
	"navybattle/internal/match"
)

// Phase names reported to clients.
const (
	PhasePlacement = "placement"
	PhaseBattle    = "battle"
	PhaseOver      = "over"
)

// session is one match plus the computer's board commitment.
type session struct {
	mu     sync.Mutex
	id     string
	m      *match.Match
	secret codec.Secret
	root   *big.Int
	events *eventLog

	// unix nanos of the last request that resolved this session
	seen atomic.Int64
}

func (s *session) touch(now time.Time) { s.seen.Store(now.UnixNano()) }

func (s *session) idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.seen.Load()))
}

// Event is one observed change of a match.
type Event struct {
	Type    string            `json:"type"`
	Side    string            `json:"side,omitempty"`
	At      *game.Coordinate  `json:"at,omitempty"`
	Cells   []game.Coordinate `json:"cells,omitempty"`
	Outcome string            `json:"outcome,omitempty"`
	Message string            `json:"message,omitempty"`
}

// eventLog is the match.Observer of a session. It buffers the events of
// one request so they can be returned and broadcast together.
type eventLog struct {
	pending []Event
}

// Class is not reported; the snapshot carries the next vessel instead.
func (l *eventLog) Class(*match.Side, game.Class) {}

func (l *eventLog) Placed(s *match.Side, v game.Vessel) {
	l.pending = append(l.pending, Event{Type: "placed", Side: s.Name, Cells: v})
}

func (l *eventLog) Rejected(s *match.Side, _ game.Class, err error) {
	l.pending = append(l.pending, Event{Type: "rejected", Side: s.Name, Message: err.Error()})
}

func (l *eventLog) Reset(s *match.Side, _ int, cause error) {
	l.pending = append(l.pending, Event{Type: "reset", Side: s.Name, Message: cause.Error()})
}

func (l *eventLog) Attacked(attacker, _ *match.Side, c game.Coordinate, out game.Outcome) {
	l.pending = append(l.pending, Event{Type: "attacked", Side: attacker.Name, At: &c, Outcome: out.String()})
}

func (l *eventLog) Finished(_ *match.Match, o match.Outcome) {
	l.pending = append(l.pending, Event{Type: "finished", Outcome: o.String()})
}

func (l *eventLog) drain() []Event {
	out := l.pending
	l.pending = nil
	return out
}

// NextVessel describes the vessel a manual placement must be.
type NextVessel struct {
	Length    int `json:"length"`
	Remaining int `json:"remaining"`
}

// Snapshot is everything a client needs to draw the match. The opponent's
// board is only revealed once the match is over.
type Snapshot struct {
	ID       string        `json:"id"`
	Phase    string        `json:"phase"`
	Next     *NextVessel   `json:"next,omitempty"`
	Own      [][]string    `json:"own"`
	Tracking [][]string    `json:"tracking"`
	Opponent [][]string    `json:"opponent,omitempty"`
	Score    int           `json:"score"`
	Lost     int           `json:"lost"`
	Rounds   int           `json:"rounds"`
	Outcome  match.Outcome `json:"outcome"`
	RootHex  string        `json:"rootHex"`
	Events   []Event       `json:"events,omitempty"`
}

func states(b *game.Board) [][]string {
	out := make([][]string, game.Size)
	for r := range out {
		out[r] = make([]string, game.Size)
		for c := range out[r] {
			out[r][c] = b.Cells[r][c].String()
		}
	}
	return out
}

// snapshot must be called with mu held.
func (s *session) snapshot(events []Event) Snapshot {
	m := s.m
	snap := Snapshot{
		ID:       s.id,
		Phase:    PhaseBattle,
		Own:      states(&m.Human.Board),
		Tracking: states(&m.Human.Tracking),
		Score:    m.Computer.Board.Count(game.Hit),
		Lost:     m.Human.Board.Count(game.Hit),
		Rounds:   m.Rounds(),
		Outcome:  m.Outcome(),
		RootHex:  codec.Hex(s.root),
		Events:   events,
	}
	switch {
	case m.Outcome() != match.Undecided:
		snap.Phase = PhaseOver
		snap.Opponent = states(&m.Computer.Board)
	case !m.Human.Ready():
		snap.Phase = PhasePlacement
		if cls, remaining, ok := m.HumanNext(); ok {
			snap.Next = &NextVessel{Length: cls.Length, Remaining: remaining}
		}
	}
	return snap
}

package game

import (
	"fmt"
	"slices"
)

// Outcome classifies an attack.
type Outcome uint8

const (
	OutcomeMiss Outcome = iota
	OutcomeHit
	OutcomeAlreadyAttacked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMiss:
		return "miss"
	case OutcomeHit:
		return "hit"
	case OutcomeAlreadyAttacked:
		return "already_attacked"
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(b []byte) error {
	for _, v := range []Outcome{OutcomeMiss, OutcomeHit, OutcomeAlreadyAttacked} {
		if v.String() == string(b) {
			*o = v
			return nil
		}
	}
	return fmt.Errorf("unknown attack outcome %q", b)
}

// AttackLog records, in order, the coordinates one attacker has targeted on
// one board. It only grows. The zero value is ready to use.
type AttackLog struct {
	seen  map[Coordinate]struct{}
	order []Coordinate
}

func (l *AttackLog) Contains(c Coordinate) bool {
	_, ok := l.seen[c]
	return ok
}

func (l *AttackLog) add(c Coordinate) {
	if l.seen == nil {
		l.seen = make(map[Coordinate]struct{}, Size*Size)
	}
	l.seen[c] = struct{}{}
	l.order = append(l.order, c)
}

func (l *AttackLog) Len() int { return len(l.order) }

// Coordinates returns the attacked coordinates in attack order.
func (l *AttackLog) Coordinates() []Coordinate { return slices.Clone(l.order) }

// Attack fires at c on the defender board. A coordinate already in log is
// reported as OutcomeAlreadyAttacked without touching anything. Otherwise
// the coordinate is logged, the defender cell moves to Hit or Miss and, when
// tracking is non-nil, the attacker's view of the defender gets the same mark.
func Attack(defender *Board, tracking *Board, log *AttackLog, c Coordinate) (Outcome, error) {
	if !c.InBounds() {
		return 0, fmt.Errorf("%w: %v", ErrOutOfBounds, c)
	}
	// Hit and Miss are terminal even if the cell was marked outside this log.
	if s := defender.At(c); log.Contains(c) || s == Hit || s == Miss {
		return OutcomeAlreadyAttacked, nil
	}
	log.add(c)
	out, mark := OutcomeMiss, Miss
	if defender.At(c) == Occupied {
		out, mark = OutcomeHit, Hit
	}
	defender.set(c, mark)
	if tracking != nil {
		tracking.set(c, mark)
	}
	return out, nil
}

// Package app ties board commitments to shot proofs for the CLI and the
// server.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/rs/zerolog/log"

	"navybattle/internal/choice"
	"navybattle/internal/codec"
	"navybattle/internal/game"
	"navybattle/internal/merkle"
	"navybattle/internal/zk"
)

type CommitResult struct {
	RootHex string
	Root    *big.Int
	Secret  codec.Secret
}

// InitBoard builds a random legal board from seed (0 means time based).
func InitBoard(ctx context.Context, seed int64, opts game.BuildOptions) (game.Board, error) {
	var b game.Board
	if _, err := game.Build(ctx, &b, choice.NewRandom(seed), opts); err != nil {
		return game.Board{}, err
	}
	return b, nil
}

// Commit hides b behind a salted Merkle root.
func Commit(b game.Board) (*CommitResult, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	t, err := merkle.Build(b.Flatten())
	if err != nil {
		return nil, err
	}

	// this is to make root unique for same boards
	salt, err := merkle.NewSalt()
	if err != nil {
		return nil, err
	}
	root := merkle.Salted(salt, t.Root())

	sec := codec.Secret{
		Board:   b,
		Tree:    t,
		SaltHex: codec.Hex(salt),
	}
	log.Debug().Str("root", codec.Hex(root)).Msg("Board committed")
	return &CommitResult{RootHex: codec.Hex(root), Root: root, Secret: sec}, nil
}

type ShootResult struct {
	Payload codec.ShotProofPayload
	Bit     uint8
}

// Shoot proves what the committed board holds at c.
func Shoot(keys *zk.Keys, sec codec.Secret, c game.Coordinate) (*ShootResult, error) {
	if !c.InBounds() {
		return nil, fmt.Errorf("%w: %v", game.ErrOutOfBounds, c)
	}
	if sec.Tree == nil {
		return nil, errors.New("secret has no tree")
	}
	salt, err := sec.Salt()
	if err != nil {
		return nil, err
	}
	root := merkle.Salted(salt, sec.Tree.Root())

	idx := c.Index()
	bit := sec.Board.Flatten()[idx]
	path, _, err := sec.Tree.Path(idx)
	if err != nil {
		return nil, err
	}
	if len(path) != merkle.Depth {
		return nil, fmt.Errorf("bad path length")
	}

	proof, pub, err := keys.ProveShot(zk.ShotWitness{Bit: bit, Index: idx, Path: path, Salt: salt, Root: root})
	if err != nil {
		return nil, err
	}
	return &ShootResult{
		Payload: codec.ShotProofPayload{Proof: proof, Public: pub},
		Bit:     bit,
	}, nil
}

type VerifyResult struct {
	Valid bool            `json:"valid"`
	Hit   uint8           `json:"hit"`
	At    game.Coordinate `json:"at"`
}

// VerifyWithRoot checks payload against the defender's salted root. The
// root carried in the payload is ignored in favour of root.
func VerifyWithRoot(vk groth16.VerifyingKey, root *big.Int, payload codec.ShotProofPayload) (*VerifyResult, error) {
	if payload.Public.Hit != 0 && payload.Public.Hit != 1 {
		return nil, fmt.Errorf("invalid hit public output")
	}
	if payload.Public.Index < 0 || payload.Public.Index >= game.Size*game.Size {
		return nil, fmt.Errorf("%w: cell index %d", game.ErrOutOfBounds, payload.Public.Index)
	}
	payload.Public.Root = new(big.Int).Set(root)

	ok, err := zk.VerifyShot(vk, payload.Proof, payload.Public, root)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Valid: ok, Hit: payload.Public.Hit, At: game.CoordinateAt(payload.Public.Index)}, nil
}

// VerifyingKeyB64 encodes vk for sharing with the attacker.
func VerifyingKeyB64(vk groth16.VerifyingKey) (string, error) {
	raw, err := zk.EncodeVK(vk)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ParseVerifyingKeyB64 is the inverse of VerifyingKeyB64.
func ParseVerifyingKeyB64(s string) (groth16.VerifyingKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) == 0 {
		return nil, errors.New("invalid verifying key encoding")
	}
	return zk.ParseVK(raw)
}

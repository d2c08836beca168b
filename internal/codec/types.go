// Package codec holds the JSON shapes shared by the CLI and the server.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"navybattle/internal/game"
	"navybattle/internal/merkle"
	"navybattle/internal/zk"
)

// Secret is what the defender keeps private after committing a board.
type Secret struct {
	Board   game.Board   `json:"board"`
	Tree    *merkle.Tree `json:"tree"`
	SaltHex string       `json:"salt_hex"`
}

// Salt parses SaltHex.
func (s *Secret) Salt() (*big.Int, error) {
	if s.SaltHex == "" {
		return nil, errors.New("missing salt in secret")
	}
	n, err := ParseHex(s.SaltHex)
	if err != nil {
		return nil, fmt.Errorf("invalid salt: %w", err)
	}
	return n, nil
}

// Root is the salted root the opponent checks proofs against.
func (s *Secret) Root() (*big.Int, error) {
	if s.Tree == nil {
		return nil, errors.New("missing tree in secret")
	}
	salt, err := s.Salt()
	if err != nil {
		return nil, err
	}
	return merkle.Salted(salt, s.Tree.Root()), nil
}

// Commitment is what the defender publishes before the first shot.
type Commitment struct {
	RootHex string `json:"rootHex"`
	VKB64   string `json:"vkB64,omitempty"`
}

type ShotProofPayload struct {
	Proof  []byte        `json:"proof"`
	Public zk.ShotPublic `json:"public"` // salted root, cell index and hit bit
}

// Hex formats n as 0x-prefixed hex.
func Hex(n *big.Int) string { return fmt.Sprintf("0x%x", n) }

// ParseHex reads a hex number with or without its 0x prefix.
func ParseHex(s string) (*big.Int, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if h == "" {
		return nil, errors.New("empty hex")
	}
	n, ok := new(big.Int).SetString(h, 16)
	if !ok {
		return nil, fmt.Errorf("cannot parse hex %q", s)
	}
	return n, nil
}

func SaveJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func LoadJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

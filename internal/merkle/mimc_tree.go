package merkle

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	bnmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// Depth of the board tree: 64 leaves hold the 36 cells plus padding.
const Depth = 6

// Leaves is the padded leaf count.
const Leaves = 1 << Depth

// encode BN254 field elements as 32-byte big-endian
func feBytes(x *big.Int) []byte {
	b := x.Bytes()
	if len(b) == 32 {
		return b
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func bytesToFE(b []byte) *big.Int { return new(big.Int).SetBytes(b) }

// HashLeaf is MiMC(bit), matching the in-circuit leaf hash.
func HashLeaf(bit uint8) *big.Int {
	h := bnmimc.NewMiMC()
	h.Write(feBytes(new(big.Int).SetUint64(uint64(bit))))
	return bytesToFE(h.Sum(nil))
}

// HashNode is MiMC(left, right).
func HashNode(left, right *big.Int) *big.Int {
	h := bnmimc.NewMiMC()
	h.Write(feBytes(left))
	h.Write(feBytes(right))
	return bytesToFE(h.Sum(nil))
}

// NewSalt draws a random field element.
func NewSalt() (*big.Int, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return new(big.Int).Mod(new(big.Int).SetBytes(buf), fr.Modulus()), nil
}

// Salted hides the tree root behind salt so equal boards commit differently.
func Salted(salt, root *big.Int) *big.Int { return HashNode(salt, root) }

// Tree is a fixed-size binary Merkle tree stored level by level.
type Tree struct {
	Depth  int          `json:"depth"`
	Levels [][]*big.Int `json:"levels"` // Levels[0]=leaves, Levels[Depth]=root
}

// Build hashes the ship bits of a board into a tree, padding with
// HashLeaf(0).
func Build(bits []uint8) (*Tree, error) {
	if len(bits) > Leaves {
		return nil, errors.New("too many leaves")
	}
	pad := HashLeaf(0)
	level := make([]*big.Int, Leaves)
	for i := range level {
		if i < len(bits) {
			level[i] = HashLeaf(bits[i])
		} else {
			level[i] = new(big.Int).Set(pad)
		}
	}
	levels := [][]*big.Int{level}
	for len(level) > 1 {
		up := make([]*big.Int, len(level)/2)
		for i := range up {
			up[i] = HashNode(level[2*i], level[2*i+1])
		}
		levels = append(levels, up)
		level = up
	}
	return &Tree{Depth: len(levels) - 1, Levels: levels}, nil
}

func (t *Tree) Root() *big.Int { return new(big.Int).Set(t.Levels[len(t.Levels)-1][0]) }

// Path returns sibling hashes + direction bits for index idx.
// dir[i]=0 means the current node is a left child, 1 a right child.
func (t *Tree) Path(idx int) (path []*big.Int, dir []uint8, err error) {
	if idx < 0 || idx >= len(t.Levels[0]) {
		return nil, nil, errors.New("leaf index out of range")
	}
	path = make([]*big.Int, 0, t.Depth)
	dir = make([]uint8, 0, t.Depth)
	cur := idx
	for level := 0; level < t.Depth; level++ {
		sib := cur ^ 1
		path = append(path, new(big.Int).Set(t.Levels[level][sib]))
		dir = append(dir, uint8(cur&1))
		cur /= 2
	}
	return path, dir, nil
}

// Verify recomputes the root from a leaf bit and its path.
func Verify(root *big.Int, bit uint8, path []*big.Int, dir []uint8) bool {
	if len(path) != len(dir) {
		return false
	}
	cur := HashLeaf(bit)
	for i := range path {
		if dir[i] == 1 {
			cur = HashNode(path[i], cur)
		} else {
			cur = HashNode(cur, path[i])
		}
	}
	return cur.Cmp(root) == 0
}

package zk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/rs/zerolog/log"

	"navybattle/internal/merkle"
)

const (
	vkFile = "shot.vk"
	pkFile = "shot.pk"
)

// ShotPublic is the public part of a shot proof.
type ShotPublic struct {
	Root  *big.Int `json:"root"`
	Index int      `json:"index"`
	Hit   uint8    `json:"hit"`
}

// Keys holds the compiled circuit and its Groth16 keys.
type Keys struct {
	cs constraint.ConstraintSystem
	pk groth16.ProvingKey
	vk groth16.VerifyingKey
}

func compile() (constraint.ConstraintSystem, error) {
	var circuit ShotCircuit
	return frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
}

// VKPath is where EnsureKeys keeps the verifying key inside dir.
func VKPath(dir string) string { return filepath.Join(dir, vkFile) }

// EnsureKeys loads the proving/verifying keys from dir, or runs the setup
// and writes them when they are missing or unreadable.
func EnsureKeys(dir string) (*Keys, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	cs, err := compile()
	if err != nil {
		return nil, fmt.Errorf("compile shot circuit: %w", err)
	}
	vkPath, pkPath := VKPath(dir), filepath.Join(dir, pkFile)

	// If both key files exist AND can be parsed, reuse them; else regenerate.
	if vk, verr := ReadVK(vkPath); verr == nil {
		if pk, perr := readPK(pkPath); perr == nil {
			return &Keys{cs: cs, pk: pk, vk: vk}, nil
		}
	}

	log.Info().Str("dir", dir).Int("constraints", cs.GetNbConstraints()).Msg("Running shot circuit setup")
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, err
	}
	if err := writeTo(vkPath, vk); err != nil {
		return nil, err
	}
	if err := writeTo(pkPath, pk); err != nil {
		return nil, err
	}
	return &Keys{cs: cs, pk: pk, vk: vk}, nil
}

func (k *Keys) VerifyingKey() groth16.VerifyingKey { return k.vk }

// ShotWitness is the private input of one shot proof.
type ShotWitness struct {
	Bit   uint8
	Index int
	Path  []*big.Int
	Salt  *big.Int
	Root  *big.Int // salted root
}

// ProveShot proves one shot against the committed root.
func (k *Keys) ProveShot(w ShotWitness) ([]byte, ShotPublic, error) {
	if len(w.Path) != merkle.Depth {
		return nil, ShotPublic{}, errors.New("bad path length")
	}

	var assign ShotCircuit
	assign.Bit = w.Bit
	assign.Salt = w.Salt
	for i := 0; i < merkle.Depth; i++ {
		assign.Path[i] = w.Path[i]
	}
	assign.Root = w.Root
	assign.Index = w.Index
	assign.Hit = w.Bit

	fullWit, err := frontend.NewWitness(&assign, ecc.BN254.ScalarField())
	if err != nil {
		return nil, ShotPublic{}, err
	}
	proof, err := groth16.Prove(k.cs, k.pk, fullWit)
	if err != nil {
		return nil, ShotPublic{}, err
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, ShotPublic{}, err
	}
	return buf.Bytes(), ShotPublic{Root: new(big.Int).Set(w.Root), Index: w.Index, Hit: w.Bit}, nil
}

// VerifyShot checks a shot proof against the expected root. Invalid
// proofs are reported through the error.
func VerifyShot(vk groth16.VerifyingKey, proofBin []byte, pub ShotPublic, root *big.Int) (bool, error) {
	if pub.Root == nil {
		return false, errors.New("proof payload missing public root")
	}
	if pub.Root.Cmp(root) != 0 {
		return false, errors.New("root mismatch: proof root differs from commitment")
	}

	// public-only witness built from the circuit type itself
	var pubAssign ShotCircuit
	pubAssign.Root = root
	pubAssign.Index = pub.Index
	pubAssign.Hit = pub.Hit
	pubWit, err := frontend.NewWitness(&pubAssign, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, err
	}

	pr := groth16.NewProof(ecc.BN254)
	if _, err := pr.ReadFrom(bytes.NewReader(proofBin)); err != nil {
		return false, err
	}
	if err := groth16.Verify(pr, vk, pubWit); err != nil {
		return false, err
	}
	return true, nil
}

// --- key IO helpers using io.WriterTo / io.ReaderFrom ---

func writeTo(path string, v io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = v.WriteTo(f)
	return err
}

// ReadVK loads a verifying key file.
func ReadVK(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	_, err = vk.ReadFrom(f)
	return vk, err
}

// ParseVK decodes a verifying key from its binary encoding.
func ParseVK(raw []byte) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return vk, nil
}

// EncodeVK returns the binary encoding of vk.
func EncodeVK(vk groth16.VerifyingKey) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readPK(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	_, err = pk.ReadFrom(f)
	return pk, err
}

package game

import (
	"fmt"
	"math/rand"
)

// presetRows are hand-made legal boards that can stand in for a randomly
// built opponent fleet.
var presetRows = [][Size]string{
	{"###...", ".....#", ".#.#..", ".#...#", "......", "##..#."},
	{"#..##.", "......", "#.#...", "#....#", "......", "#.###."},
	{"......", "#.##.#", "......", "..#.#.", "#.#...", "#.#..#"},
	{".#..#.", ".#....", "...###", "##....", ".....#", ".#.#.."},
	{"##.###", "......", "..#...", "#...#.", "......", "##.#.."},
	{"###.##", "......", ".#.#..", "...#..", ".....#", "#..#.."},
	{"#.#.##", "#.#...", "#.....", "...#..", "#....#", "...#.."},
}

// Presets is the number of preset boards.
var Presets = len(presetRows)

// Preset returns preset board i and its fleet.
func Preset(i int) (Board, Fleet, error) {
	if i < 0 || i >= len(presetRows) {
		return Board{}, nil, fmt.Errorf("preset %d out of range [0,%d)", i, len(presetRows))
	}
	rows := presetRows[i]
	b, err := BoardFromRows(rows[:]...)
	if err != nil {
		return Board{}, nil, err
	}
	f, err := FleetOf(&b)
	if err != nil {
		return Board{}, nil, fmt.Errorf("preset %d: %w", i, err)
	}
	return b, f, nil
}

// RandomPreset picks a preset uniformly with rng.
func RandomPreset(rng *rand.Rand) (Board, Fleet, error) {
	return Preset(rng.Intn(len(presetRows)))
}

package testutil

import (
	"errors"
	"math/rand/v2"
	"path/filepath"
	"strings"
)

const pathCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// PathGenerator produces every leaf of a random directory tree of the given
// depth and fan-out, width^depth paths in total, deterministically for a
// fixed seed.
type PathGenerator struct {
	rng     *rand.Rand
	depth   int
	width   int
	names   []string
	counter []int
	done    bool
}

// NewPathGenerator creates a generator seeded with seed.
func NewPathGenerator(depth, width int, seed uint64) (*PathGenerator, error) {
	if depth <= 0 || width <= 0 {
		return nil, errors.New("depth and width must be greater than 0")
	}
	g := &PathGenerator{
		rng:     rand.New(rand.NewPCG(seed, seed)),
		depth:   depth,
		width:   width,
		names:   make([]string, depth),
		counter: make([]int, depth),
	}
	for i := range g.names {
		g.names[i] = g.randomName()
	}
	return g, nil
}

// Next returns the next path, or false once the tree is exhausted.
func (g *PathGenerator) Next() (string, bool) {
	if g.done {
		return "", false
	}
	p := string(filepath.Separator) + strings.Join(g.names, string(filepath.Separator))

	// Advance the rightmost level that still has siblings left; every level
	// to its right restarts with fresh names.
	i := g.depth - 1
	for i >= 0 && g.counter[i] == g.width-1 {
		i--
	}
	if i < 0 {
		g.done = true
		return p, true
	}
	g.counter[i]++
	g.names[i] = g.randomName() + suffix(g.counter[i])
	for j := i + 1; j < g.depth; j++ {
		g.counter[j] = 0
		g.names[j] = g.randomName()
	}
	return p, true
}

// All drains the generator.
func (g *PathGenerator) All() []string {
	var out []string
	for {
		p, ok := g.Next()
		if !ok {
			return out
		}
		out = append(out, p)
	}
}

// Paths is a convenience for NewPathGenerator(depth, width, seed).All().
func Paths(depth, width int, seed uint64) []string {
	g, err := NewPathGenerator(depth, width, seed)
	if err != nil {
		panic(err)
	}
	return g.All()
}

func (g *PathGenerator) randomName() string {
	n := g.rng.IntN(12) + 1
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(pathCharset[g.rng.IntN(len(pathCharset))])
	}
	return b.String()
}

// suffix keeps sibling names distinct even if the random part repeats.
func suffix(i int) string {
	return "_" + string(rune('a'+i%26)) + strings.Repeat("z", i/26)
}

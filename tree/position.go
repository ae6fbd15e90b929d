package tree

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Position is the path of sibling indices from a root to a node.
type Position []int

// Compare orders positions by length first, shorter before longer. Positions
// of equal length compare element by element. It returns -1, 0 or 1.
func Compare(a, b Position) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}

		return 1
	}

	for i := range a {
		if a[i] < b[i] {
			return -1
		}

		if a[i] > b[i] {
			return 1
		}
	}

	return 0
}

// SortPositions sorts positions in place following Compare.
func SortPositions(positions []Position) {
	sort.SliceStable(positions, func(i, j int) bool {
		return Compare(positions[i], positions[j]) < 0
	})
}

// Equal tells whether two positions address the same slot.
func (p Position) Equal(other Position) bool {
	return Compare(p, other) == 0
}

// Child returns a new position pointing to the i-th child of p.
func (p Position) Child(i int) Position {
	child := make(Position, len(p)+1)
	copy(child, p)
	child[len(p)] = i

	return child
}

// Parent returns the position of the parent. Roots have no parent.
func (p Position) Parent() (Position, bool) {
	if len(p) <= 1 {
		return nil, false
	}

	return p[:len(p)-1 : len(p)-1], true
}

// Clone returns a copy that does not share storage with p.
func (p Position) Clone() Position {
	if p == nil {
		return nil
	}

	c := make(Position, len(p))
	copy(c, p)

	return c
}

// String formats the position as dot-separated indices, e.g. "0.2.1".
func (p Position) String() string {
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}

	return strings.Join(parts, ".")
}

// ParsePosition parses the format produced by String.
func ParsePosition(s string) (Position, error) {
	if s == "" {
		return Position{}, nil
	}

	parts := strings.Split(s, ".")
	p := make(Position, len(parts))

	for i, part := range parts {
		idx, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(err, "position %q", s)
		}

		if idx < 0 {
			return nil, errors.Newf("position %q: negative index %d", s, idx)
		}

		p[i] = idx
	}

	return p, nil
}

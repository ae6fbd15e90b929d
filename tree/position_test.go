package tree

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Position", func() {
	It("should put shorter positions first", func() {
		Expect(Compare(Position{5}, Position{0, 0})).To(Equal(-1))
		Expect(Compare(Position{0, 0, 0}, Position{9})).To(Equal(1))
	})

	It("should compare equal-length positions element by element", func() {
		Expect(Compare(Position{0, 1}, Position{0, 2})).To(Equal(-1))
		Expect(Compare(Position{1, 0}, Position{0, 9})).To(Equal(1))
		Expect(Compare(Position{3, 4}, Position{3, 4})).To(Equal(0))
	})

	It("should sort parents before their children", func() {
		positions := []Position{{1, 0, 0}, {1}, {0, 0}, {0}}

		SortPositions(positions)

		Expect(positions).To(Equal([]Position{{0}, {1}, {0, 0}, {1, 0, 0}}))
	})

	It("should derive child and parent positions", func() {
		p := Position{2, 1}
		child := p.Child(3)

		Expect(child).To(Equal(Position{2, 1, 3}))
		Expect(p).To(Equal(Position{2, 1}))

		parent, ok := child.Parent()
		Expect(ok).To(BeTrue())
		Expect(parent.Equal(p)).To(BeTrue())

		_, ok = Position{0}.Parent()
		Expect(ok).To(BeFalse())
	})

	It("should not let children alias the parent storage", func() {
		p := make(Position, 1, 4)
		a := p.Child(1)
		b := p.Child(2)

		Expect(a).To(Equal(Position{0, 1}))
		Expect(b).To(Equal(Position{0, 2}))
	})

	It("should format and parse positions", func() {
		p := Position{0, 12, 3}

		Expect(p.String()).To(Equal("0.12.3"))

		parsed, err := ParsePosition("0.12.3")
		Expect(err).ToNot(HaveOccurred())
		Expect(parsed).To(Equal(p))

		_, err = ParsePosition("0.x")
		Expect(err).To(MatchError(ContainSubstring(`position "0.x"`)))
	})

	It("should reject negative indices", func() {
		_, err := ParsePosition("0.-1")
		Expect(err).To(MatchError(ContainSubstring("negative index -1")))
	})
})

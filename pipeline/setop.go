package pipeline

import (
	"strconv"
	"strings"
)

// SetOperator combines the multiplicities of one statement across the
// branches of a Parallel stage into the number of times it is emitted.
type SetOperator struct {
	token string
	apply func(counts []int) int
}

// Apply returns how many copies of a statement to emit, given its count in
// each branch.
func (o SetOperator) Apply(counts []int) int { return o.apply(counts) }

// String returns the token of the operator.
func (o SetOperator) String() string { return o.token }

var (
	// Union emits each statement once if any branch has it ("u").
	Union = SetOperator{"u", func(counts []int) int {
		for _, c := range counts {
			if c > 0 {
				return 1
			}
		}
		return 0
	}}
	// UnionMultiset emits the maximum count ("U").
	UnionMultiset = SetOperator{"U", func(counts []int) int {
		result := counts[0]
		for _, c := range counts[1:] {
			if c > result {
				result = c
			}
		}
		return result
	}}
	// SumMultiset emits every copy from every branch ("a").
	SumMultiset = SetOperator{"a", func(counts []int) int {
		result := 0
		for _, c := range counts {
			result += c
		}
		return result
	}}
	// Intersection emits a statement once if every branch has it ("i").
	Intersection = SetOperator{"i", func(counts []int) int {
		for _, c := range counts {
			if c == 0 {
				return 0
			}
		}
		return 1
	}}
	// IntersectionMultiset emits the minimum count ("I").
	IntersectionMultiset = SetOperator{"I", func(counts []int) int {
		result := counts[0]
		for _, c := range counts[1:] {
			if c < result {
				result = c
			}
		}
		return result
	}}
	// Difference keeps statements of the first branch absent from the others ("d").
	Difference = SetOperator{"d", func(counts []int) int {
		if counts[0] == 0 {
			return 0
		}
		for _, c := range counts[1:] {
			if c > 0 {
				return 0
			}
		}
		return 1
	}}
	// DifferenceMultiset subtracts the other counts from the first ("D").
	DifferenceMultiset = SetOperator{"D", func(counts []int) int {
		result := counts[0]
		for i := 1; i < len(counts) && result > 0; i++ {
			result -= counts[i]
		}
		if result < 0 {
			return 0
		}
		return result
	}}
	// SymmetricDifference keeps statements missing from at least one branch ("s").
	SymmetricDifference = SetOperator{"s", func(counts []int) int {
		present := 0
		for _, c := range counts {
			if c > 0 {
				present++
			}
		}
		if present < len(counts) {
			return 1
		}
		return 0
	}}
	// SymmetricDifferenceMultiset emits max minus min count ("S").
	SymmetricDifferenceMultiset = SetOperator{"S", func(counts []int) int {
		lo, hi := counts[0], counts[0]
		for _, c := range counts[1:] {
			if c < lo {
				lo = c
			}
			if c > hi {
				hi = c
			}
		}
		return hi - lo
	}}
)

var setOperators = []SetOperator{
	Union, UnionMultiset, SumMultiset, Intersection, IntersectionMultiset,
	Difference, DifferenceMultiset, SymmetricDifference, SymmetricDifferenceMultiset,
}

// AtLeast emits a statement once when its total count is at least n ("n+").
func AtLeast(n int) (SetOperator, error) {
	if n < 1 {
		return SetOperator{}, Configf("set operator", "invalid threshold %d", n)
	}
	return SetOperator{strconv.Itoa(n) + "+", func(counts []int) int {
		total := 0
		for _, c := range counts {
			total += c
		}
		if total >= n {
			return 1
		}
		return 0
	}}, nil
}

// AtMost emits a statement once when its total count is at most n ("n-").
func AtMost(n int) (SetOperator, error) {
	if n < 1 {
		return SetOperator{}, Configf("set operator", "invalid threshold %d", n)
	}
	return SetOperator{strconv.Itoa(n) + "-", func(counts []int) int {
		total := 0
		for _, c := range counts {
			total += c
		}
		if total <= n {
			return 1
		}
		return 0
	}}, nil
}

// ParseSetOperator resolves a token such as "u", "D" or "2+".
func ParseSetOperator(token string) (SetOperator, error) {
	for _, op := range setOperators {
		if op.token == token {
			return op, nil
		}
	}
	if n := len(token); n > 1 && (token[n-1] == '+' || token[n-1] == '-') {
		threshold, err := strconv.Atoi(token[:n-1])
		if err != nil || strings.HasPrefix(token, "+") || strings.HasPrefix(token, "-") {
			return SetOperator{}, Configf("set operator", "invalid token %q", token)
		}
		if token[n-1] == '+' {
			return AtLeast(threshold)
		}
		return AtMost(threshold)
	}
	return SetOperator{}, Configf("set operator", "invalid token %q", token)
}

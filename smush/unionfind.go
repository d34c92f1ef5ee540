package smush

// UnionFind keeps equivalence classes of dictionary codes as cycles: every
// code points to the next member of its class, and a code missing from the
// map is a class of its own. Normalize rewrites each cycle into a star
// pointing at the class representative.
//
// UnionFind is not safe for concurrent use; Find may be called concurrently
// after Normalize.
type UnionFind struct {
	dict *Dictionary
	next CodeMap
}

// NewUnionFind links codes of dict, storing the pointers in next.
func NewUnionFind(dict *Dictionary, next CodeMap) *UnionFind {
	return &UnionFind{dict: dict, next: next}
}

func (u *UnionFind) successor(c Code) Code {
	if n, ok := u.next.Get(c); ok {
		return n
	}
	return c
}

// Link merges the classes of a and b and reports whether they were
// distinct. It walks the cycle of a, so a link costs time linear in the size
// of that class.
func (u *UnionFind) Link(a, b Code) bool {
	if a == b {
		return false
	}
	na := u.successor(a)
	for c := na; c != a; c = u.successor(c) {
		if c == b {
			return false
		}
	}
	nb := u.successor(b)
	u.next.Put(a, nb)
	u.next.Put(b, na)
	return true
}

// Normalize picks the minimum of every class under less and points all
// members at it. It returns the number of linked resources and of classes
// with more than one member. Classes already normalized are skipped, so a
// second call changes nothing.
func (u *UnionFind) Normalize(less func(a, b Code) bool) (resources, clusters int) {
	for i := 1; i <= u.dict.Len(); i++ {
		start := Code(i)
		if _, linked := u.next.Get(start); !linked || u.dict.normalized(start) {
			continue
		}
		min := start
		for c := u.successor(start); c != start; c = u.successor(c) {
			if less(c, min) {
				min = c
			}
		}
		c := start
		for {
			n := u.successor(c)
			u.next.Put(c, min)
			u.dict.markNormalized(c)
			resources++
			c = n
			if c == start {
				break
			}
		}
		clusters++
	}
	return resources, clusters
}

// Find returns the representative of c once Normalize has run. Codes
// outside any class are their own representative.
func (u *UnionFind) Find(c Code) Code {
	return u.successor(c)
}

// members returns the codes of the class of c, starting with c. It follows
// the cycle, so it is only meaningful before Normalize.
func (u *UnionFind) members(c Code) []Code {
	members := []Code{c}
	for n := u.successor(c); n != c; n = u.successor(n) {
		members = append(members, n)
	}
	return members
}

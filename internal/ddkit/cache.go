// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package ddkit

// cache.go generalizes dalzilio/rudd's five purpose-built tables
// (applycache, itecache, quantcache, appexcache, replacecache, each keyed by
// a hand-rolled TRIPLE/PAIR hash into a fixed-size array) into one map keyed
// by an explicit operator tag plus operand handles. A real Go map gives us
// the same O(1) expected lookup without re-deriving prime-sized table
// resizing, at the cost of dalzilio/rudd's cache-ratio tuning; cachesize/
// cacheratio are kept in configs and consulted only as hints for an initial
// map size.

// opKind tags which recursive operation an entry memoizes, playing the role
// of dalzilio/rudd's per-shape cache structs (applycache, itecache, ...).
type opKind int

const (
	opNot opKind = iota
	opApply
	opIte
	opExist
	opAppEx
	opReplace
)

type opKey struct {
	kind opKind
	op   Operator
	a, b, c int
	tag  int // quant/appex variable-set id, or a replacer id
}

type opCache struct {
	m       map[opKey]int
	hit     int
	miss    int
}

type opCacheStats struct {
	Entries int
	Hits    int
	Misses  int
}

func newOpCache(sizeHint int) *opCache {
	if sizeHint <= 0 {
		sizeHint = 1024
	}
	return &opCache{m: make(map[opKey]int, sizeHint)}
}

func (c *opCache) lookup(k opKey) (int, bool) {
	v, ok := c.m[k]
	if ok {
		c.hit++
	} else {
		c.miss++
	}
	return v, ok
}

func (c *opCache) insert(k opKey, result int) {
	c.m[k] = result
}

// invalidate drops every entry whose result or operands name a reclaimed
// handle; called by the pessimistic GC sweep so stale hits can never
// resurrect a dangling reference.
func (c *opCache) invalidate(dead map[int]bool) {
	for k, v := range c.m {
		if dead[v] || dead[k.a] || dead[k.b] || dead[k.c] {
			delete(c.m, k)
		}
	}
}

func (c *opCache) stats() opCacheStats {
	return opCacheStats{Entries: len(c.m), Hits: c.hit, Misses: c.miss}
}

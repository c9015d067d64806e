// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package ddkit

// conjuncts.go generalizes dalzilio/rudd's Set.And/Or/Imp/Equiv variadic
// helpers (set.go) from a fixed global BDD to an arbitrary *Forest, saving
// every caller that folds a handful of edges together (transition's frame
// conjunction, a selector's goal BDD, an axiom's body) a fold loop of its
// own.

// And conjoins a sequence of edges, short-circuiting to True for an empty
// sequence per dalzilio/rudd's convention.
func (f *Forest) And(edges ...Edge) (Edge, error) {
	if len(edges) == 0 {
		return f.True(), nil
	}
	acc := edges[0]
	for _, e := range edges[1:] {
		var err error
		acc, err = f.Apply(OpAnd, acc, e)
		if err != nil {
			return Edge{}, err
		}
	}
	return acc, nil
}

// Or disjoins a sequence of edges, short-circuiting to False for an empty
// sequence.
func (f *Forest) Or(edges ...Edge) (Edge, error) {
	if len(edges) == 0 {
		return f.False(), nil
	}
	acc := edges[0]
	for _, e := range edges[1:] {
		var err error
		acc, err = f.Apply(OpOr, acc, e)
		if err != nil {
			return Edge{}, err
		}
	}
	return acc, nil
}

// Imp returns a implies b.
func (f *Forest) Imp(a, b Edge) (Edge, error) {
	return f.Apply(OpImp, a, b)
}

// Equiv returns the bi-implication between a and b.
func (f *Forest) Equiv(a, b Edge) (Edge, error) {
	return f.Apply(OpBiimp, a, b)
}

package ir

// FindingSet is an insertion-ordered set of entities.
type FindingSet struct {
	order []Entity
	seen  map[Entity]struct{}
}

func NewFindingSet(es ...Entity) *FindingSet {
	fs := &FindingSet{seen: make(map[Entity]struct{}, len(es))}
	fs.Add(es...)
	return fs
}

// Add appends entities not already present and reports how many were new.
func (fs *FindingSet) Add(es ...Entity) int {
	if fs.seen == nil {
		fs.seen = map[Entity]struct{}{}
	}
	n := 0
	for _, e := range es {
		if _, ok := fs.seen[e]; ok {
			continue
		}
		fs.seen[e] = struct{}{}
		fs.order = append(fs.order, e)
		n++
	}
	return n
}

func (fs *FindingSet) Contains(e Entity) bool {
	_, ok := fs.seen[e]
	return ok
}

func (fs *FindingSet) Len() int { return len(fs.order) }

// Entities returns a copy in insertion order; never nil.
func (fs *FindingSet) Entities() []Entity {
	out := make([]Entity, len(fs.order))
	copy(out, fs.order)
	return out
}

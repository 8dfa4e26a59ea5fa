package extract

// Snapshot is the set of semantic identifiers observed per class in one
// read of the sources. Classes keep the order in which they were added and
// identifiers keep source order, duplicates included.
type Snapshot struct {
	classes []string
	ids     map[string][]string
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{ids: make(map[string][]string)}
}

// Add records ids for class. A class added with no ids is still present.
// Adding to an existing class appends.
func (s *Snapshot) Add(class string, ids ...string) {
	if _, ok := s.ids[class]; !ok {
		s.classes = append(s.classes, class)
		s.ids[class] = []string{}
	}
	s.ids[class] = append(s.ids[class], ids...)
}

// Classes returns the classes in insertion order.
func (s *Snapshot) Classes() []string {
	out := make([]string, len(s.classes))
	copy(out, s.classes)
	return out
}

// IDs returns the identifiers observed for class.
func (s *Snapshot) IDs(class string) []string {
	return s.ids[class]
}

// Has reports whether class was observed.
func (s *Snapshot) Has(class string) bool {
	_, ok := s.ids[class]
	return ok
}

// Empty reports whether no class was observed.
func (s *Snapshot) Empty() bool {
	return len(s.classes) == 0
}

// Len returns the total number of identifiers across classes.
func (s *Snapshot) Len() int {
	n := 0
	for _, ids := range s.ids {
		n += len(ids)
	}
	return n
}

package session

// LabelsOf returns the labels of g in pre-order: each node's label, then the
// labels of its children left to right.
func LabelsOf(g GlobalType) []Label {
	var out []Label
	Walk(g, func(_ Path, n GlobalType) bool {
		out = append(out, n.NodeLabel())
		return true
	})
	return out
}

// Occurrence is one labeled node of a tree.
type Occurrence struct {
	Label Label
	Kind  NodeKind
	Path  Path
}

// LabelOccurrences returns every node's label with its kind and path, in the
// same order as LabelsOf.
func LabelOccurrences(g GlobalType) []Occurrence {
	var out []Occurrence
	Walk(g, func(p Path, n GlobalType) bool {
		out = append(out, Occurrence{Label: n.NodeLabel(), Kind: n.Kind(), Path: p})
		return true
	})
	return out
}

// HasUniqueLabels reports whether labels contains no repeats. When it does
// not, the returned label is the first one seen for a second time.
func HasUniqueLabels(labels []Label) (bool, Label) {
	seen := make(map[Label]struct{}, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			return false, l
		}
		seen[l] = struct{}{}
	}
	return true, ""
}

// Duplicate groups every occurrence of a repeated label.
type Duplicate struct {
	Label Label
	Paths []Path
}

// Duplicates returns each repeated label of g with all of its paths. Entries
// are ordered by the position of the second occurrence, matching the label
// HasUniqueLabels reports first.
func Duplicates(g GlobalType) []Duplicate {
	occ := LabelOccurrences(g)
	paths := make(map[Label][]Path, len(occ))
	var order []Label
	for _, o := range occ {
		paths[o.Label] = append(paths[o.Label], o.Path)
		if len(paths[o.Label]) == 2 {
			order = append(order, o.Label)
		}
	}
	out := make([]Duplicate, 0, len(order))
	for _, l := range order {
		out = append(out, Duplicate{Label: l, Paths: paths[l]})
	}
	return out
}

// CheckUniqueLabels returns a DuplicateLabel error for the first repeated
// label of g, or nil.
func CheckUniqueLabels(g GlobalType) error {
	dups := Duplicates(g)
	if len(dups) == 0 {
		return nil
	}
	return DuplicateLabelError(dups[0])
}

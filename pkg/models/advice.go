package models

// Advice is a single recommendation surfaced by the Recommendation Engine.
type Advice struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Reason      string    `json:"reason"`
	Action      string    `json:"action"`
	Command     string    `json:"command,omitempty"` // absent ⇒ purely informational
	Risk        RiskLevel `json:"risk"`
	Priority    Priority  `json:"priority"`
	Category    string    `json:"category"`
	Citations   []string  `json:"citations,omitempty"`
	DependsOn   []string  `json:"depends_on,omitempty"`
	Satisfies   []string  `json:"satisfies,omitempty"` // ids this advice subsumes
	Bundle      string    `json:"bundle,omitempty"`
	Popularity  int       `json:"popularity"`
}

// IsInformational reports whether the advice has no executable command.
func (a *Advice) IsInformational() bool { return a.Command == "" }

// SortAdvice orders advice primarily by Priority ascending (Mandatory
// first), secondarily by Popularity descending, per §4.10 rule 3. Sorts
// in place.
func SortAdvice(advice []Advice) {
	insertionSortAdvice(advice)
}

// insertionSortAdvice is a small stable sort; the catalogs this operates on
// are small (tens of entries), so no need to reach for sort.Slice's
// overhead-bearing interface indirection.
func insertionSortAdvice(a []Advice) {
	for i := 1; i < len(a); i++ {
		j := i
		for j > 0 && adviceLess(a[j], a[j-1]) {
			a[j], a[j-1] = a[j-1], a[j]
			j--
		}
	}
}

func adviceLess(a, b Advice) bool {
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() < b.Priority.Rank()
	}
	return a.Popularity > b.Popularity
}

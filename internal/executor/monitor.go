package executor

import "strings"

// CheckItem is one expected-content marker group: the item is covered when
// any of its markers appears in the draft.
type CheckItem struct {
	Label   string
	Markers []string
}

// Monitor is the graph topology's post-hoc quality check. It holds a
// per-category checklist of content a combined draft is expected to cover;
// uncovered items trigger at most one intervention pass.
type Monitor struct {
	checklists map[string][]CheckItem
}

// NewMonitor creates a monitor with the default checklists.
func NewMonitor() *Monitor {
	return &Monitor{checklists: defaultChecklists()}
}

// NewMonitorWithChecklists creates a monitor with custom checklists,
// keyed by classification category.
func NewMonitorWithChecklists(checklists map[string][]CheckItem) *Monitor {
	return &Monitor{checklists: checklists}
}

// Missing returns the labels of checklist items the draft does not cover
// for the given category. An unknown category has no expectations.
func (m *Monitor) Missing(category, draft string) []string {
	items, ok := m.checklists[category]
	if !ok {
		return nil
	}

	lower := strings.ToLower(draft)
	var missing []string
	for _, item := range items {
		covered := false
		for _, marker := range item.Markers {
			if strings.Contains(lower, marker) {
				covered = true
				break
			}
		}
		if !covered {
			missing = append(missing, item.Label)
		}
	}
	return missing
}

// defaultChecklists encodes what a good combined answer should mention per
// category. Markers are deliberately broad; the monitor exists to catch
// wholesale omissions, not to grade prose.
func defaultChecklists() map[string][]CheckItem {
	return map[string][]CheckItem{
		"hybrid": {
			{
				Label:   "concrete next steps",
				Markers: []string{"next step", "try", "recommend", "suggest", "start with"},
			},
			{
				Label:   "code-level feedback",
				Markers: []string{"code", "function", "bug", "fix", "snippet"},
			},
		},
		"reasoning": {
			{
				Label:   "prioritized recommendations",
				Markers: []string{"recommend", "prioriti", "first", "next step", "suggest"},
			},
		},
		"code": {
			{
				Label:   "a suggested fix",
				Markers: []string{"fix", "change", "replace", "instead", "should be"},
			},
		},
	}
}

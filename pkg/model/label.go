package model

import (
	"cmp"
	"slices"
	"strings"
)

// Label is a single descriptive attribute of a channel, e.g. device=psu1.
type Label struct {
	Name  string
	Value string
}

// Labels identify a channel together with its name. Their rendered form
// is independent of order.
type Labels []Label

// LabelsFromMap builds sorted Labels from a config-style map.
func LabelsFromMap(m map[string]string) Labels {
	l := make(Labels, 0, len(m))
	for k, v := range m {
		l = append(l, Label{Name: k, Value: v})
	}
	slices.SortFunc(l, compareLabels)
	return l
}

func compareLabels(a, b Label) int {
	return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Value, b.Value))
}

func (l Labels) Sorted() Labels {
	sorted := slices.Clone(l)
	slices.SortFunc(sorted, compareLabels)
	return sorted
}

func (l Labels) Get(name string) (string, bool) {
	for _, label := range l {
		if label.Name == name {
			return label.Value, true
		}
	}
	return "", false
}

// returns "device=psu1,quantity=voltage"
func (l Labels) String() string {
	parts := make([]string, 0, len(l))
	for _, label := range l.Sorted() {
		parts = append(parts, label.Name+"="+label.Value)
	}
	return strings.Join(parts, ",")
}

package detection

import (
	"fmt"
	"strings"
)

// Label is the resolved class tag of a detection.
type Label uint8

// Known labels. LabelOther covers every class the analytics do not act on.
const (
	LabelOther Label = iota
	LabelTrain
	LabelVehicle
	LabelCar
	LabelTruck
	LabelBus
	LabelMotorcycle
	LabelBicycle
	LabelPerson
	LabelRoadSign

	labelCount
)

var labelNames = [labelCount]string{
	LabelOther:      "other",
	LabelTrain:      "train",
	LabelVehicle:    "vehicle",
	LabelCar:        "car",
	LabelTruck:      "truck",
	LabelBus:        "bus",
	LabelMotorcycle: "motorcycle",
	LabelBicycle:    "bicycle",
	LabelPerson:     "person",
	LabelRoadSign:   "road_sign",
}

var labelsByName = func() map[string]Label {
	m := make(map[string]Label, labelCount)
	for i, name := range labelNames {
		m[name] = Label(i)
	}
	return m
}()

// String returns the canonical lower-case name.
func (l Label) String() string {
	if l >= labelCount {
		return labelNames[LabelOther]
	}
	return labelNames[l]
}

// ParseLabel resolves a class label from the perception pipeline. Matching
// ignores case and treats spaces and hyphens as underscores. Unknown names
// resolve to LabelOther.
func ParseLabel(s string) Label {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if l, ok := labelsByName[key]; ok {
		return l
	}
	return LabelOther
}

// classIDLabels maps the detector's numeric class ids to labels.
var classIDLabels = map[int]Label{
	0: LabelVehicle,
	1: LabelPerson,
	2: LabelBicycle,
	3: LabelRoadSign,
}

// LabelForClassID returns the label for a numeric class id, or the
// "class_<id>" text with LabelOther for unknown ids.
func LabelForClassID(id int) (Label, string) {
	if l, ok := classIDLabels[id]; ok {
		return l, l.String()
	}
	return LabelOther, fmt.Sprintf("class_%d", id)
}

// LabelSet is a set of labels stored as a bitmask.
type LabelSet uint32

// NewLabelSet returns a set holding labels.
func NewLabelSet(labels ...Label) LabelSet {
	var s LabelSet
	for _, l := range labels {
		s |= 1 << l
	}
	return s
}

// ParseLabelSet builds a set from configured names. Unknown names are an
// error so typos in configuration surface at startup.
func ParseLabelSet(names []string) (LabelSet, error) {
	var s LabelSet
	for _, name := range names {
		l := ParseLabel(name)
		if l == LabelOther && !strings.EqualFold(strings.TrimSpace(name), labelNames[LabelOther]) {
			return 0, fmt.Errorf("unknown class label %q", name)
		}
		s |= 1 << l
	}
	return s, nil
}

// Contains reports whether l is in the set.
func (s LabelSet) Contains(l Label) bool {
	return l < labelCount && s&(1<<l) != 0
}

// Labels returns the members in declaration order.
func (s LabelSet) Labels() []Label {
	var out []Label
	for l := range labelCount {
		if s.Contains(l) {
			out = append(out, l)
		}
	}
	return out
}

// Strings returns the member names in declaration order.
func (s LabelSet) Strings() []string {
	labels := s.Labels()
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.String()
	}
	return out
}

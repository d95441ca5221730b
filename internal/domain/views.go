package domain

import (
	"cmp"
	"slices"
)

// PatientView summarizes one patient.
type PatientView struct {
	ID            string
	Name          string
	Modalities    []string
	StudyCount    int
	SeriesCount   int
	InstanceCount int
}

// StudyView summarizes one study.
type StudyView struct {
	PatientID     string
	UID           string
	Description   string
	Date          string
	Modalities    []string
	SeriesCount   int
	InstanceCount int
}

// InstanceRef is one file in display order.
type InstanceRef struct {
	Path      string
	Method    OrderingMethod
	Confident bool
	Frames    []int
}

// SeriesView is a read-only snapshot of a series node.
type SeriesView struct {
	ID            string
	Key           GroupKey
	Description   string
	Modality      string
	SeriesNumber  *int
	InstanceCount int
	Duplicates    int
	Method        OrderingMethod
	Confident     bool
	Fallback      []string
	SliceSpacing  float64
	Split         *SplitInfo

	node *SeriesNode
}

func newSeriesView(n *SeriesNode) SeriesView {
	return SeriesView{
		ID:            n.Key.ID(),
		Key:           n.Key,
		Description:   n.Description,
		Modality:      n.Modality,
		SeriesNumber:  n.SeriesNumber,
		InstanceCount: n.InstanceCount,
		Duplicates:    len(n.Group.Duplicates),
		Method:        n.Ordering.Method,
		Confident:     n.Ordering.Confident,
		Fallback:      slices.Clone(n.Ordering.Fallback),
		SliceSpacing:  n.Ordering.SliceSpacing,
		Split:         n.Group.Split,
		node:          n,
	}
}

// OrderedInstances returns the series' files in their final order.
func (v SeriesView) OrderedInstances() []InstanceRef {
	if v.node == nil {
		return nil
	}
	out := make([]InstanceRef, len(v.node.Ordering.Instances))
	for i, inst := range v.node.Ordering.Instances {
		out[i] = InstanceRef{
			Path:      inst.Header.Path,
			Method:    v.Method,
			Confident: v.Confident,
			Frames:    slices.Clone(inst.Frames),
		}
	}
	return out
}

// Ordering returns the full ordering result behind the view.
func (v SeriesView) Ordering() *OrderingResult {
	if v.node == nil {
		return nil
	}
	return v.node.Ordering
}

// Series returns every series ordered by key.
func (r *Registry) Series() []SeriesView {
	return views(r.sortedNodes(nil))
}

// SeriesIn returns the series of one study ordered by series number.
func (r *Registry) SeriesIn(patientID, studyUID string) []SeriesView {
	nodes := r.sortedNodes(func(n *SeriesNode) bool {
		return n.Key.PatientID == patientID && n.Key.StudyUID == studyUID
	})
	slices.SortStableFunc(nodes, func(a, b *SeriesNode) int {
		return compareSeriesNumber(a.SeriesNumber, b.SeriesNumber)
	})
	return views(nodes)
}

// SeriesByID looks a series up by its short identifier.
func (r *Registry) SeriesByID(id string) (SeriesView, bool) {
	for _, n := range r.sortedNodes(nil) {
		if n.Key.ID() == id {
			return newSeriesView(n), true
		}
	}
	return SeriesView{}, false
}

// LargestSeries returns the series with the most instances. Ties go to the
// smallest key.
func (r *Registry) LargestSeries() (SeriesView, bool) {
	var best *SeriesNode
	for _, n := range r.sortedNodes(nil) {
		if best == nil || n.InstanceCount > best.InstanceCount {
			best = n
		}
	}
	if best == nil {
		return SeriesView{}, false
	}
	return newSeriesView(best), true
}

// SplitSeries returns the series whose nominal identity was split by the
// discriminators.
func (r *Registry) SplitSeries() []SeriesView {
	return views(r.sortedNodes(func(n *SeriesNode) bool { return n.Group.Split != nil }))
}

// Patients returns every patient ordered by ID.
func (r *Registry) Patients() []PatientView {
	byID := make(map[string]*PatientView)
	names := make(map[string][]string)
	studies := make(map[string]map[string]bool)
	modalities := make(map[string]map[string]bool)

	for _, n := range r.sortedNodes(nil) {
		id := n.Key.PatientID
		p, ok := byID[id]
		if !ok {
			p = &PatientView{ID: id}
			byID[id] = p
			studies[id] = make(map[string]bool)
			modalities[id] = make(map[string]bool)
		}
		p.SeriesCount++
		p.InstanceCount += n.InstanceCount
		studies[id][n.Key.StudyUID] = true
		if n.Modality != "" {
			modalities[id][n.Modality] = true
		}
		for _, h := range n.Group.Members {
			names[id] = append(names[id], h.PatientName)
		}
	}

	out := make([]PatientView, 0, len(byID))
	for id, p := range byID {
		p.Name = Majority(names[id])
		p.StudyCount = len(studies[id])
		p.Modalities = sortedSet(modalities[id])
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b PatientView) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Studies returns the studies of one patient ordered by date then UID.
func (r *Registry) Studies(patientID string) []StudyView {
	byUID := make(map[string]*StudyView)
	descriptions := make(map[string][]string)
	dates := make(map[string][]string)
	modalities := make(map[string]map[string]bool)

	nodes := r.sortedNodes(func(n *SeriesNode) bool { return n.Key.PatientID == patientID })
	for _, n := range nodes {
		uid := n.Key.StudyUID
		s, ok := byUID[uid]
		if !ok {
			s = &StudyView{PatientID: patientID, UID: uid}
			byUID[uid] = s
			modalities[uid] = make(map[string]bool)
		}
		s.SeriesCount++
		s.InstanceCount += n.InstanceCount
		if n.Modality != "" {
			modalities[uid][n.Modality] = true
		}
		for _, h := range n.Group.Members {
			descriptions[uid] = append(descriptions[uid], h.StudyDescription)
			dates[uid] = append(dates[uid], h.StudyDate)
		}
	}

	out := make([]StudyView, 0, len(byUID))
	for uid, s := range byUID {
		s.Description = Majority(descriptions[uid])
		s.Date = Majority(dates[uid])
		s.Modalities = sortedSet(modalities[uid])
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b StudyView) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.UID, b.UID))
	})
	return out
}

func views(nodes []*SeriesNode) []SeriesView {
	out := make([]SeriesView, len(nodes))
	for i, n := range nodes {
		out[i] = newSeriesView(n)
	}
	return out
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

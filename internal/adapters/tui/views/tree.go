package views

import (
	"fmt"
	"strings"

	"github.com/CodeChoreography/dicomity/internal/domain"
)

// NodeKind is the level of a browser tree node
type NodeKind int

const (
	KindPatient NodeKind = iota
	KindStudy
	KindSeries
)

// TreeNode is one row of the patient / study / series browser
type TreeNode struct {
	Kind       NodeKind
	Label      string
	Depth      int
	IsExpanded bool
	Parent     *TreeNode
	Children   []*TreeNode

	Patient domain.PatientView
	Study   domain.StudyView
	Series  domain.SeriesView
}

// BuildTree converts a registry into collapsed patient nodes
func BuildTree(reg *domain.Registry) []*TreeNode {
	if reg == nil {
		return nil
	}
	var roots []*TreeNode
	for _, p := range reg.Patients() {
		pn := &TreeNode{Kind: KindPatient, Patient: p, Label: patientLabel(p)}
		for _, st := range reg.Studies(p.ID) {
			sn := &TreeNode{Kind: KindStudy, Study: st, Label: studyLabel(st), Depth: 1, Parent: pn}
			for _, se := range reg.SeriesIn(p.ID, st.UID) {
				sn.Children = append(sn.Children, &TreeNode{
					Kind:   KindSeries,
					Series: se,
					Label:  seriesLabel(se),
					Depth:  2,
					Parent: sn,
				})
			}
			pn.Children = append(pn.Children, sn)
		}
		roots = append(roots, pn)
	}
	return roots
}

// Flatten lists the visible nodes in display order
func Flatten(roots []*TreeNode) []*TreeNode {
	var out []*TreeNode
	var walk func(nodes []*TreeNode)
	walk = func(nodes []*TreeNode) {
		for _, n := range nodes {
			out = append(out, n)
			if n.IsExpanded {
				walk(n.Children)
			}
		}
	}
	walk(roots)
	return out
}

func walkTree(nodes []*TreeNode, fn func(*TreeNode)) {
	for _, n := range nodes {
		fn(n)
		walkTree(n.Children, fn)
	}
}

// nodeID identifies a node across rebuilds so expansion survives a refresh
func (n *TreeNode) nodeID() string {
	switch n.Kind {
	case KindPatient:
		return "p:" + n.Patient.ID
	case KindStudy:
		return "s:" + n.Study.PatientID + "/" + n.Study.UID
	default:
		return "x:" + n.Series.ID
	}
}

func patientLabel(p domain.PatientView) string {
	name := p.Name
	if name == "" {
		name = "(no name)"
	}
	id := p.ID
	if id == "" {
		id = "(no id)"
	}
	return fmt.Sprintf("%s  %s  [%s]  %d studies", id, name, strings.Join(p.Modalities, ","), p.StudyCount)
}

func studyLabel(s domain.StudyView) string {
	desc := s.Description
	if desc == "" {
		desc = s.UID
	}
	date := s.Date
	if date == "" {
		date = "--------"
	}
	return fmt.Sprintf("%s  %s  %d series", date, desc, s.SeriesCount)
}

func seriesLabel(s domain.SeriesView) string {
	desc := s.Description
	if desc == "" {
		desc = s.Key.SeriesUID
	}
	label := fmt.Sprintf("#%s %s  %s  %d images", SeriesNumber(s.SeriesNumber), s.Modality, desc, s.InstanceCount)
	if s.Split != nil {
		label += fmt.Sprintf("  (part of %d)", s.Split.Siblings)
	}
	return label
}

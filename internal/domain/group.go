package domain

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// PrimaryKey is the nominal series identity taken straight from the tags.
type PrimaryKey struct {
	PatientID string
	StudyUID  string
	SeriesUID string
}

// GroupKey is the nominal identity refined by the discriminator signature.
type GroupKey struct {
	PatientID string
	StudyUID  string
	SeriesUID string
	Signature string
}

// Primary drops the signature.
func (k GroupKey) Primary() PrimaryKey {
	return PrimaryKey{PatientID: k.PatientID, StudyUID: k.StudyUID, SeriesUID: k.SeriesUID}
}

// ID returns a short stable identifier for the key.
func (k GroupKey) ID() string {
	h := sha256.Sum256([]byte(strings.Join([]string{k.PatientID, k.StudyUID, k.SeriesUID, k.Signature}, "\x00")))
	return hex.EncodeToString(h[:8])
}

// Compare orders keys field by field.
func (k GroupKey) Compare(o GroupKey) int {
	return cmp.Or(
		strings.Compare(k.PatientID, o.PatientID),
		strings.Compare(k.StudyUID, o.StudyUID),
		strings.Compare(k.SeriesUID, o.SeriesUID),
		strings.Compare(k.Signature, o.Signature),
	)
}

// SplitInfo explains why a nominal series produced more than one group.
type SplitInfo struct {
	// Siblings is the number of groups sharing the primary key, this one included.
	Siblings int
	// Attributes names the discriminators whose values differ among siblings.
	Attributes []Attribute
}

// Group is a set of headers sharing one GroupKey.
type Group struct {
	Key        GroupKey
	Members    []*DicomHeader
	Duplicates []*DicomHeader
	// FrameOrder holds, for multi-frame members with per-frame positions, the
	// frame indices in spatial order. Absent means native frame order.
	FrameOrder map[string][]int
	Split      *SplitInfo
}

// GroupingOptions tunes the grouping engine.
type GroupingOptions struct {
	Discriminators       []Discriminator
	OrientationTolerance float64
}

// DefaultGroupingOptions returns the stock discriminator table.
func DefaultGroupingOptions() GroupingOptions {
	return GroupingOptions{
		Discriminators:       slices.Clone(DefaultDiscriminators),
		OrientationTolerance: DefaultOrientationTolerance,
	}
}

// GroupingResult is the output of one grouping pass.
type GroupingResult struct {
	Groups     map[GroupKey]*Group
	Keys       []GroupKey
	Duplicates []*DuplicateInstanceError
}

// GroupHeaders partitions headers into groups. Input order decides which file
// survives when SOP instance UIDs collide, so callers pass headers in a stable
// order. A path seen twice is only considered once.
func GroupHeaders(headers []*DicomHeader, opts GroupingOptions) *GroupingResult {
	table := opts.Discriminators
	if table == nil {
		table = DefaultDiscriminators
	}

	res := &GroupingResult{Groups: make(map[GroupKey]*Group)}
	seenPaths := make(map[string]bool, len(headers))
	sops := make(map[GroupKey]map[string]*DicomHeader)
	parts := make(map[GroupKey][]string)
	siblings := make(map[PrimaryKey][]GroupKey)

	var unique []*DicomHeader
	byPrimary := make(map[PrimaryKey][]*DicomHeader)
	for _, h := range headers {
		if h == nil || seenPaths[h.Path] {
			continue
		}
		seenPaths[h.Path] = true
		unique = append(unique, h)
		byPrimary[h.Primary()] = append(byPrimary[h.Primary()], h)
	}
	clusters := make(map[PrimaryKey]toleranceClusters, len(byPrimary))
	for primary, hs := range byPrimary {
		clusters[primary] = clusterHeaders(hs, table)
	}

	for _, h := range unique {
		p := signatureParts(h, table, clusters[h.Primary()])
		key := GroupKey{
			PatientID: h.PatientID,
			StudyUID:  h.StudyUID,
			SeriesUID: h.SeriesUID,
			Signature: strings.Join(p, "|"),
		}

		g, ok := res.Groups[key]
		if !ok {
			g = &Group{Key: key}
			res.Groups[key] = g
			sops[key] = make(map[string]*DicomHeader)
			parts[key] = p
			siblings[key.Primary()] = append(siblings[key.Primary()], key)
		}

		if h.SOPInstanceUID != "" {
			if kept, dup := sops[key][h.SOPInstanceUID]; dup {
				g.Duplicates = append(g.Duplicates, h)
				res.Duplicates = append(res.Duplicates, &DuplicateInstanceError{
					Path:           h.Path,
					KeptPath:       kept.Path,
					SOPInstanceUID: h.SOPInstanceUID,
					Key:            key,
				})
				continue
			}
			sops[key][h.SOPInstanceUID] = h
		}

		g.Members = append(g.Members, h)
		if order := frameOrder(h, opts.OrientationTolerance); order != nil {
			if g.FrameOrder == nil {
				g.FrameOrder = make(map[string][]int)
			}
			g.FrameOrder[h.Path] = order
		}
	}

	for _, keys := range siblings {
		if len(keys) < 2 {
			continue
		}
		split := &SplitInfo{Siblings: len(keys), Attributes: differingAttributes(keys, parts, table)}
		for _, k := range keys {
			res.Groups[k].Split = split
		}
	}

	res.Keys = make([]GroupKey, 0, len(res.Groups))
	for k := range res.Groups {
		res.Keys = append(res.Keys, k)
	}
	slices.SortFunc(res.Keys, GroupKey.Compare)

	return res
}

func differingAttributes(keys []GroupKey, parts map[GroupKey][]string, table []Discriminator) []Attribute {
	var out []Attribute
	for i, d := range table {
		first := parts[keys[0]][i]
		for _, k := range keys[1:] {
			if parts[k][i] != first {
				out = append(out, d.Attribute)
				break
			}
		}
	}
	return out
}

// frameOrder sorts the frames of a multi-frame file along its slice normal.
// It returns nil when the file has no usable per-frame geometry.
func frameOrder(h *DicomHeader, tol float64) []int {
	if !h.IsMultiFrame() || len(h.FramePositions) != h.NumberOfFrames || h.ImageOrientation == nil {
		return nil
	}
	if tol <= 0 {
		tol = DefaultOrientationTolerance
	}
	if !h.ImageOrientation.Usable(tol) {
		return nil
	}
	normal := h.ImageOrientation.Normal()
	coords := make([]float64, len(h.FramePositions))
	order := make([]int, len(h.FramePositions))
	for i, p := range h.FramePositions {
		coords[i] = r3.Dot(p, normal)
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(coords[a], coords[b])
	})
	return order
}

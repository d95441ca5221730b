package domain

import (
	"cmp"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// OrderingMethod is the strategy that produced an ordering.
type OrderingMethod int

const (
	MethodSpatial OrderingMethod = iota
	MethodInstanceNumber
	MethodAcquisitionNumber
	MethodFilename
)

func (m OrderingMethod) String() string {
	switch m {
	case MethodSpatial:
		return "spatial"
	case MethodInstanceNumber:
		return "instance-number"
	case MethodAcquisitionNumber:
		return "acquisition-number"
	default:
		return "filename"
	}
}

const (
	// DefaultCVThreshold is the largest coefficient of variation of slice
	// spacing still considered uniform.
	DefaultCVThreshold = 0.1
	// DefaultOrientationTolerance bounds the deviation from unit length and
	// orthogonality accepted for orientation vectors.
	DefaultOrientationTolerance = 1e-2
	// degenerateEpsilon is the coordinate range (mm) below which all slices are
	// taken to sit at the same place.
	degenerateEpsilon = 1e-6
)

// OrderingOptions tunes the ordering engine.
type OrderingOptions struct {
	CVThreshold          float64
	OrientationTolerance float64
}

// DefaultOrderingOptions returns the stock thresholds.
func DefaultOrderingOptions() OrderingOptions {
	return OrderingOptions{
		CVThreshold:          DefaultCVThreshold,
		OrientationTolerance: DefaultOrientationTolerance,
	}
}

// OrderedInstance is one member of a group in its final position.
type OrderedInstance struct {
	Header *DicomHeader
	// Coordinate is the position along the slice normal; spatial orderings only.
	Coordinate float64
	// Frames is the frame order of a multi-frame file, nil for native order.
	Frames []int
}

// OrderingResult is a group's instances in order plus how they got there.
type OrderingResult struct {
	Instances []OrderedInstance
	Method    OrderingMethod
	// Confident is set only when spatial ordering found uniform spacing.
	Confident bool
	// Fallback explains why stronger strategies were skipped.
	Fallback []string

	SliceSpacing float64
	SpacingCV    float64
	Origin       *Vec3
	Normal       *Vec3
}

// Paths returns the ordered file paths.
func (r *OrderingResult) Paths() []string {
	out := make([]string, len(r.Instances))
	for i, inst := range r.Instances {
		out[i] = inst.Header.Path
	}
	return out
}

// attempt is the outcome of trying one strategy.
type attempt struct {
	method    OrderingMethod
	usable    bool
	reason    string
	compare   func(a, b int) int
	confident bool
	finish    func(order []int, res *OrderingResult)
}

// OrderGroup computes the strict total order of a group's members.
func OrderGroup(g *Group, opts OrderingOptions) (*OrderingResult, error) {
	if g == nil || len(g.Members) == 0 {
		return nil, ErrEmptyGroup
	}
	// Zero-valued options take the defaults.
	if opts.CVThreshold <= 0 {
		opts.CVThreshold = DefaultCVThreshold
	}
	if opts.OrientationTolerance <= 0 {
		opts.OrientationTolerance = DefaultOrientationTolerance
	}

	members := g.Members
	res := &OrderingResult{}

	strategies := []func([]*DicomHeader, OrderingOptions) attempt{
		spatialAttempt,
		instanceNumberAttempt,
		acquisitionNumberAttempt,
		filenameAttempt,
	}

	var chosen attempt
	for _, try := range strategies {
		a := try(members, opts)
		if a.usable {
			chosen = a
			break
		}
		res.Fallback = append(res.Fallback, a.method.String()+": "+a.reason)
	}

	order := make([]int, len(members))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return cmp.Or(
			chosen.compare(a, b),
			strings.Compare(members[a].SOPInstanceUID, members[b].SOPInstanceUID),
			strings.Compare(members[a].Path, members[b].Path),
		)
	})

	res.Method = chosen.method
	res.Confident = chosen.confident
	res.Instances = make([]OrderedInstance, len(order))
	for i, idx := range order {
		h := members[idx]
		res.Instances[i] = OrderedInstance{Header: h, Frames: g.FrameOrder[h.Path]}
	}
	if chosen.finish != nil {
		chosen.finish(order, res)
	}

	return res, nil
}

func spatialAttempt(members []*DicomHeader, opts OrderingOptions) attempt {
	a := attempt{method: MethodSpatial}
	for _, h := range members {
		if !h.HasGeometry() {
			a.reason = fmt.Sprintf("%s lacks image position or orientation", filepath.Base(h.Path))
			return a
		}
	}
	ref := members[0].ImageOrientation
	if !ref.Usable(opts.OrientationTolerance) {
		a.reason = "image orientation is not an orthonormal pair"
		return a
	}

	normal := ref.Normal()
	coords := make([]float64, len(members))
	for i, h := range members {
		coords[i] = r3.Dot(*h.ImagePosition, normal)
	}
	if len(coords) > 1 && floats.Max(coords)-floats.Min(coords) < degenerateEpsilon {
		a.reason = "all slices project to the same coordinate"
		return a
	}

	a.usable = true
	a.compare = func(x, y int) int { return cmp.Compare(coords[x], coords[y]) }

	sorted := slices.Clone(coords)
	slices.Sort(sorted)
	spacing, cv := spacingStats(sorted)
	a.confident = cv <= opts.CVThreshold

	a.finish = func(order []int, res *OrderingResult) {
		for i, idx := range order {
			res.Instances[i].Coordinate = coords[idx]
		}
		origin := *res.Instances[0].Header.ImagePosition
		n := normal
		res.Origin = &origin
		res.Normal = &n
		res.SliceSpacing = spacing
		res.SpacingCV = cv
	}
	return a
}

// spacingStats returns the mean gap between sorted coordinates and the
// coefficient of variation of the gaps.
func spacingStats(sorted []float64) (mean, cv float64) {
	if len(sorted) < 2 {
		return 0, 0
	}
	diffs := make([]float64, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		diffs[i-1] = sorted[i] - sorted[i-1]
	}
	if len(diffs) == 1 {
		return diffs[0], 0
	}
	mean, std := stat.MeanStdDev(diffs, nil)
	if mean == 0 {
		return 0, math.Inf(1)
	}
	return mean, std / math.Abs(mean)
}

func instanceNumberAttempt(members []*DicomHeader, _ OrderingOptions) attempt {
	return numberAttempt(MethodInstanceNumber, "instance", members, func(h *DicomHeader) *int { return h.InstanceNumber })
}

func acquisitionNumberAttempt(members []*DicomHeader, _ OrderingOptions) attempt {
	return numberAttempt(MethodAcquisitionNumber, "acquisition", members, func(h *DicomHeader) *int { return h.AcquisitionNumber })
}

func numberAttempt(method OrderingMethod, name string, members []*DicomHeader, get func(*DicomHeader) *int) attempt {
	a := attempt{method: method}
	values := make([]int, len(members))
	seen := make(map[int]bool, len(members))
	for i, h := range members {
		n := get(h)
		if n == nil {
			a.reason = fmt.Sprintf("%s lacks an %s number", filepath.Base(h.Path), name)
			return a
		}
		if seen[*n] {
			a.reason = fmt.Sprintf("%s number %d is not unique", name, *n)
			return a
		}
		seen[*n] = true
		values[i] = *n
	}
	a.usable = true
	a.compare = func(x, y int) int { return cmp.Compare(values[x], values[y]) }
	return a
}

func filenameAttempt(members []*DicomHeader, _ OrderingOptions) attempt {
	return attempt{
		method: MethodFilename,
		usable: true,
		compare: func(x, y int) int {
			return cmp.Or(
				CompareNatural(filepath.Base(members[x].Path), filepath.Base(members[y].Path)),
				CompareNatural(members[x].Path, members[y].Path),
			)
		},
	}
}

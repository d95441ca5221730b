package domain

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Attribute names a header attribute that can split a nominal series.
type Attribute string

const (
	AttrRows             Attribute = "rows"
	AttrColumns          Attribute = "columns"
	AttrPixelSpacing     Attribute = "pixel_spacing"
	AttrOrientation      Attribute = "image_orientation"
	AttrModality         Attribute = "modality"
	AttrEchoNumber       Attribute = "echo_number"
	AttrTemporalPosition Attribute = "temporal_position"
	AttrSliceThickness   Attribute = "slice_thickness"
	AttrImageType        Attribute = "image_type"
)

// DefaultTolerance is the gap allowed when comparing spacing and orientation.
const DefaultTolerance = 1e-4

// Discriminator is one row of the grouping table. Within a nominal series,
// numeric values no further than Tolerance from a neighbouring value compare
// equal; a zero tolerance means exact comparison.
type Discriminator struct {
	Attribute Attribute
	Tolerance float64
}

// DefaultDiscriminators is the table used when none is configured.
var DefaultDiscriminators = []Discriminator{
	{Attribute: AttrRows},
	{Attribute: AttrColumns},
	{Attribute: AttrPixelSpacing, Tolerance: DefaultTolerance},
	{Attribute: AttrOrientation, Tolerance: DefaultTolerance},
	{Attribute: AttrModality},
	{Attribute: AttrEchoNumber},
	{Attribute: AttrTemporalPosition},
}

// attributeValue is what an accessor reads from a header: either numbers or
// text. ok is false when the attribute is absent.
type attributeValue struct {
	numbers []float64
	text    string
	ok      bool
}

var attributeAccessors = map[Attribute]func(*DicomHeader) attributeValue{
	AttrRows: func(h *DicomHeader) attributeValue {
		return attributeValue{numbers: []float64{float64(h.Rows)}, ok: h.Rows > 0}
	},
	AttrColumns: func(h *DicomHeader) attributeValue {
		return attributeValue{numbers: []float64{float64(h.Columns)}, ok: h.Columns > 0}
	},
	AttrPixelSpacing: func(h *DicomHeader) attributeValue {
		if h.PixelSpacing == nil {
			return attributeValue{}
		}
		return attributeValue{numbers: h.PixelSpacing[:], ok: true}
	},
	AttrOrientation: func(h *DicomHeader) attributeValue {
		if h.ImageOrientation == nil {
			return attributeValue{}
		}
		o := h.ImageOrientation
		return attributeValue{
			numbers: []float64{o.Row.X, o.Row.Y, o.Row.Z, o.Column.X, o.Column.Y, o.Column.Z},
			ok:      true,
		}
	},
	AttrModality: func(h *DicomHeader) attributeValue {
		return attributeValue{text: h.Modality, ok: h.Modality != ""}
	},
	AttrEchoNumber: func(h *DicomHeader) attributeValue {
		return optionalInt(h.EchoNumber)
	},
	AttrTemporalPosition: func(h *DicomHeader) attributeValue {
		return optionalInt(h.TemporalPosition)
	},
	AttrSliceThickness: func(h *DicomHeader) attributeValue {
		if h.SliceThickness == nil {
			return attributeValue{}
		}
		return attributeValue{numbers: []float64{*h.SliceThickness}, ok: true}
	},
	AttrImageType: func(h *DicomHeader) attributeValue {
		return attributeValue{text: h.ImageType, ok: h.ImageType != ""}
	},
}

func optionalInt(n *int) attributeValue {
	if n == nil {
		return attributeValue{}
	}
	return attributeValue{numbers: []float64{float64(*n)}, ok: true}
}

// KnownAttributes lists every attribute a discriminator table may name.
func KnownAttributes() []Attribute {
	return []Attribute{
		AttrRows, AttrColumns, AttrPixelSpacing, AttrOrientation, AttrModality,
		AttrEchoNumber, AttrTemporalPosition, AttrSliceThickness, AttrImageType,
	}
}

// ValidateDiscriminators rejects unknown attributes, repeats and negative
// tolerances.
func ValidateDiscriminators(table []Discriminator) error {
	seen := make(map[Attribute]bool, len(table))
	for _, d := range table {
		if _, ok := attributeAccessors[d.Attribute]; !ok {
			return fmt.Errorf("unknown discriminator attribute %q (known: %v)", d.Attribute, KnownAttributes())
		}
		if seen[d.Attribute] {
			return fmt.Errorf("discriminator attribute %q listed twice", d.Attribute)
		}
		if d.Tolerance < 0 || math.IsNaN(d.Tolerance) {
			return fmt.Errorf("discriminator %q: tolerance must be >= 0", d.Attribute)
		}
		seen[d.Attribute] = true
	}
	return nil
}

// clusterSlot addresses one component of one table row.
type clusterSlot struct {
	row, component int
}

// toleranceClusters maps every numeric value seen in headers to the smallest
// value of its cluster. Sorted values closer than the row tolerance to their
// neighbour share a cluster, so the result does not depend on input order.
type toleranceClusters map[clusterSlot]map[float64]float64

func clusterHeaders(headers []*DicomHeader, table []Discriminator) toleranceClusters {
	out := make(toleranceClusters)
	for i, d := range table {
		accessor, ok := attributeAccessors[d.Attribute]
		if !ok || d.Tolerance <= 0 {
			continue
		}
		values := make(map[int][]float64)
		for _, h := range headers {
			v := accessor(h)
			if !v.ok {
				continue
			}
			for j, n := range v.numbers {
				values[j] = append(values[j], n)
			}
		}
		for j, vs := range values {
			out[clusterSlot{row: i, component: j}] = clusterValues(vs, d.Tolerance)
		}
	}
	return out
}

func clusterValues(values []float64, tolerance float64) map[float64]float64 {
	slices.Sort(values)
	values = slices.Compact(values)
	out := make(map[float64]float64, len(values))
	rep, prev := values[0], values[0]
	for _, v := range values {
		if v-prev > tolerance {
			rep = v
		}
		out[v] = rep
		prev = v
	}
	return out
}

func (c toleranceClusters) canonical(row, component int, v float64) float64 {
	if rep, ok := c[clusterSlot{row: row, component: component}][v]; ok {
		return rep
	}
	return v
}

// signatureParts renders one "name=value" part per table row.
func signatureParts(h *DicomHeader, table []Discriminator, clusters toleranceClusters) []string {
	parts := make([]string, len(table))
	for i, d := range table {
		accessor, ok := attributeAccessors[d.Attribute]
		if !ok {
			parts[i] = string(d.Attribute) + "=?"
			continue
		}
		parts[i] = string(d.Attribute) + "=" + formatAttribute(accessor(h), i, clusters)
	}
	return parts
}

// Signature renders the discriminator signature of a lone header.
func Signature(h *DicomHeader, table []Discriminator) string {
	return strings.Join(signatureParts(h, table, clusterHeaders([]*DicomHeader{h}, table)), "|")
}

func formatAttribute(v attributeValue, row int, clusters toleranceClusters) string {
	if !v.ok {
		return "-"
	}
	if v.numbers == nil {
		return v.text
	}
	parts := make([]string, len(v.numbers))
	for i, n := range v.numbers {
		n = clusters.canonical(row, i, n)
		if n == 0 {
			// avoid a distinct "-0"
			n = 0
		}
		parts[i] = strconv.FormatFloat(n, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

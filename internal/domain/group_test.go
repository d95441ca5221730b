package domain

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupHeaders_SplitsOnPixelSpacing(t *testing.T) {
	var headers []*DicomHeader
	for i, z := range []float64{0, 1, 2} {
		headers = append(headers, slice(string(rune('a'+i))+".dcm", z))
	}
	for i, z := range []float64{0, 1, 2} {
		h := slice(string(rune('x'+i))+".dcm", z)
		h.PixelSpacing = &[2]float64{2.0, 2.0}
		headers = append(headers, h)
	}

	res := GroupHeaders(headers, DefaultGroupingOptions())

	require.Len(t, res.Keys, 2)
	for _, key := range res.Keys {
		g := res.Groups[key]
		assert.Len(t, g.Members, 3)
		assert.Equal(t, "1.2.3", key.SeriesUID)
		require.NotNil(t, g.Split)
		assert.Equal(t, 2, g.Split.Siblings)
		assert.Equal(t, []Attribute{AttrPixelSpacing}, g.Split.Attributes)
	}
	assert.NotEqual(t, res.Keys[0].Signature, res.Keys[1].Signature)
}

func TestGroupHeaders_ToleranceAbsorbsJitter(t *testing.T) {
	a := slice("a.dcm", 0)
	b := slice("b.dcm", 1)
	b.PixelSpacing = &[2]float64{0.500001, 0.5}

	res := GroupHeaders([]*DicomHeader{a, b}, DefaultGroupingOptions())

	require.Len(t, res.Keys, 1)
	assert.Nil(t, res.Groups[res.Keys[0]].Split)
}

func TestGroupHeaders_DuplicateSOPInstance(t *testing.T) {
	a := slice("a.dcm", 0)
	b := slice("b.dcm", 1)
	b.SOPInstanceUID = a.SOPInstanceUID

	res := GroupHeaders([]*DicomHeader{a, b}, DefaultGroupingOptions())

	require.Len(t, res.Keys, 1)
	g := res.Groups[res.Keys[0]]
	require.Len(t, g.Members, 1)
	assert.Equal(t, "a.dcm", g.Members[0].Path)
	require.Len(t, res.Duplicates, 1)
	dup := res.Duplicates[0]
	assert.Equal(t, "b.dcm", dup.Path)
	assert.Equal(t, "a.dcm", dup.KeptPath)
	assert.True(t, errors.Is(dup, ErrDuplicateInstance))
}

func TestGroupHeaders_EmptySOPNeverDeduplicated(t *testing.T) {
	a := slice("a.dcm", 0)
	b := slice("b.dcm", 1)
	a.SOPInstanceUID = ""
	b.SOPInstanceUID = ""

	res := GroupHeaders([]*DicomHeader{a, b}, DefaultGroupingOptions())

	require.Len(t, res.Keys, 1)
	assert.Len(t, res.Groups[res.Keys[0]].Members, 2)
	assert.Empty(t, res.Duplicates)
}

func TestGroupHeaders_RepeatedPathCountsOnce(t *testing.T) {
	a := slice("a.dcm", 0)

	res := GroupHeaders([]*DicomHeader{a, a, nil}, DefaultGroupingOptions())

	require.Len(t, res.Keys, 1)
	assert.Len(t, res.Groups[res.Keys[0]].Members, 1)
	assert.Empty(t, res.Duplicates)
}

func TestGroupHeaders_MissingIdentifiersStillGroup(t *testing.T) {
	a := slice("a.dcm", 0)
	a.PatientID, a.StudyUID, a.SeriesUID = "", "", ""
	b := slice("b.dcm", 1)
	b.PatientID, b.StudyUID, b.SeriesUID = "", "", ""

	res := GroupHeaders([]*DicomHeader{a, b}, DefaultGroupingOptions())

	require.Len(t, res.Keys, 1)
	assert.Len(t, res.Groups[res.Keys[0]].Members, 2)
}

func TestGroupHeaders_EveryHeaderInExactlyOneGroup(t *testing.T) {
	var headers []*DicomHeader
	for i := range 12 {
		h := slice(string(rune('a'+i))+".dcm", float64(i))
		if i%3 == 0 {
			h.EchoNumber = intp(2)
		}
		if i%4 == 0 {
			h.Modality = "MR"
		}
		headers = append(headers, h)
	}

	res := GroupHeaders(headers, DefaultGroupingOptions())

	seen := make(map[string]int)
	for _, g := range res.Groups {
		for _, h := range g.Members {
			seen[h.Path]++
		}
	}
	assert.Len(t, seen, len(headers))
	for path, n := range seen {
		assert.Equal(t, 1, n, path)
	}
}

func TestGroupHeaders_FrameOrder(t *testing.T) {
	h := slice("mf.dcm", 0)
	h.NumberOfFrames = 3
	h.FramePositions = []Vec3{{X: 0, Y: 0, Z: 5}, {X: 0, Y: 0, Z: -5}, {X: 0, Y: 0, Z: 0}}

	res := GroupHeaders([]*DicomHeader{h}, DefaultGroupingOptions())

	g := res.Groups[res.Keys[0]]
	assert.Equal(t, []int{1, 2, 0}, g.FrameOrder["mf.dcm"])
}

func TestSignature_CustomTable(t *testing.T) {
	h := slice("a.dcm", 0)
	h.SliceThickness = new(float64)
	*h.SliceThickness = 1.2

	table := []Discriminator{
		{Attribute: AttrSliceThickness, Tolerance: 0.5},
		{Attribute: AttrEchoNumber},
		{Attribute: AttrModality},
	}

	assert.Equal(t, "slice_thickness=1.2|echo_number=-|modality=CT", Signature(h, table))
}

func TestGroupHeaders_ToleranceAcrossRoundingBoundary(t *testing.T) {
	// 0.78125 sits on a half step of the 1e-4 grid.
	a := slice("a.dcm", 0)
	a.PixelSpacing = &[2]float64{0.78125, 0.78125}
	b := slice("b.dcm", 1)
	b.PixelSpacing = &[2]float64{0.7812499, 0.7812499}

	res := GroupHeaders([]*DicomHeader{a, b}, DefaultGroupingOptions())

	require.Len(t, res.Keys, 1)
	assert.Len(t, res.Groups[res.Keys[0]].Members, 2)
	assert.Contains(t, res.Keys[0].Signature, "pixel_spacing=0.7812499,0.7812499")
}

func TestGroupHeaders_ToleranceIndependentOfInputOrder(t *testing.T) {
	spacings := []float64{0.5, 0.50005, 0.5001, 2.0}
	var headers []*DicomHeader
	for i, sp := range spacings {
		h := slice(string(rune('a'+i))+".dcm", float64(i))
		h.PixelSpacing = &[2]float64{sp, sp}
		headers = append(headers, h)
	}
	reversed := slices.Clone(headers)
	slices.Reverse(reversed)

	forward := GroupHeaders(headers, DefaultGroupingOptions())
	backward := GroupHeaders(reversed, DefaultGroupingOptions())

	require.Len(t, forward.Keys, 2)
	assert.Equal(t, forward.Keys, backward.Keys)
	sizes := []int{len(forward.Groups[forward.Keys[0]].Members), len(forward.Groups[forward.Keys[1]].Members)}
	assert.ElementsMatch(t, []int{3, 1}, sizes)
}

func TestValidateDiscriminators(t *testing.T) {
	tests := []struct {
		name    string
		table   []Discriminator
		wantErr bool
	}{
		{"defaults", DefaultDiscriminators, false},
		{"empty", nil, false},
		{"unknown", []Discriminator{{Attribute: "colour"}}, true},
		{"repeat", []Discriminator{{Attribute: AttrRows}, {Attribute: AttrRows}}, true},
		{"negative tolerance", []Discriminator{{Attribute: AttrPixelSpacing, Tolerance: -1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDiscriminators(tt.table)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

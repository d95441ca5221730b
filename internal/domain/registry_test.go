package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRegistryOptions() RegistryOptions {
	return RegistryOptions{Grouping: DefaultGroupingOptions(), Ordering: DefaultOrderingOptions()}
}

func seriesOf(series, prefix string, n int) []*DicomHeader {
	var out []*DicomHeader
	for i := range n {
		h := slice(fmt.Sprintf("%s/%d.dcm", prefix, i), float64(i))
		h.SeriesUID = series
		h.SOPInstanceUID = fmt.Sprintf("%s.%d", series, i)
		out = append(out, h)
	}
	return out
}

func TestRegistry_ApplyAndQuery(t *testing.T) {
	r := NewRegistry(defaultRegistryOptions())

	batch := append(seriesOf("1.2.3", "/a", 4), seriesOf("1.2.4", "/b", 2)...)
	batch[4].SeriesDescription = "LOCALIZER"
	batch[5].SeriesDescription = "LOCALIZER"
	batch[4].SeriesNumber, batch[5].SeriesNumber = intp(1), intp(1)
	for _, h := range batch[:4] {
		h.SeriesNumber = intp(2)
	}
	res := r.Apply(batch)

	assert.Len(t, res.Affected, 2)
	assert.Empty(t, res.Removed)
	assert.Equal(t, 2, r.Len())

	patients := r.Patients()
	require.Len(t, patients, 1)
	assert.Equal(t, PatientView{
		ID: "P1", Name: "DOE^JANE", Modalities: []string{"CT"},
		StudyCount: 1, SeriesCount: 2, InstanceCount: 6,
	}, patients[0])

	studies := r.Studies("P1")
	require.Len(t, studies, 1)
	assert.Equal(t, "CHEST", studies[0].Description)
	assert.Equal(t, 6, studies[0].InstanceCount)

	series := r.SeriesIn("P1", "1.2")
	require.Len(t, series, 2)
	assert.Equal(t, "LOCALIZER", series[0].Description)
	assert.Equal(t, 4, series[1].InstanceCount)

	largest, ok := r.LargestSeries()
	require.True(t, ok)
	assert.Equal(t, "1.2.3", largest.Key.SeriesUID)
	assert.Equal(t, largest.Key, series[1].Key)

	byID, ok := r.SeriesByID(series[1].ID)
	require.True(t, ok)
	assert.Equal(t, series[1].Key, byID.Key)

	refs := byID.OrderedInstances()
	require.Len(t, refs, 4)
	assert.Equal(t, "/a/0.dcm", refs[0].Path)
	assert.Equal(t, MethodSpatial, refs[0].Method)
	assert.True(t, refs[0].Confident)
}

func TestRegistry_IncrementalUpdateLeavesOtherSeriesUntouched(t *testing.T) {
	r := NewRegistry(defaultRegistryOptions())
	a := seriesOf("1.2.3", "/a", 3)
	b := seriesOf("1.2.4", "/b", 3)
	r.Apply(append(a, b...))

	keyA := r.Series()[0].Key
	keyB := r.Series()[1].Key
	before := r.node(keyA)

	extra := slice("/b/3.dcm", 3)
	extra.SeriesUID = "1.2.4"
	extra.SOPInstanceUID = "1.2.4.3"
	res := r.Apply([]*DicomHeader{extra})

	assert.Equal(t, []GroupKey{keyB}, res.Affected)
	assert.Same(t, before, r.node(keyA))
	assert.Equal(t, 4, r.node(keyB).InstanceCount)
}

func TestRegistry_ApplySameFingerprintIsNoop(t *testing.T) {
	r := NewRegistry(defaultRegistryOptions())
	r.Apply(seriesOf("1.2.3", "/a", 3))
	key := r.Series()[0].Key
	before := r.node(key)

	again := seriesOf("1.2.3", "/a", 3)
	res := r.Apply(again)

	assert.Empty(t, res.Affected)
	assert.Same(t, before, r.node(key))
}

func TestRegistry_ChangedFileMovesSeries(t *testing.T) {
	r := NewRegistry(defaultRegistryOptions())
	r.Apply(seriesOf("1.2.3", "/a", 2))

	moved := slice("/a/1.dcm", 1)
	moved.SeriesUID = "9.9"
	moved.Fingerprint.ModTime = 99
	res := r.Apply([]*DicomHeader{moved})

	assert.Len(t, res.Affected, 2)
	assert.Equal(t, 2, r.Len())
	for _, s := range r.Series() {
		assert.Equal(t, 1, s.InstanceCount)
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry(defaultRegistryOptions())
	r.Apply(append(seriesOf("1.2.3", "/a", 2), seriesOf("1.2.4", "/b", 1)...))

	res := r.Remove([]string{"/b/0.dcm", "/missing.dcm"})

	require.Len(t, res.Removed, 1)
	assert.Equal(t, "1.2.4", res.Removed[0].SeriesUID)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"/a/0.dcm", "/a/1.dcm"}, r.Paths())
}

func TestRegistry_MergePass(t *testing.T) {
	r := NewRegistry(defaultRegistryOptions())
	r.Apply(seriesOf("1.2.4", "/b", 2))
	other := r.node(r.Series()[0].Key)

	pass := RunPass(seriesOf("1.2.3", "/a", 3), defaultRegistryOptions())
	res := r.Merge(pass)

	require.Len(t, res.Affected, 1)
	assert.Equal(t, 2, r.Len())
	assert.Same(t, other, r.node(other.Key))
	assert.Len(t, r.Paths(), 5)
}

func TestRegistry_SplitSeries(t *testing.T) {
	r := NewRegistry(defaultRegistryOptions())
	batch := seriesOf("1.2.3", "/a", 4)
	batch[2].EchoNumber = intp(2)
	batch[3].EchoNumber = intp(2)
	r.Apply(batch)

	split := r.SplitSeries()
	require.Len(t, split, 2)
	for _, s := range split {
		assert.Equal(t, 2, s.InstanceCount)
		assert.Equal(t, []Attribute{AttrEchoNumber}, s.Split.Attributes)
	}
}

func TestMajority(t *testing.T) {
	assert.Equal(t, "b", Majority([]string{"a", "b", "b", ""}))
	assert.Equal(t, "a", Majority([]string{"b", "a"}))
	assert.Equal(t, "", Majority([]string{"", ""}))
}

func TestRegistry_ApplyClustersLikeFullPass(t *testing.T) {
	batch := seriesOf("1.2.3", "/a", 3)
	batch[0].PixelSpacing = &[2]float64{0.78125, 0.78125}
	batch[1].PixelSpacing = &[2]float64{0.7812499, 0.7812499}
	batch[2].PixelSpacing = &[2]float64{0.78125, 0.78125}

	incremental := NewRegistry(defaultRegistryOptions())
	for _, h := range batch {
		incremental.Apply([]*DicomHeader{h})
	}
	full := NewRegistry(defaultRegistryOptions())
	full.Merge(RunPass(batch, defaultRegistryOptions()))

	require.Equal(t, 1, incremental.Len())
	require.Equal(t, 1, full.Len())
	got, want := incremental.Series()[0], full.Series()[0]
	assert.Equal(t, want.Key, got.Key)
	assert.Equal(t, want.OrderedInstances(), got.OrderedInstances())
}

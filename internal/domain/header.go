package domain

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// DICOM keywords read from every file. The parser port returns values keyed by
// these names.
const (
	KeywordPatientID                  = "PatientID"
	KeywordPatientName                = "PatientName"
	KeywordStudyInstanceUID           = "StudyInstanceUID"
	KeywordStudyDescription           = "StudyDescription"
	KeywordStudyDate                  = "StudyDate"
	KeywordSeriesInstanceUID          = "SeriesInstanceUID"
	KeywordSeriesDescription          = "SeriesDescription"
	KeywordSeriesNumber               = "SeriesNumber"
	KeywordSOPInstanceUID             = "SOPInstanceUID"
	KeywordInstanceNumber             = "InstanceNumber"
	KeywordAcquisitionNumber          = "AcquisitionNumber"
	KeywordModality                   = "Modality"
	KeywordImageType                  = "ImageType"
	KeywordImagePositionPatient       = "ImagePositionPatient"
	KeywordImageOrientationPatient    = "ImageOrientationPatient"
	KeywordPixelSpacing               = "PixelSpacing"
	KeywordSliceThickness             = "SliceThickness"
	KeywordRows                       = "Rows"
	KeywordColumns                    = "Columns"
	KeywordNumberOfFrames             = "NumberOfFrames"
	KeywordEchoNumbers                = "EchoNumbers"
	KeywordTemporalPositionIdentifier = "TemporalPositionIdentifier"

	// KeywordPerFrameImagePositionPatient carries the positions of every frame of
	// a multi-frame file, three values per frame.
	KeywordPerFrameImagePositionPatient = "PerFrameImagePositionPatient"
)

// TagValues maps a DICOM keyword to its (possibly multi-valued) string values.
type TagValues map[string][]string

// First returns the first non-empty value for keyword, trimmed.
func (t TagValues) First(keyword string) string {
	for _, v := range t.values(keyword) {
		if v != "" {
			return v
		}
	}
	return ""
}

// values splits backslash-joined multi-values and trims padding.
func (t TagValues) values(keyword string) []string {
	raw, ok := t[keyword]
	if !ok {
		return nil
	}
	var out []string
	for _, r := range raw {
		for _, part := range strings.Split(r, `\`) {
			out = append(out, strings.Trim(part, " \x00"))
		}
	}
	return out
}

// Int parses the first value of keyword as an integer (IS).
func (t TagValues) Int(keyword string) *int {
	s := t.First(keyword)
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	// IS values written by some devices carry a decimal point.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	n := int(f)
	return &n
}

// Floats parses exactly n decimal values (DS). Any missing or malformed value
// makes the whole attribute absent.
func (t TagValues) Floats(keyword string, n int) []float64 {
	vals := t.values(keyword)
	if len(vals) != n {
		return nil
	}
	out := make([]float64, n)
	for i, v := range vals {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		out[i] = f
	}
	return out
}

// Vec3 is a patient-space vector in millimetres.
type Vec3 = r3.Vec

func vec3(v []float64) Vec3 {
	return Vec3{X: v[0], Y: v[1], Z: v[2]}
}

// Orientation holds the row and column direction cosines of an image plane.
type Orientation struct {
	Row    Vec3 `json:"row"`
	Column Vec3 `json:"column"`
}

// Normal returns the slice normal, row × column.
func (o Orientation) Normal() Vec3 {
	return r3.Cross(o.Row, o.Column)
}

// Usable reports whether both vectors are unit length and mutually orthogonal
// within tol.
func (o Orientation) Usable(tol float64) bool {
	if math.Abs(r3.Norm(o.Row)-1) > tol || math.Abs(r3.Norm(o.Column)-1) > tol {
		return false
	}
	return math.Abs(r3.Dot(o.Row, o.Column)) <= tol
}

// Fingerprint identifies the on-disk state of a file.
type Fingerprint struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"mtime"` // UnixNano
}

// IsZero reports whether the fingerprint was never set.
func (f Fingerprint) IsZero() bool {
	return f.Size == 0 && f.ModTime == 0
}

// DicomHeader is an immutable snapshot of the metadata of one file.
type DicomHeader struct {
	Path        string      `json:"path"`
	Fingerprint Fingerprint `json:"fingerprint"`

	PatientID         string `json:"patient_id"`
	PatientName       string `json:"patient_name,omitempty"`
	StudyUID          string `json:"study_uid"`
	StudyDescription  string `json:"study_description,omitempty"`
	StudyDate         string `json:"study_date,omitempty"`
	SeriesUID         string `json:"series_uid"`
	SeriesDescription string `json:"series_description,omitempty"`
	SeriesNumber      *int   `json:"series_number,omitempty"`
	SOPInstanceUID    string `json:"sop_instance_uid"`
	InstanceNumber    *int   `json:"instance_number,omitempty"`
	AcquisitionNumber *int   `json:"acquisition_number,omitempty"`
	Modality          string `json:"modality,omitempty"`
	ImageType         string `json:"image_type,omitempty"`

	ImagePosition    *Vec3        `json:"image_position,omitempty"`
	ImageOrientation *Orientation `json:"image_orientation,omitempty"`
	PixelSpacing     *[2]float64  `json:"pixel_spacing,omitempty"`
	SliceThickness   *float64     `json:"slice_thickness,omitempty"`
	Rows             int          `json:"rows"`
	Columns          int          `json:"columns"`
	NumberOfFrames   int          `json:"frames"`
	EchoNumber       *int         `json:"echo_number,omitempty"`
	TemporalPosition *int         `json:"temporal_position,omitempty"`
	FramePositions   []Vec3       `json:"frame_positions,omitempty"`
}

// Primary returns the nominal series identity of the header.
func (h *DicomHeader) Primary() PrimaryKey {
	return PrimaryKey{PatientID: h.PatientID, StudyUID: h.StudyUID, SeriesUID: h.SeriesUID}
}

// IsMultiFrame reports whether the file holds more than one frame.
func (h *DicomHeader) IsMultiFrame() bool {
	return h.NumberOfFrames > 1
}

// HasGeometry reports whether position and orientation are both known.
func (h *DicomHeader) HasGeometry() bool {
	return h.ImagePosition != nil && h.ImageOrientation != nil
}

// HeaderFromTags builds a header from parser output. Attributes that are absent
// or malformed are left unset; nothing here fails.
func HeaderFromTags(path string, fp Fingerprint, tags TagValues) *DicomHeader {
	h := &DicomHeader{
		Path:              path,
		Fingerprint:       fp,
		PatientID:         tags.First(KeywordPatientID),
		PatientName:       tags.First(KeywordPatientName),
		StudyUID:          tags.First(KeywordStudyInstanceUID),
		StudyDescription:  tags.First(KeywordStudyDescription),
		StudyDate:         tags.First(KeywordStudyDate),
		SeriesUID:         tags.First(KeywordSeriesInstanceUID),
		SeriesDescription: tags.First(KeywordSeriesDescription),
		SeriesNumber:      tags.Int(KeywordSeriesNumber),
		SOPInstanceUID:    tags.First(KeywordSOPInstanceUID),
		InstanceNumber:    tags.Int(KeywordInstanceNumber),
		AcquisitionNumber: tags.Int(KeywordAcquisitionNumber),
		Modality:          tags.First(KeywordModality),
		ImageType:         strings.Join(tags.values(KeywordImageType), `\`),
		EchoNumber:        tags.Int(KeywordEchoNumbers),
		TemporalPosition:  tags.Int(KeywordTemporalPositionIdentifier),
		NumberOfFrames:    1,
	}

	if v := tags.Floats(KeywordImagePositionPatient, 3); v != nil {
		p := vec3(v)
		h.ImagePosition = &p
	}
	if v := tags.Floats(KeywordImageOrientationPatient, 6); v != nil {
		h.ImageOrientation = &Orientation{
			Row:    vec3(v[0:3]),
			Column: vec3(v[3:6]),
		}
	}
	if v := tags.Floats(KeywordPixelSpacing, 2); v != nil {
		h.PixelSpacing = &[2]float64{v[0], v[1]}
	}
	if v := tags.Floats(KeywordSliceThickness, 1); v != nil {
		h.SliceThickness = &v[0]
	}
	if n := tags.Int(KeywordRows); n != nil && *n > 0 {
		h.Rows = *n
	}
	if n := tags.Int(KeywordColumns); n != nil && *n > 0 {
		h.Columns = *n
	}
	if n := tags.Int(KeywordNumberOfFrames); n != nil && *n > 1 {
		h.NumberOfFrames = *n
	}

	if h.IsMultiFrame() {
		if v := tags.Floats(KeywordPerFrameImagePositionPatient, 3*h.NumberOfFrames); v != nil {
			h.FramePositions = make([]Vec3, h.NumberOfFrames)
			for i := range h.FramePositions {
				h.FramePositions[i] = vec3(v[3*i : 3*i+3])
			}
		}
	}

	return h
}

// CacheEntry pairs a parsed header with the fingerprint it was parsed at.
type CacheEntry struct {
	Path        string
	Fingerprint Fingerprint
	Header      *DicomHeader
}

// CacheStats holds header cache counters.
type CacheStats struct {
	Entries  int
	Hits     uint64
	Misses   uint64
	Parses   uint64
	Failures uint64
}

// Package dicomfile reads DICOM Part 10 headers with github.com/suyashkumar/dicom.
package dicomfile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/ports"
)

const (
	preambleLength = 128
	// mediaStorageDirectory is the SOP class of a DICOMDIR.
	mediaStorageDirectory = "1.2.840.10008.1.3.10"
)

var magic = []byte("DICM")

// headerTags maps every keyword the grouping engine reads to its tag.
var headerTags = map[string]tag.Tag{
	domain.KeywordPatientID:                  tag.PatientID,
	domain.KeywordPatientName:                tag.PatientName,
	domain.KeywordStudyInstanceUID:           tag.StudyInstanceUID,
	domain.KeywordStudyDescription:           tag.StudyDescription,
	domain.KeywordStudyDate:                  tag.StudyDate,
	domain.KeywordSeriesInstanceUID:          tag.SeriesInstanceUID,
	domain.KeywordSeriesDescription:          tag.SeriesDescription,
	domain.KeywordSeriesNumber:               tag.SeriesNumber,
	domain.KeywordSOPInstanceUID:             tag.SOPInstanceUID,
	domain.KeywordInstanceNumber:             tag.InstanceNumber,
	domain.KeywordAcquisitionNumber:          tag.AcquisitionNumber,
	domain.KeywordModality:                   tag.Modality,
	domain.KeywordImageType:                  tag.ImageType,
	domain.KeywordImagePositionPatient:       tag.ImagePositionPatient,
	domain.KeywordImageOrientationPatient:    tag.ImageOrientationPatient,
	domain.KeywordPixelSpacing:               tag.PixelSpacing,
	domain.KeywordSliceThickness:             tag.SliceThickness,
	domain.KeywordRows:                       tag.Rows,
	domain.KeywordColumns:                    tag.Columns,
	domain.KeywordNumberOfFrames:             tag.NumberOfFrames,
	domain.KeywordEchoNumbers:                tag.EchoNumbers,
	domain.KeywordTemporalPositionIdentifier: tag.TemporalPositionIdentifier,
}

// Parser implements ports.HeaderParser. Pixel data is skipped.
type Parser struct{}

// Ensure Parser implements HeaderParser
var _ ports.HeaderParser = Parser{}

// NewParser creates a new Parser
func NewParser() Parser {
	return Parser{}
}

// Parse reads the header of path. Files without the DICM marker and DICOMDIR
// indexes fail with ports.ErrNotDicom.
func (Parser) Parse(ctx context.Context, path string) (domain.TagValues, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Base(path), "DICOMDIR") {
		return nil, fmt.Errorf("%s is a media index: %w", path, ports.ErrNotDicom)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if err := checkMagic(f); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	ds, err := dicom.Parse(f, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}

	if sopClass(ds) == mediaStorageDirectory {
		return nil, fmt.Errorf("%s is a media index: %w", path, ports.ErrNotDicom)
	}
	return extract(ds), nil
}

func checkMagic(r io.Reader) error {
	buf := make([]byte, preambleLength+len(magic))
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("file too short: %w", ports.ErrNotDicom)
	}
	if !bytes.Equal(buf[preambleLength:], magic) {
		return fmt.Errorf("missing DICM marker: %w", ports.ErrNotDicom)
	}
	return nil
}

func sopClass(ds dicom.Dataset) string {
	for _, t := range []tag.Tag{tag.MediaStorageSOPClassUID, tag.SOPClassUID} {
		if e, err := ds.FindElementByTag(t); err == nil {
			if v := values(e); len(v) > 0 {
				return strings.Trim(v[0], " \x00")
			}
		}
	}
	return ""
}

// extract pulls the keywords in headerTags plus the geometry of enhanced
// multi-frame objects, which lives in functional group sequences.
func extract(ds dicom.Dataset) domain.TagValues {
	tags := make(domain.TagValues, len(headerTags)+1)
	for keyword, t := range headerTags {
		e, err := ds.FindElementByTag(t)
		if err != nil {
			continue
		}
		if v := values(e); len(v) > 0 {
			tags[keyword] = v
		}
	}

	shared := functionalGroups(ds, tag.SharedFunctionalGroupsSequence)
	if len(shared) > 0 {
		fillMissing(tags, domain.KeywordImageOrientationPatient, nested(shared[0], tag.PlaneOrientationSequence, tag.ImageOrientationPatient))
		fillMissing(tags, domain.KeywordPixelSpacing, nested(shared[0], tag.PixelMeasuresSequence, tag.PixelSpacing))
		fillMissing(tags, domain.KeywordSliceThickness, nested(shared[0], tag.PixelMeasuresSequence, tag.SliceThickness))
	}

	perFrame := functionalGroups(ds, tag.PerFrameFunctionalGroupsSequence)
	if len(perFrame) > 0 {
		var positions []string
		for _, frame := range perFrame {
			p := nested(frame, tag.PlanePositionSequence, tag.ImagePositionPatient)
			if len(p) != 3 {
				positions = nil
				break
			}
			positions = append(positions, p...)
		}
		if positions != nil {
			tags[domain.KeywordPerFrameImagePositionPatient] = positions
			// The first frame stands in for the whole object.
			fillMissing(tags, domain.KeywordImagePositionPatient, positions[:3])
		}
		fillMissing(tags, domain.KeywordImageOrientationPatient, nested(perFrame[0], tag.PlaneOrientationSequence, tag.ImageOrientationPatient))
	}

	return tags
}

func fillMissing(tags domain.TagValues, keyword string, v []string) {
	if _, ok := tags[keyword]; !ok && len(v) > 0 {
		tags[keyword] = v
	}
}

// functionalGroups returns the items of a top level functional group sequence.
func functionalGroups(ds dicom.Dataset, t tag.Tag) [][]*dicom.Element {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return nil
	}
	return items(e)
}

func items(e *dicom.Element) [][]*dicom.Element {
	if e == nil || e.Value == nil {
		return nil
	}
	seq, ok := e.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return nil
	}
	out := make([][]*dicom.Element, 0, len(seq))
	for _, item := range seq {
		if elems, ok := item.GetValue().([]*dicom.Element); ok {
			out = append(out, elems)
		}
	}
	return out
}

// nested reads leaf from the first item of the macro sequence inside item.
func nested(item []*dicom.Element, macro, leaf tag.Tag) []string {
	for _, e := range item {
		if e.Tag != macro {
			continue
		}
		for _, inner := range items(e) {
			for _, ie := range inner {
				if ie.Tag == leaf {
					return values(ie)
				}
			}
		}
	}
	return nil
}

// values renders an element value as strings whatever its VR.
func values(e *dicom.Element) []string {
	if e == nil || e.Value == nil {
		return nil
	}
	switch v := e.Value.GetValue().(type) {
	case []string:
		return v
	case []int:
		out := make([]string, len(v))
		for i, n := range v {
			out[i] = strconv.Itoa(n)
		}
		return out
	case []float64:
		out := make([]string, len(v))
		for i, f := range v {
			out[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return out
	default:
		return nil
	}
}

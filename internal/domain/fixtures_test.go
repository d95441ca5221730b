package domain

import "fmt"

func intp(n int) *int { return &n }

func axial() *Orientation {
	return &Orientation{Row: Vec3{X: 1, Y: 0, Z: 0}, Column: Vec3{X: 0, Y: 1, Z: 0}}
}

// slice builds a 512x512 axial CT header in series "1.2.3".
func slice(path string, z float64) *DicomHeader {
	return &DicomHeader{
		Path:             path,
		Fingerprint:      Fingerprint{Size: 1024, ModTime: 1},
		PatientID:        "P1",
		PatientName:      "DOE^JANE",
		StudyUID:         "1.2",
		StudyDescription: "CHEST",
		StudyDate:        "20240101",
		SeriesUID:        "1.2.3",
		SOPInstanceUID:   fmt.Sprintf("1.2.3.%s", path),
		Modality:         "CT",
		Rows:             512,
		Columns:          512,
		NumberOfFrames:   1,
		PixelSpacing:     &[2]float64{0.5, 0.5},
		ImageOrientation: axial(),
		ImagePosition:    &Vec3{X: 0, Y: 0, Z: z},
	}
}

package memory

import (
	"strconv"

	"github.com/CodeChoreography/dicomity/internal/domain"
)

// SliceTags returns the tags of a 512x512 axial CT slice of patient P1,
// study 1.2, at height z.
func SliceTags(seriesUID, sopUID string, z float64) domain.TagValues {
	return domain.TagValues{
		domain.KeywordPatientID:               {"P1"},
		domain.KeywordPatientName:             {"DOE^JANE"},
		domain.KeywordStudyInstanceUID:        {"1.2"},
		domain.KeywordSeriesInstanceUID:       {seriesUID},
		domain.KeywordSOPInstanceUID:          {sopUID},
		domain.KeywordModality:                {"CT"},
		domain.KeywordRows:                    {"512"},
		domain.KeywordColumns:                 {"512"},
		domain.KeywordPixelSpacing:            {`0.5\0.5`},
		domain.KeywordImageOrientationPatient: {`1\0\0\0\1\0`},
		domain.KeywordImagePositionPatient:    {`0\0\` + strconv.FormatFloat(z, 'f', -1, 64)},
	}
}

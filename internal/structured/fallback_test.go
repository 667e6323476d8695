package structured

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResume = `Jane Doe
jane@example.com

Education:
- Massachusetts Institute of Technology, Cambridge, MA
  B.S. in Computer Science
  2012 - 2016
  GPA: 3.8/4.0
  Relevant Coursework: Algorithms, Distributed Systems

Work Experience:
- Senior Software Engineer at Acme Corp, Boston, MA
  Jan 2019 - Present
  Responsibilities:
    - Built the billing platform in Go
    - Led a team of five engineers
- Software Engineer at Initech
  2016 - 2018
  Responsibilities:
    - Maintained TPS report pipeline

Skills:
- Go, Kubernetes
`

func TestParseFallbackSampleResume(t *testing.T) {
	rec := ParseFallback(sampleResume)

	require.Len(t, rec.Education, 1)
	edu := rec.Education[0]
	assert.Equal(t, "Massachusetts Institute of Technology", edu.Institute)
	assert.Equal(t, "Cambridge, MA", edu.Location)
	assert.Equal(t, "B.S.", edu.Degree)
	assert.Equal(t, "Computer Science", edu.Major)
	assert.Equal(t, "2012", edu.StartDate)
	assert.Equal(t, "2016", edu.EndDate)
	assert.Equal(t, "3.8/4.0", edu.GPA)
	assert.Equal(t, "Algorithms, Distributed Systems", edu.RelevantCoursework)

	require.Len(t, rec.WorkExperience, 2)
	first := rec.WorkExperience[0]
	assert.Equal(t, "Senior Software Engineer", first.JobTitle)
	assert.Equal(t, "Acme Corp", first.Company)
	assert.Equal(t, "Boston, MA", first.Location)
	assert.Equal(t, "Jan 2019", first.StartDate)
	assert.Equal(t, "Present", first.EndDate)
	assert.Equal(t, []string{"Built the billing platform in Go", "Led a team of five engineers"}, first.Responsibilities)

	second := rec.WorkExperience[1]
	assert.Equal(t, "Software Engineer", second.JobTitle)
	assert.Equal(t, "Initech", second.Company)
	assert.Equal(t, []string{"Maintained TPS report pipeline"}, second.Responsibilities)
}

func TestParseFallbackNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"   \n\n\t",
		"education:",
		"work experience:\nresponsibilities:\n    - orphan bullet",
		"- - - -\n----\n•••",
		string([]byte{0xff, 0xfe, 0x00, 0x01, '\n', 0x80, 0x81}),
		"Education: work experience: responsibilities:",
		strings.Repeat("work experience:\n- a at b\n  2010 - 2011\n", 500),
		"education:\n" + strings.Repeat("GPA GPA: 1999 - ", 200),
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			rec := ParseFallback(in)
			assert.NotNil(t, rec.Education)
			assert.NotNil(t, rec.WorkExperience)
		})
	}
}

func TestParseFallbackWithoutSections(t *testing.T) {
	rec := ParseFallback("just a paragraph of text\nwith no markers")
	assert.Empty(t, rec.Education)
	assert.Empty(t, rec.WorkExperience)
}

func TestParseFallbackImplicitEntry(t *testing.T) {
	rec := ParseFallback("Education:\nStanford University, Stanford, CA\nM.S. in Statistics")
	require.Len(t, rec.Education, 1)
	assert.Equal(t, "Stanford University", rec.Education[0].Institute)
	assert.Equal(t, "M.S.", rec.Education[0].Degree)
	assert.Equal(t, "Statistics", rec.Education[0].Major)
}

package structured

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredRecordDecodesAnyNaming(t *testing.T) {
	inputs := map[string]string{
		"camel":  `{"education":[{"institute":"MIT","startDate":"2015","relevantCoursework":"Algorithms"}],"workExperience":[{"jobTitle":"Engineer","company":"Acme","responsibilities":["Built APIs"]}]}`,
		"pascal": `{"Education":[{"Institute":"MIT","StartDate":"2015","RelevantCoursework":"Algorithms"}],"WorkExperience":[{"JobTitle":"Engineer","Company":"Acme","Responsibilities":["Built APIs"]}]}`,
		"snake":  `{"education":[{"institute":"MIT","start_date":"2015","relevant_coursework":"Algorithms"}],"work_experience":[{"job_title":"Engineer","company":"Acme","responsibilities":["Built APIs"]}]}`,
	}
	want := StructuredRecord{
		Education:      []Education{{Institute: "MIT", StartDate: "2015", RelevantCoursework: "Algorithms"}},
		WorkExperience: []WorkExperience{{JobTitle: "Engineer", Company: "Acme", Responsibilities: []string{"Built APIs"}}},
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			var got StructuredRecord
			require.NoError(t, json.Unmarshal([]byte(in), &got))
			assert.Equal(t, want, got)
		})
	}
}

func TestDecodeScalarsAndNulls(t *testing.T) {
	in := `{"education":[{"institute":null,"gpa":3.9,"startDate":2016,"other":true,"relevantCoursework":["OS","Networks"]}],"workExperience":null}`
	var got StructuredRecord
	require.NoError(t, json.Unmarshal([]byte(in), &got))

	require.Len(t, got.Education, 1)
	e := got.Education[0]
	assert.Equal(t, "", e.Institute)
	assert.Equal(t, "3.9", e.GPA)
	assert.Equal(t, "2016", e.StartDate)
	assert.Equal(t, "true", e.Other)
	assert.Equal(t, "OS, Networks", e.RelevantCoursework)
	assert.NotNil(t, got.WorkExperience)
	assert.Empty(t, got.WorkExperience)
}

func TestDecodeSingleObjectAndStringResponsibilities(t *testing.T) {
	in := `{"WorkExperience":{"Title":"Lead","Employer":"Initech","Responsibilities":"Ran the team"}}`
	var got StructuredRecord
	require.NoError(t, json.Unmarshal([]byte(in), &got))

	require.Len(t, got.WorkExperience, 1)
	assert.Equal(t, WorkExperience{JobTitle: "Lead", Company: "Initech", Responsibilities: []string{"Ran the team"}}, got.WorkExperience[0])
	assert.Empty(t, got.Education)
}

func TestEncodeIsCamelCase(t *testing.T) {
	rec := StructuredRecord{WorkExperience: []WorkExperience{{JobTitle: "Dev"}}}.Normalized()
	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"education":[],"workExperience":[{"jobTitle":"Dev","company":"","location":"","startDate":"","endDate":"","responsibilities":[]}]}`, string(out))
}

func TestCanonicalKey(t *testing.T) {
	for _, name := range []string{"startDate", "StartDate", "start_date", "START-DATE"} {
		key, ok := canonicalKey(name)
		assert.True(t, ok, name)
		assert.Equal(t, "startDate", key, name)
	}
	_, ok := canonicalKey("favouriteColour")
	assert.False(t, ok)
}

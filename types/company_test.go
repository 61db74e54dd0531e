package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGrade(t *testing.T) {
	g, err := ParseGrade(" a- ")
	require.NoError(t, err)
	assert.Equal(t, GradeAMinus, g)

	_, err = ParseGrade("E")
	assert.Error(t, err)

	_, err = ParseGrade("")
	assert.Error(t, err)
}

func TestGradeOrdering(t *testing.T) {
	assert.Equal(t, 0, GradeAPlus.Rank())
	assert.Equal(t, 9, GradeD.Rank())
	assert.Equal(t, -1, Grade("Z").Rank())

	assert.True(t, GradeBPlus.Better(GradeB))
	assert.False(t, GradeC.Better(GradeCPlus))
	assert.True(t, GradeD.Better(Grade("")))
	assert.False(t, Grade("").Better(GradeD))

	scale := Grades()
	require.Len(t, scale, 10)
	scale[0] = GradeD
	assert.Equal(t, GradeAPlus, Grades()[0], "Grades must return a copy")
}

func TestCompanyHasArtifact(t *testing.T) {
	assert.False(t, Company{HasPDFReport: true}.HasArtifact())
	assert.False(t, Company{PDFFilename: "acme.pdf"}.HasArtifact())
	assert.True(t, Company{HasPDFReport: true, PDFFilename: "acme.pdf"}.HasArtifact())
}

func TestUserFullName(t *testing.T) {
	assert.Equal(t, "Alice Smith", User{Username: "alice", FirstName: "Alice", LastName: "Smith"}.FullName())
	assert.Equal(t, "alice", User{Username: "alice"}.FullName())
}

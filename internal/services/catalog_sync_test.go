package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/esgportal/apiserver/types"
)

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "company_name", NormalizeHeader("  Company   Name "))
	assert.Equal(t, "esg_rating", NormalizeHeader("ESG Rating"))
	assert.Equal(t, "isin", NormalizeHeader("ISIN"))
}

func TestParseSheetCSV(t *testing.T) {
	data := []byte("Sr No.,ISIN,Company Name,E Pillar,ESG Rating,MCAP\n" +
		"1,ine500,Zeta Steel,55.25,b-,1200\n" +
		",,,,,\n" +
		"2,INE501,Eta Foods,,A\n")

	rows, err := ParseSheet("data.CSV", data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ine500", rows[0]["isin"])
	assert.Equal(t, "Zeta Steel", rows[0]["company_name"])
	assert.Equal(t, "55.25", rows[0]["e_pillar"])
	assert.Equal(t, "", rows[1]["e_pillar"])
	assert.NotContains(t, rows[1], "mcap")

	_, err = ParseSheet("data.pdf", data)
	assert.Error(t, err)
	_, err = ParseSheet("data.csv", nil)
	assert.Error(t, err)
}

func TestParseSheetXLSX(t *testing.T) {
	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetSheetRow(sheet, "A1", &[]any{"ISIN", "Company Name", "ESG Pillar", "File Name"}))
	require.NoError(t, book.SetSheetRow(sheet, "A2", &[]any{"INE600", "Theta Power", 71.5, "reports/INE600.pdf"}))

	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf))

	rows, err := ParseSheet("ratings.xlsx", buf.Bytes())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Theta Power", rows[0]["company_name"])
	assert.Equal(t, "71.5", rows[0]["esg_pillar"])
	assert.Equal(t, "reports/INE600.pdf", rows[0]["file_name"])
}

func TestSyncCreatesSkipsAndForceMerges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rows := []SheetRow{
		{"isin": "ine700", "company_name": "Iota Cement", "e_pillar": "40.5", "esg_rating": "c+", "sector": "Materials",
			"composite_rating": "Laggard", "positive_screen": "Fail", "negative_screen": "Flagged", "controversy_rating": "High"},
		{"isin": "", "company_name": "No Isin Ltd"},
		{"isin": f.acme.ISIN, "company_name": "Acme Corp Renamed", "esg_rating": "not-a-grade", "sector": "",
			"composite_rating": "Leader", "controversy_rating": ""},
	}

	report, err := f.catalog.Sync(ctx, rows, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "row 2")

	created, err := f.catalog.Resolve(ctx, "INE700")
	require.NoError(t, err)
	assert.Equal(t, "Iota Cement", created.Name)
	assert.Equal(t, types.GradeCPlus, created.Grade)
	assert.True(t, created.EScore.Valid)
	assert.False(t, created.SScore.Valid)
	assert.Equal(t, "Laggard", created.Composite)
	assert.Equal(t, "Fail", created.Positive)
	assert.Equal(t, "Flagged", created.Negative)
	assert.Equal(t, "High", created.Controversy)

	unchanged, err := f.catalog.Resolve(ctx, f.acme.ISIN)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", unchanged.Name)

	report, err = f.catalog.Sync(ctx, rows, true)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 2, report.Updated)

	merged, err := f.catalog.Resolve(ctx, f.acme.ISIN)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp Renamed", merged.Name)
	assert.Equal(t, "Energy", merged.Sector, "empty values must not overwrite")
	assert.Equal(t, types.GradeBPlus, merged.Grade, "invalid grade must not overwrite")
	assert.Equal(t, "Leader", merged.Composite)
	assert.Empty(t, merged.Controversy)
	assert.True(t, merged.HasArtifact())
}

func TestSyncFundRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rows := []SheetRow{
		{"fund_name": "Green Equity Fund", "score": "72.4", "percentage": "18%", "grade": "a"},
		{"fund_name": "Index Plus", "grade": "B"},
	}
	report, err := f.catalog.Sync(ctx, rows, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FundsCreated)
	assert.Equal(t, 0, report.Created)
	assert.Empty(t, report.Errors)

	report, err = f.catalog.Sync(ctx, []SheetRow{{"fund_name": "Index Plus", "percentage": "9%"}}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)

	report, err = f.catalog.Sync(ctx, []SheetRow{{"fund_name": "Index Plus", "percentage": "9%"}}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FundsUpdated)

	funds, err := f.catalog.ListFunds(ctx)
	require.NoError(t, err)
	require.Len(t, funds, 2)
	assert.Equal(t, "Green Equity Fund", funds[0].Name)
	assert.Equal(t, types.GradeA, funds[0].Grade)
	assert.True(t, funds[0].Score.Valid)
	assert.Equal(t, "Index Plus", funds[1].Name)
	assert.Equal(t, "9%", funds[1].Percentage)
	assert.Equal(t, types.GradeB, funds[1].Grade, "empty values must not overwrite")
}

func TestSyncRejectsReportKeysOutsideBucket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rows := []SheetRow{
		{"isin": "INE800", "company_name": "Kappa Steel", "file_name": "../secret.pdf"},
		{"isin": "INE801", "company_name": "Lambda Foods", "file_name": "/etc/passwd"},
		{"isin": "INE802", "company_name": "Mu Chemicals", "file_name": "reports/INE802.pdf"},
	}
	report, err := f.catalog.Sync(ctx, rows, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Errors, 2)
	assert.Contains(t, report.Errors[0], "row 1")
	assert.Contains(t, report.Errors[1], "row 2")

	_, err = f.catalog.Resolve(ctx, "INE800")
	requireNotFound(t, err, "company")
}

func TestUploadReportValidatesPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.UploadReport(ctx, f.noPDF.ISIN, []byte("<html>"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.catalog.UploadReport(ctx, "UNKNOWN", []byte(testPDF))
	requireNotFound(t, err, "company")

	company, err := f.catalog.UploadReport(ctx, " ine222 ", []byte(testPDF))
	require.NoError(t, err)
	assert.Equal(t, "reports/INE222.pdf", company.PDFFilename)

	available, err := f.catalog.AvailableReports(ctx)
	require.NoError(t, err)
	isins := make([]string, 0, len(available))
	for _, c := range available {
		isins = append(isins, c.ISIN)
	}
	assert.ElementsMatch(t, []string{f.acme.ISIN, f.beta.ISIN, f.missing.ISIN, "INE222"}, isins)
}

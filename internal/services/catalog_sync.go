package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/esgportal/apiserver/internal/storage"
	"github.com/esgportal/apiserver/internal/store"
	"github.com/esgportal/apiserver/types"
)

// SheetRow is one data row keyed by normalized header name.
type SheetRow map[string]string

// SyncReport summarizes a catalog sync run. Row numbers are 1-based data
// rows, not counting the header.
type SyncReport struct {
	Created      int      `json:"created"`
	Updated      int      `json:"updated"`
	FundsCreated int      `json:"funds_created"`
	FundsUpdated int      `json:"funds_updated"`
	Skipped      int      `json:"skipped"`
	Errors       []string `json:"errors"`
}

// Header aliases accepted by the sync, first match wins.
var sheetColumns = map[string][]string{
	"isin":         {"isin"},
	"name":         {"company_name", "name"},
	"sector":       {"sector"},
	"esg_sector":   {"esg_sector"},
	"industry":     {"industry"},
	"bse_symbol":   {"bse_symbol"},
	"nse_symbol":   {"nse_symbol"},
	"market_cap":   {"mcap", "market_cap"},
	"e_score":      {"e_pillar", "e_score"},
	"s_score":      {"s_pillar", "s_score"},
	"g_score":      {"g_pillar", "g_score"},
	"esg_score":    {"esg_pillar", "esg_score"},
	"composite":    {"composite_rating", "composite"},
	"positive":     {"positive_screen", "positive"},
	"negative":     {"negative_screen", "negative"},
	"controversy":  {"controversy_rating", "controversy"},
	"grade":        {"esg_rating", "grade"},
	"pdf_filename": {"file_name", "pdf_filename"},
	"fund_name":    {"fund_name", "fund"},
	"fund_score":   {"fund_score", "score"},
	"percentage":   {"percentage", "fund_percentage"},
}

// NormalizeHeader trims, lowercases and joins words with underscores.
func NormalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), "_")
}

// ParseSheet decodes a CSV or XLSX upload into rows. For workbooks the
// first sheet is read.
func ParseSheet(filename string, data []byte) ([]SheetRow, error) {
	if len(data) == 0 {
		return nil, errors.New("empty sheet")
	}

	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".csv":
		reader := csv.NewReader(bytes.NewReader(data))
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		records, err = reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
	case ".xlsx", ".xlsm":
		records, err = readWorkbook(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported sheet format")
	}

	if len(records) == 0 {
		return nil, errors.New("sheet has no header row")
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = NormalizeHeader(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([]SheetRow, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(SheetRow, len(headers))
		blank := true
		for i, h := range headers {
			if h == "" || i >= len(record) {
				continue
			}
			value := strings.TrimSpace(record[i])
			if value != "" {
				blank = false
			}
			row[h] = value
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func (r SheetRow) get(field string) string {
	for _, alias := range sheetColumns[field] {
		if v := r[alias]; v != "" {
			return v
		}
	}
	return ""
}

// Sync upserts catalog rows: companies keyed by ISIN, and funds keyed by
// fund name for rows that carry a fund name but no ISIN. Rows without a key
// are skipped. Existing rows are only touched when force is set, and then
// only with non-empty values.
func (s *CatalogService) Sync(ctx context.Context, rows []SheetRow, force bool) (SyncReport, error) {
	report := SyncReport{Errors: []string{}}
	log := zerolog.Ctx(ctx)

	for i, row := range rows {
		incoming := companyFromRow(row)
		if incoming.ISIN == "" && row.get("fund_name") != "" {
			if err := s.syncFund(ctx, fundFromRow(row), force, &report); err != nil {
				return report, err
			}
			continue
		}
		if incoming.ISIN == "" || incoming.Name == "" {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: isin and company name are required", i+1))
			continue
		}
		if incoming.PDFFilename != "" && !storage.ValidKey(incoming.PDFFilename) {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: file_name %q is not a valid report key", i+1, incoming.PDFFilename))
			continue
		}

		existing, err := s.repo.GetByISIN(ctx, incoming.ISIN)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if _, err := s.repo.Create(ctx, incoming); err != nil {
				if errors.Is(err, store.ErrConflict) {
					report.Skipped++
					report.Errors = append(report.Errors, fmt.Sprintf("row %d: isin %s already exists", i+1, incoming.ISIN))
					continue
				}
				return report, fmt.Errorf("create %s: %w", incoming.ISIN, err)
			}
			report.Created++
		case err != nil:
			return report, fmt.Errorf("lookup %s: %w", incoming.ISIN, err)
		case force:
			if _, err := s.repo.Update(ctx, mergeCompany(existing, incoming)); err != nil {
				return report, fmt.Errorf("update %s: %w", incoming.ISIN, err)
			}
			report.Updated++
		default:
			report.Skipped++
		}
	}

	log.Info().
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("funds_created", report.FundsCreated).
		Int("funds_updated", report.FundsUpdated).
		Int("skipped", report.Skipped).
		Msg("catalog sync finished")
	return report, nil
}

func (s *CatalogService) syncFund(ctx context.Context, incoming types.Fund, force bool, report *SyncReport) error {
	existing, err := s.funds.GetByName(ctx, incoming.Name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if _, err := s.funds.Create(ctx, incoming); err != nil {
			if errors.Is(err, store.ErrConflict) {
				report.Skipped++
				return nil
			}
			return fmt.Errorf("create fund %s: %w", incoming.Name, err)
		}
		report.FundsCreated++
	case err != nil:
		return fmt.Errorf("lookup fund %s: %w", incoming.Name, err)
	case force:
		if incoming.Score.Valid {
			existing.Score = incoming.Score
		}
		if incoming.Percentage != "" {
			existing.Percentage = incoming.Percentage
		}
		if incoming.Grade != "" {
			existing.Grade = incoming.Grade
		}
		if _, err := s.funds.Update(ctx, existing); err != nil {
			return fmt.Errorf("update fund %s: %w", incoming.Name, err)
		}
		report.FundsUpdated++
	default:
		report.Skipped++
	}
	return nil
}

func fundFromRow(row SheetRow) types.Fund {
	f := types.Fund{
		Name:       row.get("fund_name"),
		Score:      parseScore(row.get("fund_score")),
		Percentage: row.get("percentage"),
	}
	if grade, err := types.ParseGrade(row.get("grade")); err == nil {
		f.Grade = grade
	}
	return f
}

func companyFromRow(row SheetRow) types.Company {
	c := types.Company{
		ISIN:        strings.ToUpper(row.get("isin")),
		Name:        row.get("name"),
		Sector:      row.get("sector"),
		ESGSector:   row.get("esg_sector"),
		Industry:    row.get("industry"),
		BSESymbol:   row.get("bse_symbol"),
		NSESymbol:   row.get("nse_symbol"),
		MarketCap:   row.get("market_cap"),
		EScore:      parseScore(row.get("e_score")),
		SScore:      parseScore(row.get("s_score")),
		GScore:      parseScore(row.get("g_score")),
		ESGScore:    parseScore(row.get("esg_score")),
		Composite:   row.get("composite"),
		Positive:    row.get("positive"),
		Negative:    row.get("negative"),
		Controversy: row.get("controversy"),
		PDFFilename: row.get("pdf_filename"),
	}
	if grade, err := types.ParseGrade(row.get("grade")); err == nil {
		c.Grade = grade
	}
	c.HasPDFReport = c.PDFFilename != ""
	return c
}

// parseScore returns an invalid NullDecimal for blank or unparseable input.
func parseScore(raw string) decimal.NullDecimal {
	if raw == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func mergeCompany(dst, src types.Company) types.Company {
	setString := func(to *string, from string) {
		if from != "" {
			*to = from
		}
	}
	setScore := func(to *decimal.NullDecimal, from decimal.NullDecimal) {
		if from.Valid {
			*to = from
		}
	}

	setString(&dst.Name, src.Name)
	setString(&dst.Sector, src.Sector)
	setString(&dst.ESGSector, src.ESGSector)
	setString(&dst.Industry, src.Industry)
	setString(&dst.BSESymbol, src.BSESymbol)
	setString(&dst.NSESymbol, src.NSESymbol)
	setString(&dst.MarketCap, src.MarketCap)
	setString(&dst.Composite, src.Composite)
	setString(&dst.Positive, src.Positive)
	setString(&dst.Negative, src.Negative)
	setString(&dst.Controversy, src.Controversy)
	setScore(&dst.EScore, src.EScore)
	setScore(&dst.SScore, src.SScore)
	setScore(&dst.GScore, src.GScore)
	setScore(&dst.ESGScore, src.ESGScore)
	if src.Grade != "" {
		dst.Grade = src.Grade
	}
	if src.PDFFilename != "" {
		dst.PDFFilename = src.PDFFilename
		dst.HasPDFReport = true
	}
	return dst
}

package importer

import (
	"fmt"
	"strings"
	"time"

	"bitbucket.org/agrifocus/plantation_backend/models"
	"bitbucket.org/agrifocus/plantation_backend/utils"
	"github.com/shopspring/decimal"
)

// RowError describes one sheet row that could not be turned into a
// candidate. Row numbers are 1-based as shown in the spreadsheet.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// HarvestRow is one parsed harvest sheet line before name resolution.
type HarvestRow struct {
	Row          int
	HarvestDate  time.Time
	DivisionName string
	BlockName    string
	Tonnage      decimal.Decimal
	BunchCount   int
}

// TransportRow is one parsed transport sheet line before name resolution.
type TransportRow struct {
	Row          int
	LogDate      time.Time
	CompanyName  string
	VehiclePlate string
	Destination  string
	Tonnage      decimal.Decimal
	TicketNumber string
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	return h
}

// headerIndex maps normalized header names to their column position.
// Sheets come from different field offices, so a few spellings are
// accepted per column.
func headerIndex(headers []string) map[string]int {
	index := make(map[string]int)
	for i, h := range headers {
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	return index
}

func pickColumn(index map[string]int, names ...string) (int, bool) {
	for _, name := range names {
		if i, ok := index[name]; ok {
			return i, true
		}
	}
	return 0, false
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseHarvestRows converts raw sheet rows into harvest candidates. The
// first row must be a header. Bad rows are reported, not fatal: one
// illegible line does not block the rest of the sheet.
func ParseHarvestRows(rows [][]string) ([]HarvestRow, []RowError, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet is empty")
	}

	index := headerIndex(rows[0])
	dateCol, ok := pickColumn(index, "date", "harvest_date", "tanggal")
	if !ok {
		return nil, nil, fmt.Errorf("missing date column")
	}
	divisionCol, ok := pickColumn(index, "division", "divisi", "afdeling")
	if !ok {
		return nil, nil, fmt.Errorf("missing division column")
	}
	blockCol, ok := pickColumn(index, "block", "blok")
	if !ok {
		return nil, nil, fmt.Errorf("missing block column")
	}
	tonnageCol, ok := pickColumn(index, "tonnage", "tons", "berat")
	if !ok {
		return nil, nil, fmt.Errorf("missing tonnage column")
	}
	bunchCol, hasBunch := pickColumn(index, "bunch_count", "bunches", "janjang")

	var parsed []HarvestRow
	var rowErrors []RowError
	for i, row := range rows[1:] {
		rowNum := i + 2

		date, err := utils.ParseSheetDate(cell(row, dateCol))
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Error: err.Error()})
			continue
		}
		division := cell(row, divisionCol)
		block := cell(row, blockCol)
		if division == "" || block == "" {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Error: "division and block are required"})
			continue
		}
		tonnage, err := utils.ParseDecimal(cell(row, tonnageCol))
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Error: err.Error()})
			continue
		}

		bunchCount := 0
		if hasBunch {
			bunches, err := utils.ParseDecimal(cell(row, bunchCol))
			if err != nil {
				rowErrors = append(rowErrors, RowError{Row: rowNum, Error: err.Error()})
				continue
			}
			bunchCount = int(bunches.IntPart())
		}

		parsed = append(parsed, HarvestRow{
			Row:          rowNum,
			HarvestDate:  date,
			DivisionName: division,
			BlockName:    block,
			Tonnage:      tonnage,
			BunchCount:   bunchCount,
		})
	}
	return parsed, rowErrors, nil
}

// ParseTransportRows converts raw sheet rows into transport candidates.
func ParseTransportRows(rows [][]string) ([]TransportRow, []RowError, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet is empty")
	}

	index := headerIndex(rows[0])
	dateCol, ok := pickColumn(index, "date", "log_date", "tanggal")
	if !ok {
		return nil, nil, fmt.Errorf("missing date column")
	}
	companyCol, ok := pickColumn(index, "company", "transporter", "transport_company")
	if !ok {
		return nil, nil, fmt.Errorf("missing company column")
	}
	ticketCol, ok := pickColumn(index, "ticket_number", "ticket", "no_tiket")
	if !ok {
		return nil, nil, fmt.Errorf("missing ticket number column")
	}
	tonnageCol, ok := pickColumn(index, "tonnage", "tons", "berat")
	if !ok {
		return nil, nil, fmt.Errorf("missing tonnage column")
	}
	plateCol, hasPlate := pickColumn(index, "vehicle_plate", "plate", "nopol")
	destCol, hasDest := pickColumn(index, "destination", "tujuan")

	var parsed []TransportRow
	var rowErrors []RowError
	for i, row := range rows[1:] {
		rowNum := i + 2

		date, err := utils.ParseSheetDate(cell(row, dateCol))
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Error: err.Error()})
			continue
		}
		company := cell(row, companyCol)
		ticket := cell(row, ticketCol)
		if company == "" || ticket == "" {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Error: "company and ticket number are required"})
			continue
		}
		tonnage, err := utils.ParseDecimal(cell(row, tonnageCol))
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: rowNum, Error: err.Error()})
			continue
		}

		r := TransportRow{
			Row:          rowNum,
			LogDate:      date,
			CompanyName:  company,
			TicketNumber: ticket,
			Tonnage:      tonnage,
		}
		if hasPlate {
			r.VehiclePlate = cell(row, plateCol)
		}
		if hasDest {
			r.Destination = cell(row, destCol)
		}
		parsed = append(parsed, r)
	}
	return parsed, rowErrors, nil
}

// harvestEqual compares a candidate against a persisted row on the
// business fields only, at display precision.
func harvestEqual(c models.HarvestRecord, e models.HarvestRecord) bool {
	return c.Tonnage.Round(models.ComparePrecision).Equal(e.Tonnage.Round(models.ComparePrecision)) &&
		c.BunchCount == e.BunchCount
}

func transportEqual(c models.TransportLog, e models.TransportLog) bool {
	return c.TransportCompanyId == e.TransportCompanyId &&
		c.VehiclePlate == e.VehiclePlate &&
		c.Destination == e.Destination &&
		c.Tonnage.Round(models.ComparePrecision).Equal(e.Tonnage.Round(models.ComparePrecision))
}

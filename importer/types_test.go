package importer

import (
	"testing"
	"time"

	"bitbucket.org/agrifocus/plantation_backend/models"
	"github.com/shopspring/decimal"
)

func TestParseHarvestRows(t *testing.T) {
	rows := [][]string{
		{"Date", "Division", "Block", "Tonnage", "Bunch Count"},
		{"2026-01-10", "Divisi Utara", "A-12", "12.5", "340"},
		{"10/01/2026", "Divisi Selatan", "B-03", "1,250.75", "900"},
	}

	parsed, rowErrors, err := ParseHarvestRows(rows)
	if err != nil {
		t.Fatalf("ParseHarvestRows: %v", err)
	}
	if len(rowErrors) != 0 {
		t.Fatalf("expected no row errors, got %v", rowErrors)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(parsed))
	}

	want := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	if !parsed[0].HarvestDate.Equal(want) {
		t.Fatalf("row 2 date = %v, want %v", parsed[0].HarvestDate, want)
	}
	if !parsed[1].HarvestDate.Equal(want) {
		t.Fatalf("row 3 date = %v, want %v (dd/mm/yyyy layout)", parsed[1].HarvestDate, want)
	}
	if !parsed[1].Tonnage.Equal(decimal.RequireFromString("1250.75")) {
		t.Fatalf("row 3 tonnage = %s, want 1250.75", parsed[1].Tonnage)
	}
	if parsed[0].BunchCount != 340 {
		t.Fatalf("row 2 bunch count = %d, want 340", parsed[0].BunchCount)
	}
}

func TestParseHarvestRowsBadRowsAreIsolated(t *testing.T) {
	rows := [][]string{
		{"date", "division", "block", "tonnage"},
		{"not-a-date", "Utara", "A-12", "10"},
		{"2026-01-10", "", "A-12", "10"},
		{"2026-01-10", "Utara", "A-12", "abc"},
		{"2026-01-10", "Utara", "A-12", "10"},
	}

	parsed, rowErrors, err := ParseHarvestRows(rows)
	if err != nil {
		t.Fatalf("ParseHarvestRows: %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("expected 1 good row, got %d", len(parsed))
	}
	if len(rowErrors) != 3 {
		t.Fatalf("expected 3 row errors, got %d: %v", len(rowErrors), rowErrors)
	}
	if rowErrors[0].Row != 2 || rowErrors[1].Row != 3 || rowErrors[2].Row != 4 {
		t.Fatalf("row numbers wrong: %v", rowErrors)
	}
	if parsed[0].Row != 5 {
		t.Fatalf("good row should be sheet row 5, got %d", parsed[0].Row)
	}
}

func TestParseHarvestRowsMissingColumn(t *testing.T) {
	rows := [][]string{
		{"date", "division", "tonnage"},
		{"2026-01-10", "Utara", "10"},
	}
	if _, _, err := ParseHarvestRows(rows); err == nil {
		t.Fatal("expected error for missing block column")
	}
}

func TestParseTransportRows(t *testing.T) {
	rows := [][]string{
		{"Date", "Transporter", "Vehicle Plate", "Destination", "Tonnage", "Ticket Number"},
		{"2026-02-01", "PT Angkut Jaya", "BM 1234 XY", "Mill A", "8.2", "TKT-001"},
	}

	parsed, rowErrors, err := ParseTransportRows(rows)
	if err != nil {
		t.Fatalf("ParseTransportRows: %v", err)
	}
	if len(rowErrors) != 0 {
		t.Fatalf("expected no row errors, got %v", rowErrors)
	}
	if len(parsed) != 1 {
		t.Fatalf("expected 1 row, got %d", len(parsed))
	}
	r := parsed[0]
	if r.CompanyName != "PT Angkut Jaya" || r.TicketNumber != "TKT-001" {
		t.Fatalf("unexpected row: %+v", r)
	}
	if r.VehiclePlate != "BM 1234 XY" || r.Destination != "Mill A" {
		t.Fatalf("optional columns not captured: %+v", r)
	}
}

func TestParseTransportRowsRequiresTicket(t *testing.T) {
	rows := [][]string{
		{"date", "company", "ticket_number", "tonnage"},
		{"2026-02-01", "PT Angkut Jaya", "", "8.2"},
	}
	parsed, rowErrors, err := ParseTransportRows(rows)
	if err != nil {
		t.Fatalf("ParseTransportRows: %v", err)
	}
	if len(parsed) != 0 || len(rowErrors) != 1 {
		t.Fatalf("expected the ticketless row to be rejected, got %d parsed %v", len(parsed), rowErrors)
	}
}

func TestHarvestEqualComparesAtDisplayPrecision(t *testing.T) {
	a := models.HarvestRecord{Tonnage: decimal.RequireFromString("10.0041"), BunchCount: 5}
	b := models.HarvestRecord{Tonnage: decimal.RequireFromString("10.00"), BunchCount: 5}
	if !harvestEqual(a, b) {
		t.Fatal("rounding noise below display precision should compare equal")
	}

	c := models.HarvestRecord{Tonnage: decimal.RequireFromString("10.01"), BunchCount: 5}
	if harvestEqual(c, b) {
		t.Fatal("a 0.01 tonnage change must not compare equal")
	}
}

func TestTransportEqual(t *testing.T) {
	base := models.TransportLog{
		TransportCompanyId: 3,
		VehiclePlate:       "BM 1234 XY",
		Destination:        "Mill A",
		Tonnage:            decimal.RequireFromString("8.20"),
	}
	same := base
	same.Tonnage = decimal.RequireFromString("8.2001")
	if !transportEqual(same, base) {
		t.Fatal("sub-precision tonnage noise should compare equal")
	}

	moved := base
	moved.Destination = "Mill B"
	if transportEqual(moved, base) {
		t.Fatal("destination change must not compare equal")
	}
}

func TestHeaderIndexNormalizesSpellings(t *testing.T) {
	index := headerIndex([]string{" Harvest Date ", "DIVISION", "", "block"})
	if i, ok := pickColumn(index, "harvest_date"); !ok || i != 0 {
		t.Fatalf("harvest_date column = %d/%v", i, ok)
	}
	if i, ok := pickColumn(index, "division"); !ok || i != 1 {
		t.Fatalf("division column = %d/%v", i, ok)
	}
	if _, ok := pickColumn(index, "tonnage"); ok {
		t.Fatal("tonnage should be absent")
	}
}

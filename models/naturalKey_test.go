package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func TestHarvestNaturalKey(t *testing.T) {
	date := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	rec := HarvestRecord{HarvestDate: date, DivisionId: 12, BlockId: 34}
	if got, want := rec.NaturalKey(), "2026-01-10|12|34"; got != want {
		t.Fatalf("NaturalKey() = %q, want %q", got, want)
	}
	if HarvestNaturalKey(date, 12, 34) != rec.NaturalKey() {
		t.Fatal("helper and method must agree")
	}
}

func TestTransportNaturalKey(t *testing.T) {
	date := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	log := TransportLog{LogDate: date, TicketNumber: "TKT-001"}
	if got, want := log.NaturalKey(), "2026-02-01|TKT-001"; got != want {
		t.Fatalf("NaturalKey() = %q, want %q", got, want)
	}
}

func TestIsDuplicateKeyError(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if !isDuplicateKeyError(fmt.Errorf("create: %w", dup)) {
		t.Fatal("wrapped 1062 should be recognized")
	}
	other := &mysql.MySQLError{Number: 1048, Message: "Column cannot be null"}
	if isDuplicateKeyError(other) {
		t.Fatal("non-1062 mysql errors are not duplicates")
	}
	if isDuplicateKeyError(errors.New("plain")) {
		t.Fatal("plain errors are not duplicates")
	}
}

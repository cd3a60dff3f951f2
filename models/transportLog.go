package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/agrifocus/plantation_backend/config"
	"bitbucket.org/agrifocus/plantation_backend/utils"
	"github.com/shopspring/decimal"
)

// TransportLog is one trucking movement. Ticket numbers are unique per day,
// so the natural key is date + ticket number.
type TransportLog struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	BusinessId         string          `gorm:"uniqueIndex:idx_transport_key;size:36;not null" json:"business_id" binding:"required"`
	LogDate            time.Time       `gorm:"uniqueIndex:idx_transport_key;type:date;not null" json:"log_date" binding:"required"`
	TicketNumber       string          `gorm:"uniqueIndex:idx_transport_key;size:50;not null" json:"ticket_number" binding:"required"`
	TransportCompanyId int             `gorm:"index;not null" json:"transport_company_id" binding:"required"`
	VehiclePlate       string          `gorm:"size:20" json:"vehicle_plate"`
	Destination        string          `gorm:"size:100" json:"destination"`
	Tonnage            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tonnage"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func TransportNaturalKey(date time.Time, ticketNumber string) string {
	return fmt.Sprintf("%s|%s", date.Format("2006-01-02"), ticketNumber)
}

func (l TransportLog) NaturalKey() string {
	return TransportNaturalKey(l.LogDate, l.TicketNumber)
}

// GetTransportLogsByNaturalKeys bulk-loads the existing rows touched by a
// run in one query over the run's date range, filtered down to the
// requested keys.
func GetTransportLogsByNaturalKeys(ctx context.Context, keys map[string]bool, dates []time.Time) (map[string]TransportLog, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	existing := make(map[string]TransportLog)
	if len(keys) == 0 || len(dates) == 0 {
		return existing, nil
	}

	var rows []TransportLog
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("business_id = ? AND log_date IN ?", businessId, utils.UniqueSlice(dates)).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		key := row.NaturalKey()
		if keys[key] {
			existing[key] = row
		}
	}
	return existing, nil
}

// UpsertTransportLog writes one classified row, falling back to an update
// when a concurrent insert beat us to the natural key.
func UpsertTransportLog(ctx context.Context, log *TransportLog, existingId int) error {
	db := config.GetDB()

	updates := map[string]interface{}{
		"transport_company_id": log.TransportCompanyId,
		"vehicle_plate":        log.VehiclePlate,
		"destination":          log.Destination,
		"tonnage":              log.Tonnage,
	}

	if existingId > 0 {
		return db.WithContext(ctx).Model(&TransportLog{}).
			Where("id = ? AND business_id = ?", existingId, log.BusinessId).
			Updates(updates).Error
	}

	err := db.WithContext(ctx).Create(log).Error
	if err != nil && isDuplicateKeyError(err) {
		return db.WithContext(ctx).Model(&TransportLog{}).
			Where("business_id = ? AND log_date = ? AND ticket_number = ?",
				log.BusinessId, log.LogDate, log.TicketNumber).
			Updates(updates).Error
	}
	return err
}

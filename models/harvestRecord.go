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

// ComparePrecision is the decimal precision used when diffing harvest
// quantities against persisted rows. Storage keeps 4dp; comparison happens
// at the 2dp shown to users, so upstream rounding noise never produces a
// false UPDATED.
const ComparePrecision = 2

// HarvestRecord is one harvest fact: what came off one block of one
// division on one day. The natural key is date + division + block.
type HarvestRecord struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BusinessId  string          `gorm:"uniqueIndex:idx_harvest_key;size:36;not null" json:"business_id" binding:"required"`
	HarvestDate time.Time       `gorm:"uniqueIndex:idx_harvest_key;type:date;not null" json:"harvest_date" binding:"required"`
	DivisionId  int             `gorm:"uniqueIndex:idx_harvest_key;not null" json:"division_id" binding:"required"`
	BlockId     int             `gorm:"uniqueIndex:idx_harvest_key;not null" json:"block_id" binding:"required"`
	Tonnage     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tonnage"`
	BunchCount  int             `gorm:"default:0" json:"bunch_count"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func HarvestNaturalKey(date time.Time, divisionId int, blockId int) string {
	return fmt.Sprintf("%s|%d|%d", date.Format("2006-01-02"), divisionId, blockId)
}

func (r HarvestRecord) NaturalKey() string {
	return HarvestNaturalKey(r.HarvestDate, r.DivisionId, r.BlockId)
}

// GetHarvestRecordsByNaturalKeys bulk-loads the existing rows for a run's
// key space in one query (dates x divisions superset, filtered down to the
// requested keys) instead of one lookup per candidate.
func GetHarvestRecordsByNaturalKeys(ctx context.Context, keys map[string]bool, dates []time.Time, divisionIds []int) (map[string]HarvestRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	existing := make(map[string]HarvestRecord)
	if len(keys) == 0 || len(dates) == 0 || len(divisionIds) == 0 {
		return existing, nil
	}

	var rows []HarvestRecord
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("business_id = ? AND harvest_date IN ? AND division_id IN ?",
			businessId, utils.UniqueSlice(dates), utils.UniqueSlice(divisionIds)).
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

// UpsertHarvestRecord writes one classified row. existingId > 0 means the
// classifier matched a persisted row and this is an update; otherwise the
// unique natural-key index backstops races, converting a duplicate insert
// into an update so the writer stays idempotent.
func UpsertHarvestRecord(ctx context.Context, rec *HarvestRecord, existingId int) error {
	db := config.GetDB()

	updates := map[string]interface{}{
		"tonnage":     rec.Tonnage,
		"bunch_count": rec.BunchCount,
	}

	if existingId > 0 {
		return db.WithContext(ctx).Model(&HarvestRecord{}).
			Where("id = ? AND business_id = ?", existingId, rec.BusinessId).
			Updates(updates).Error
	}

	err := db.WithContext(ctx).Create(rec).Error
	if err != nil && isDuplicateKeyError(err) {
		return db.WithContext(ctx).Model(&HarvestRecord{}).
			Where("business_id = ? AND harvest_date = ? AND division_id = ? AND block_id = ?",
				rec.BusinessId, rec.HarvestDate, rec.DivisionId, rec.BlockId).
			Updates(updates).Error
	}
	return err
}

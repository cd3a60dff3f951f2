package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/agrifocus/plantation_backend/config"
	"bitbucket.org/agrifocus/plantation_backend/reconcile"
	"bitbucket.org/agrifocus/plantation_backend/utils"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// IdentifierAlias remembers one human decision: this exact raw spelling
// maps to this master. Lookup is keyed on the raw string, not its
// canonical form; canonical-level matching is the resolver's job.
// At most one alias exists per (business, entity type, raw name).
// Re-confirmation with a different master is an explicit overwrite that
// keeps the prior decision in previous_master_id.
type IdentifierAlias struct {
	ID               int       `gorm:"primary_key" json:"id"`
	BusinessId       string    `gorm:"uniqueIndex:idx_alias_scope;size:36;not null" json:"business_id" binding:"required"`
	EntityType       string    `gorm:"uniqueIndex:idx_alias_scope;size:20;not null" json:"entity_type" binding:"required"`
	RawName          string    `gorm:"uniqueIndex:idx_alias_scope;size:191;not null" json:"raw_name" binding:"required"`
	MasterId         int       `gorm:"not null" json:"master_id" binding:"required"`
	PreviousMasterId int       `gorm:"default:0" json:"previous_master_id"`
	ConfirmedBy      string    `gorm:"size:100" json:"confirmed_by"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type AliasMapping struct {
	RawName  string `json:"raw_name" binding:"required"`
	MasterId int    `json:"master_id" binding:"required"`
}

type AliasSaveError struct {
	RawName string `json:"raw_name"`
	Error   string `json:"error"`
}

// AliasBatchResult reports partial success: one bad mapping must not block
// the rest, and unsaved aliases simply need re-resolution next run.
type AliasBatchResult struct {
	Saved  int              `json:"saved"`
	Errors []AliasSaveError `json:"errors,omitempty"`
}

// AliasStore is the gorm-backed alias source handed to the resolver.
type AliasStore struct{}

func (AliasStore) LookupAlias(ctx context.Context, entityType reconcile.EntityType, rawName string) (int, bool, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return 0, false, errors.New("business id is required")
	}

	var alias IdentifierAlias
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("business_id = ? AND entity_type = ? AND raw_name = ?", businessId, string(entityType), rawName).
		First(&alias).Error
	if err == gorm.ErrRecordNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return alias.MasterId, true, nil
}

func validateAliasMaster(ctx context.Context, businessId string, entityType reconcile.EntityType, masterId int) error {
	var err error
	switch entityType {
	case reconcile.EntityTypeCompany:
		err = utils.ValidateResourceId[TransportCompany](ctx, businessId, masterId)
	case reconcile.EntityTypeDivision:
		err = utils.ValidateResourceId[Division](ctx, businessId, masterId)
	case reconcile.EntityTypeBlock:
		err = utils.ValidateResourceId[Block](ctx, businessId, masterId)
	default:
		return errors.New("unknown entity type")
	}
	if err != nil {
		return errors.New("master record not found for alias")
	}
	return nil
}

// SaveAlias persists one confirmed mapping. Only this explicit path may
// overwrite an existing alias; the resolver never writes here.
func SaveAlias(ctx context.Context, entityType reconcile.EntityType, rawName string, masterId int, confirmedBy string) (*IdentifierAlias, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if len(rawName) == 0 {
		return nil, errors.New("raw name is required")
	}
	if err := validateAliasMaster(ctx, businessId, entityType, masterId); err != nil {
		return nil, err
	}

	db := config.GetDB()

	var existing IdentifierAlias
	err := db.WithContext(ctx).
		Where("business_id = ? AND entity_type = ? AND raw_name = ?", businessId, string(entityType), rawName).
		First(&existing).Error
	if err == nil {
		if existing.MasterId == masterId {
			return &existing, nil
		}
		// Explicit re-confirmation: overwrite, keep the audit trail.
		existing.PreviousMasterId = existing.MasterId
		existing.MasterId = masterId
		existing.ConfirmedBy = confirmedBy
		if err := db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	alias := IdentifierAlias{
		BusinessId:  businessId,
		EntityType:  string(entityType),
		RawName:     rawName,
		MasterId:    masterId,
		ConfirmedBy: confirmedBy,
	}
	if err := db.WithContext(ctx).Create(&alias).Error; err != nil {
		// Lost a race with a concurrent confirmation; retry as overwrite.
		if isDuplicateKeyError(err) {
			return SaveAlias(ctx, entityType, rawName, masterId, confirmedBy)
		}
		return nil, err
	}
	return &alias, nil
}

// SaveAliasBatch saves each mapping independently; partial success is
// reported, not rolled back.
func SaveAliasBatch(ctx context.Context, entityType reconcile.EntityType, mappings []AliasMapping, confirmedBy string) AliasBatchResult {
	result := AliasBatchResult{}
	for _, m := range mappings {
		if _, err := SaveAlias(ctx, entityType, m.RawName, m.MasterId, confirmedBy); err != nil {
			result.Errors = append(result.Errors, AliasSaveError{RawName: m.RawName, Error: err.Error()})
			continue
		}
		result.Saved++
	}
	return result
}

func isDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/agrifocus/plantation_backend/config"
	"bitbucket.org/agrifocus/plantation_backend/reconcile"
	"bitbucket.org/agrifocus/plantation_backend/utils"
	"github.com/google/uuid"
)

const (
	ImportTypeHarvest   = "HARVEST"
	ImportTypeTransport = "TRANSPORT"
)

// ImportRun is the persisted header of one import execution, kept so a run
// can be inspected after the request that started it has returned.
type ImportRun struct {
	ID             int        `gorm:"primary_key" json:"id"`
	RunId          string     `gorm:"uniqueIndex;size:36;not null" json:"run_id"`
	BusinessId     string     `gorm:"index;size:36;not null" json:"business_id" binding:"required"`
	ImportType     string     `gorm:"size:20;not null" json:"import_type"`
	Status         string     `gorm:"size:20;not null" json:"status"`
	NewCount       int        `gorm:"default:0" json:"new_count"`
	UpdatedCount   int        `gorm:"default:0" json:"updated_count"`
	DuplicateCount int        `gorm:"default:0" json:"duplicate_count"`
	InvalidCount   int        `gorm:"default:0" json:"invalid_count"`
	FailedCount    int        `gorm:"default:0" json:"failed_count"`
	FailReason     string     `gorm:"size:255" json:"fail_reason"`
	FailuresJson   string     `gorm:"type:text" json:"failures_json"`
	UnresolvedJson string     `gorm:"type:text" json:"unresolved_json"`
	SourceFileUrl  string     `gorm:"size:500" json:"source_file_url"`
	CorrelationId  string     `gorm:"size:36" json:"correlation_id"`
	StartedAt      time.Time  `gorm:"autoCreateTime" json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
}

// CreateImportRun opens a run header in the engine's initial state.
func CreateImportRun(ctx context.Context, importType string, sourceFileUrl string) (*ImportRun, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	run := ImportRun{
		RunId:         uuid.NewString(),
		BusinessId:    businessId,
		ImportType:    importType,
		Status:        string(reconcile.RunStateIdle),
		SourceFileUrl: sourceFileUrl,
		CorrelationId: correlationId,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateImportRunStatus records a state transition mid-run so pollers see
// progress even before the run finishes.
func UpdateImportRunStatus(ctx context.Context, runId string, status reconcile.RunState) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&ImportRun{}).
		Where("run_id = ?", runId).
		Update("status", string(status)).Error
}

// FinishImportRun snapshots the engine's final run state onto the header.
func FinishImportRun(ctx context.Context, runId string, state *reconcile.Run) error {
	failuresJson, _ := utils.MarshalToJSON(state.Failures)
	unresolvedJson, _ := utils.MarshalToJSON(state.Unresolved)
	now := time.Now()

	db := config.GetDB()
	return db.WithContext(ctx).Model(&ImportRun{}).
		Where("run_id = ?", runId).
		Updates(map[string]interface{}{
			"status":          string(state.State),
			"new_count":       state.NewCount,
			"updated_count":   state.UpdatedCount,
			"duplicate_count": state.DuplicateCount,
			"invalid_count":   state.InvalidCount,
			"failed_count":    state.FailedCount,
			"fail_reason":     state.FailReason,
			"failures_json":   failuresJson,
			"unresolved_json": unresolvedJson,
			"finished_at":     &now,
		}).Error
}

func GetImportRun(ctx context.Context, runId string) (*ImportRun, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	var run ImportRun
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("business_id = ? AND run_id = ?", businessId, runId).
		First(&run).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &run, nil
}

// ListImportRuns returns recent runs for the business, newest first.
func ListImportRuns(ctx context.Context, limit int) ([]*ImportRun, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var runs []*ImportRun
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

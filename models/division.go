package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/agrifocus/plantation_backend/config"
	"bitbucket.org/agrifocus/plantation_backend/reconcile"
	"bitbucket.org/agrifocus/plantation_backend/utils"
)

// Division is an estate subdivision; harvest rows are keyed by
// date + division + block.
type Division struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id" binding:"required"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDivision struct {
	Name string `json:"name" binding:"required"`
}

func (input *NewDivision) validate(ctx context.Context, businessId string, id int) error {
	if len(input.Name) == 0 {
		return errors.New("division name is required")
	}
	return utils.ValidateUnique[Division](ctx, businessId, "name", input.Name, id)
}

func CreateDivision(ctx context.Context, input *NewDivision) (*Division, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	division := Division{
		BusinessId: businessId,
		Name:       input.Name,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&division).Error; err != nil {
		return nil, err
	}

	_ = utils.RemoveRedisList[Division](businessId)

	return &division, nil
}

func ListAllDivisions(ctx context.Context) ([]*Division, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if cached, err := utils.RetrieveRedisList[Division](businessId); err == nil && cached != nil {
		return cached, nil
	}

	var divisions []*Division
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("business_id = ? AND is_active = 1", businessId).
		Order("id").
		Find(&divisions).Error; err != nil {
		return nil, err
	}

	_ = utils.StoreRedisList[Division](divisions, businessId)

	return divisions, nil
}

func DivisionMasters(ctx context.Context) ([]reconcile.Master, error) {
	divisions, err := ListAllDivisions(ctx)
	if err != nil {
		return nil, err
	}
	masters := make([]reconcile.Master, 0, len(divisions))
	for _, d := range divisions {
		masters = append(masters, reconcile.Master{ID: d.ID, Name: d.Name})
	}
	return masters, nil
}

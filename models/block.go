package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/agrifocus/plantation_backend/config"
	"bitbucket.org/agrifocus/plantation_backend/reconcile"
	"bitbucket.org/agrifocus/plantation_backend/utils"
)

// Block is the smallest harvestable unit, belonging to a division.
type Block struct {
	ID           int       `gorm:"primary_key" json:"id"`
	BusinessId   string    `gorm:"index;not null" json:"business_id" binding:"required"`
	DivisionId   int       `gorm:"index;not null" json:"division_id" binding:"required"`
	Name         string    `gorm:"size:100;not null" json:"name" binding:"required"`
	PlantedAreaH string    `gorm:"size:20" json:"planted_area_h"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBlock struct {
	DivisionId   int    `json:"division_id" binding:"required"`
	Name         string `json:"name" binding:"required"`
	PlantedAreaH string `json:"planted_area_h"`
}

func (input *NewBlock) validate(ctx context.Context, businessId string, id int) error {
	if len(input.Name) == 0 {
		return errors.New("block name is required")
	}
	if err := utils.ValidateResourceId[Division](ctx, businessId, input.DivisionId); err != nil {
		return errors.New("division not found")
	}
	return utils.ValidateUnique[Block](ctx, businessId, "name", input.Name, id)
}

func CreateBlock(ctx context.Context, input *NewBlock) (*Block, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	block := Block{
		BusinessId:   businessId,
		DivisionId:   input.DivisionId,
		Name:         input.Name,
		PlantedAreaH: input.PlantedAreaH,
		IsActive:     utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&block).Error; err != nil {
		return nil, err
	}

	_ = utils.RemoveRedisList[Block](businessId)

	return &block, nil
}

func ListAllBlocks(ctx context.Context) ([]*Block, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if cached, err := utils.RetrieveRedisList[Block](businessId); err == nil && cached != nil {
		return cached, nil
	}

	var blocks []*Block
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("business_id = ? AND is_active = 1", businessId).
		Order("id").
		Find(&blocks).Error; err != nil {
		return nil, err
	}

	_ = utils.StoreRedisList[Block](blocks, businessId)

	return blocks, nil
}

func BlockMasters(ctx context.Context) ([]reconcile.Master, error) {
	blocks, err := ListAllBlocks(ctx)
	if err != nil {
		return nil, err
	}
	masters := make([]reconcile.Master, 0, len(blocks))
	for _, b := range blocks {
		masters = append(masters, reconcile.Master{ID: b.ID, Name: b.Name})
	}
	return masters, nil
}

package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/agrifocus/plantation_backend/config"
	"bitbucket.org/agrifocus/plantation_backend/reconcile"
	"bitbucket.org/agrifocus/plantation_backend/utils"
)

// TransportCompany is the master record fuzzy company names resolve to.
// Created only through explicit confirmation or the auto-create policy,
// never implicitly from a fuzzy match.
type TransportCompany struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id" binding:"required"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone      string    `gorm:"size:20" json:"phone"`
	Notes      string    `gorm:"type:text" json:"notes"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTransportCompany struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

func (input *NewTransportCompany) validate(ctx context.Context, businessId string, id int) error {
	if len(input.Name) == 0 {
		return errors.New("transport company name is required")
	}
	return utils.ValidateUnique[TransportCompany](ctx, businessId, "name", input.Name, id)
}

func CreateTransportCompany(ctx context.Context, input *NewTransportCompany) (*TransportCompany, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	company := TransportCompany{
		BusinessId: businessId,
		Name:       input.Name,
		Phone:      input.Phone,
		Notes:      input.Notes,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&company).Error; err != nil {
		return nil, err
	}

	// New master invalidates the cached list used for registry prefetch.
	_ = utils.RemoveRedisList[TransportCompany](businessId)

	return &company, nil
}

func GetTransportCompany(ctx context.Context, id int) (*TransportCompany, error) {
	var company TransportCompany
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", id).First(&company).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &company, nil
}

// ListAllTransportCompanies returns every active company for the business,
// redis-cached between imports.
func ListAllTransportCompanies(ctx context.Context) ([]*TransportCompany, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if cached, err := utils.RetrieveRedisList[TransportCompany](businessId); err == nil && cached != nil {
		return cached, nil
	}

	var companies []*TransportCompany
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("business_id = ? AND is_active = 1", businessId).
		Order("id").
		Find(&companies).Error; err != nil {
		return nil, err
	}

	_ = utils.StoreRedisList[TransportCompany](companies, businessId)

	return companies, nil
}

// TransportCompanyMasters adapts the company list for the resolver registry.
func TransportCompanyMasters(ctx context.Context) ([]reconcile.Master, error) {
	companies, err := ListAllTransportCompanies(ctx)
	if err != nil {
		return nil, err
	}
	masters := make([]reconcile.Master, 0, len(companies))
	for _, c := range companies {
		masters = append(masters, reconcile.Master{ID: c.ID, Name: c.Name})
	}
	return masters, nil
}

package records

import (
	"context"
	"strings"

	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/store"
	"github.com/google/uuid"
)

type ProvinceService struct {
	store store.Store
	now   clock
}

func NewProvinceService(s store.Store) *ProvinceService {
	return &ProvinceService{store: s, now: utcNow}
}

// List returns provinces by display order, then name.
func (ps *ProvinceService) List(ctx context.Context, activeOnly bool) ([]models.Province, error) {
	filters := []store.Filter{}
	if activeOnly {
		filters = append(filters, store.Eq("is_active", true))
	}

	rows := []models.ProvinceRow{}
	_, err := ps.store.Select(ctx, models.TableProvinces, store.Query{
		Filters: filters,
		Orders:  []store.Order{store.Asc("display_order"), store.Asc("name")},
	}, &rows)
	if err != nil {
		return nil, err
	}

	provinces := make([]models.Province, 0, len(rows))
	for _, row := range rows {
		provinces = append(provinces, *provinceFromRow(row))
	}
	return provinces, nil
}

// Get returns nil when no province has id.
func (ps *ProvinceService) Get(ctx context.Context, id string) (*models.Province, error) {
	return ps.findBy(ctx, "id", id)
}

// GetByName returns nil when no province is named name.
func (ps *ProvinceService) GetByName(ctx context.Context, name string) (*models.Province, error) {
	return ps.findBy(ctx, "name", strings.TrimSpace(name))
}

func (ps *ProvinceService) Create(ctx context.Context, dto models.CreateProvinceDto) (*models.Province, error) {
	if err := models.Validate(dto); err != nil {
		return nil, err
	}

	now := ps.now()
	row := &models.ProvinceRow{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(dto.Name),
		Code:       models.NullableString(strings.TrimSpace(dto.Code)),
		IsActive:   true,
		Timestamps: models.Timestamps{CreatedAt: now, UpdatedAt: now},
	}

	if dto.DisplayOrder != nil {
		row.DisplayOrder = *dto.DisplayOrder
	}

	if dto.IsActive != nil {
		row.IsActive = *dto.IsActive
	}

	created := models.ProvinceRow{}
	err := ps.store.Insert(ctx, models.TableProvinces, row, &created)
	if err != nil {
		return nil, err
	}
	return provinceFromRow(created), nil
}

func (ps *ProvinceService) Update(ctx context.Context, id string, dto models.UpdateProvinceDto) (*models.Province, error) {
	if err := models.Validate(dto); err != nil {
		return nil, err
	}

	patch := map[string]interface{}{"updated_at": ps.now()}
	if dto.Name != nil {
		patch["name"] = strings.TrimSpace(*dto.Name)
	}
	if dto.Code != nil {
		patch["code"] = models.NullableString(strings.TrimSpace(*dto.Code))
	}
	if dto.DisplayOrder != nil {
		patch["display_order"] = *dto.DisplayOrder
	}
	if dto.IsActive != nil {
		patch["is_active"] = *dto.IsActive
	}

	updated := models.ProvinceRow{}
	err := ps.store.Update(ctx, models.TableProvinces, []store.Filter{store.Eq("id", id)}, patch, &updated)
	if err != nil {
		return nil, err
	}
	return provinceFromRow(updated), nil
}

func (ps *ProvinceService) Delete(ctx context.Context, id string) error {
	return ps.store.Delete(ctx, models.TableProvinces, []store.Filter{store.Eq("id", id)})
}

func (ps *ProvinceService) findBy(ctx context.Context, column string, value string) (*models.Province, error) {
	row := models.ProvinceRow{}
	err := ps.store.SelectOne(ctx, models.TableProvinces, []store.Filter{store.Eq(column, value)}, &row)
	if store.IsNotFound(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	return provinceFromRow(row), nil
}

func provinceFromRow(row models.ProvinceRow) *models.Province {
	return &models.Province{
		ID:           row.ID,
		Name:         row.Name,
		Code:         models.StringValue(row.Code),
		DisplayOrder: row.DisplayOrder,
		IsActive:     row.IsActive,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

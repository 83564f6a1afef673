package records

import (
	"context"
	"strings"

	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/store"
	"github.com/google/uuid"
)

type HelpService struct {
	store store.Store
	phone PhoneFormatter
	now   clock
}

// Page is one page of help records, newest first.
type Page struct {
	Records  []models.HelpRecord `json:"records"`
	HasMore  bool                `json:"hasMore"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"pageSize"`
}

func NewHelpService(s store.Store, phone PhoneFormatter) *HelpService {
	return &HelpService{store: s, phone: phone, now: utcNow}
}

func (hs *HelpService) Create(ctx context.Context, dto models.CreateHelpRecordDto) (*models.HelpRecord, error) {
	if err := models.Validate(dto); err != nil {
		return nil, err
	}

	now := hs.now()
	row := &models.HelpRecordRow{
		ID:             uuid.NewString(),
		IsForSelf:      dto.IsForSelf,
		LocationName:   strings.TrimSpace(dto.LocationName),
		AdultCount:     dto.AdultCount,
		ChildCount:     dto.ChildCount,
		PhoneNumber:    hs.phone.Normalize(dto.PhoneNumber),
		EssentialItems: dto.EssentialItems,
		Latitude:       dto.Latitude,
		Longitude:      dto.Longitude,
		Address:        models.NullableString(strings.TrimSpace(dto.Address)),
		MapLink:        models.NullableString(strings.TrimSpace(dto.MapLink)),
		ProvinceID:     models.NullableString(dto.ProvinceID),
		Timestamps:     models.Timestamps{CreatedAt: now, UpdatedAt: now},
	}

	created := models.HelpRecordRow{}
	err := hs.store.Insert(ctx, models.TableHelpRecords, row, &created)
	if err != nil {
		return nil, err
	}

	logg.Debugf("created help record %v", created.ID)
	return helpRecordFromRow(created), nil
}

// Get returns nil when no help record has id.
func (hs *HelpService) Get(ctx context.Context, id string) (*models.HelpRecord, error) {
	row := models.HelpRecordRow{}
	err := hs.store.SelectOne(ctx, models.TableHelpRecords, []store.Filter{store.Eq("id", id)}, &row)
	if store.IsNotFound(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	return helpRecordFromRow(row), nil
}

func (hs *HelpService) List(ctx context.Context) ([]models.HelpRecord, error) {
	return hs.list(ctx, nil)
}

// ListByPhone returns the help records registered with phone, which is
// normalized before the lookup.
func (hs *HelpService) ListByPhone(ctx context.Context, phone string) ([]models.HelpRecord, error) {
	return hs.list(ctx, []store.Filter{store.Eq("phone_number", hs.phone.Normalize(phone))})
}

func (hs *HelpService) ListByProvince(ctx context.Context, provinceID string) ([]models.HelpRecord, error) {
	return hs.list(ctx, []store.Filter{store.Eq("province_id", provinceID)})
}

// ListPage returns page (zero based) of size records, optionally scoped to a
// province. HasMore is derived from the store's exact count, so an exactly full
// last page reports no more pages.
func (hs *HelpService) ListPage(ctx context.Context, page int, size int, provinceID string) (*Page, error) {
	if page < 0 {
		return nil, models.NewValidationError("'page' must be greater than or equal to 0")
	}
	size = pageSize(size)

	filters := []store.Filter{}
	if provinceID != "" {
		filters = append(filters, store.Eq("province_id", provinceID))
	}

	from := page * size
	rows := []models.HelpRecordRow{}
	total, err := hs.store.Select(ctx, models.TableHelpRecords, store.Query{
		Filters: filters,
		Orders:  []store.Order{store.Desc("created_at")},
		Range:   &store.Range{From: from, To: from + size - 1},
		Count:   true,
	}, &rows)
	if err != nil {
		return nil, err
	}

	return &Page{
		Records:  helpRecordsFromRows(rows),
		HasMore:  int64((page+1)*size) < total,
		Total:    total,
		Page:     page,
		PageSize: size,
	}, nil
}

func (hs *HelpService) Update(ctx context.Context, id string, dto models.UpdateHelpRecordDto) (*models.HelpRecord, error) {
	if err := models.Validate(dto); err != nil {
		return nil, err
	}

	patch := map[string]interface{}{"updated_at": hs.now()}
	if dto.IsForSelf != nil {
		patch["is_for_self"] = *dto.IsForSelf
	}
	if dto.LocationName != nil {
		patch["location_name"] = strings.TrimSpace(*dto.LocationName)
	}
	if dto.AdultCount != nil {
		patch["adult_count"] = *dto.AdultCount
	}
	if dto.ChildCount != nil {
		patch["child_count"] = *dto.ChildCount
	}
	if dto.PhoneNumber != nil {
		patch["phone_number"] = hs.phone.Normalize(*dto.PhoneNumber)
	}
	if dto.EssentialItems != nil {
		patch["essential_items"] = dto.EssentialItems
	}
	if dto.Latitude != nil {
		patch["latitude"] = *dto.Latitude
	}
	if dto.Longitude != nil {
		patch["longitude"] = *dto.Longitude
	}
	if dto.Address != nil {
		patch["address"] = models.NullableString(strings.TrimSpace(*dto.Address))
	}
	if dto.MapLink != nil {
		patch["map_link"] = models.NullableString(strings.TrimSpace(*dto.MapLink))
	}
	if dto.ProvinceID != nil {
		// "" detaches the record from its province
		patch["province_id"] = models.NullableString(*dto.ProvinceID)
	}

	updated := models.HelpRecordRow{}
	err := hs.store.Update(ctx, models.TableHelpRecords, []store.Filter{store.Eq("id", id)}, patch, &updated)
	if err != nil {
		return nil, err
	}
	return helpRecordFromRow(updated), nil
}

func (hs *HelpService) Delete(ctx context.Context, id string) error {
	return hs.store.Delete(ctx, models.TableHelpRecords, []store.Filter{store.Eq("id", id)})
}

func (hs *HelpService) list(ctx context.Context, filters []store.Filter) ([]models.HelpRecord, error) {
	rows := []models.HelpRecordRow{}
	_, err := hs.store.Select(ctx, models.TableHelpRecords, store.Query{
		Filters: filters,
		Orders:  []store.Order{store.Desc("created_at")},
	}, &rows)
	if err != nil {
		return nil, err
	}
	return helpRecordsFromRows(rows), nil
}

func pageSize(size int) int {
	switch {
	case size <= 0:
		return models.DEFAULT_PAGE_SIZE
	case size > models.MAX_PAGE_SIZE:
		return models.MAX_PAGE_SIZE
	}
	return size
}

func helpRecordFromRow(row models.HelpRecordRow) *models.HelpRecord {
	return &models.HelpRecord{
		ID:             row.ID,
		IsForSelf:      row.IsForSelf,
		LocationName:   row.LocationName,
		AdultCount:     row.AdultCount,
		ChildCount:     row.ChildCount,
		PhoneNumber:    row.PhoneNumber,
		EssentialItems: row.EssentialItems,
		Latitude:       row.Latitude,
		Longitude:      row.Longitude,
		Address:        models.StringValue(row.Address),
		MapLink:        models.StringValue(row.MapLink),
		ProvinceID:     models.StringValue(row.ProvinceID),
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func helpRecordsFromRows(rows []models.HelpRecordRow) []models.HelpRecord {
	records := make([]models.HelpRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, *helpRecordFromRow(row))
	}
	return records
}

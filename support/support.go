// Package support tracks which team supports which help record, and how far
// along that support is.
//
// A (help record, team) pair moves along a fixed cycle:
//
//	none -> pending -> active -> completed -> pending -> ...
//
// none is never stored, it is the absence of a row. At most one row exists per
// pair; the store's unique constraint on the pair settles concurrent creation.
package support

import (
	"context"
	"time"

	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/records"
	"github.com/Daskott/relief/server/logger"
	"github.com/Daskott/relief/store"
	"github.com/google/uuid"
)

var logg = logger.NewLogger()

type Manager struct {
	store store.Store
	phone records.PhoneFormatter
	now   func() time.Time
}

func NewManager(s store.Store, phone records.PhoneFormatter) *Manager {
	return &Manager{
		store: s,
		phone: phone,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Status returns the pair's current status, NONE_SUPPORT when no row exists.
func (m *Manager) Status(ctx context.Context, helpRecordID string, teamID string) (models.SupportStatus, error) {
	support, err := m.Get(ctx, helpRecordID, teamID)
	if err != nil {
		return "", err
	}

	if support == nil {
		return models.NONE_SUPPORT, nil
	}
	return support.Status, nil
}

// Get returns nil when the pair has no support row.
func (m *Manager) Get(ctx context.Context, helpRecordID string, teamID string) (*models.HelpSupport, error) {
	row := models.HelpSupportRow{}
	err := m.store.SelectOne(ctx, models.TableHelpSupports, m.pair(helpRecordID, teamID), &row)
	if store.IsNotFound(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	return supportFromRow(row), nil
}

// Advance moves the pair one step along the cycle with a single store write:
// an insert when no row exists, an update otherwise.
func (m *Manager) Advance(ctx context.Context, helpRecordID string, teamID string) (*models.HelpSupport, error) {
	current, err := m.Get(ctx, helpRecordID, teamID)
	if err != nil {
		return nil, err
	}

	if current == nil {
		return m.Create(ctx, models.CreateHelpSupportDto{
			HelpRecordID: helpRecordID,
			TeamID:       teamID,
			Status:       models.PENDING_SUPPORT,
		})
	}

	next := current.Status.Next()
	logg.Debugf("support %v/%v: %v -> %v", helpRecordID, current.TeamID, current.Status, next)

	return m.Update(ctx, helpRecordID, teamID, models.UpdateHelpSupportDto{Status: &next})
}

// Create inserts a support row, pending unless dto says otherwise. If the pair
// already has a row, e.g. a concurrent caller created it first, the insert
// conflicts and the existing row is returned instead.
func (m *Manager) Create(ctx context.Context, dto models.CreateHelpSupportDto) (*models.HelpSupport, error) {
	if err := models.Validate(dto); err != nil {
		return nil, err
	}

	status := dto.Status
	if status == "" {
		status = models.PENDING_SUPPORT
	}

	now := m.now()
	row := &models.HelpSupportRow{
		ID:           uuid.NewString(),
		HelpRecordID: dto.HelpRecordID,
		TeamID:       m.phone.Normalize(dto.TeamID),
		Status:       status,
		Notes:        models.NullableString(dto.Notes),
		Timestamps:   models.Timestamps{CreatedAt: now, UpdatedAt: now},
	}

	created := models.HelpSupportRow{}
	err := m.store.Insert(ctx, models.TableHelpSupports, row, &created)
	if err == nil {
		return supportFromRow(created), nil
	}

	if !store.IsConflict(err) {
		return nil, err
	}

	logg.Debugf("support %v/%v already exists, returning it", row.HelpRecordID, row.TeamID)

	existing, err := m.Get(ctx, row.HelpRecordID, row.TeamID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		// the conflicting row was deleted in between
		return nil, store.NotFoundError(models.TableHelpSupports)
	}
	return existing, nil
}

func (m *Manager) Update(ctx context.Context, helpRecordID string, teamID string, dto models.UpdateHelpSupportDto) (*models.HelpSupport, error) {
	if err := models.Validate(dto); err != nil {
		return nil, err
	}

	patch := map[string]interface{}{"updated_at": m.now()}
	if dto.Status != nil {
		patch["status"] = *dto.Status
	}
	if dto.Notes != nil {
		patch["notes"] = models.NullableString(*dto.Notes)
	}

	updated := models.HelpSupportRow{}
	err := m.store.Update(ctx, models.TableHelpSupports, m.pair(helpRecordID, teamID), patch, &updated)
	if err != nil {
		return nil, err
	}
	return supportFromRow(updated), nil
}

// Upsert updates the pair's row when it exists and creates it otherwise.
func (m *Manager) Upsert(ctx context.Context, dto models.CreateHelpSupportDto) (*models.HelpSupport, error) {
	existing, err := m.Get(ctx, dto.HelpRecordID, dto.TeamID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return m.Create(ctx, dto)
	}

	update := models.UpdateHelpSupportDto{}
	if dto.Status != "" {
		update.Status = &dto.Status
	}
	if dto.Notes != "" {
		update.Notes = &dto.Notes
	}
	return m.Update(ctx, dto.HelpRecordID, dto.TeamID, update)
}

func (m *Manager) Delete(ctx context.Context, helpRecordID string, teamID string) error {
	return m.store.Delete(ctx, models.TableHelpSupports, m.pair(helpRecordID, teamID))
}

func (m *Manager) ListByHelpRecord(ctx context.Context, helpRecordID string) ([]models.HelpSupport, error) {
	return m.list(ctx, store.Eq("help_record_id", helpRecordID))
}

func (m *Manager) ListByTeam(ctx context.Context, teamID string) ([]models.HelpSupport, error) {
	return m.list(ctx, store.Eq("team_id", m.phone.Normalize(teamID)))
}

func (m *Manager) list(ctx context.Context, filter store.Filter) ([]models.HelpSupport, error) {
	rows := []models.HelpSupportRow{}
	_, err := m.store.Select(ctx, models.TableHelpSupports, store.Query{
		Filters: []store.Filter{filter},
		Orders:  []store.Order{store.Desc("created_at")},
	}, &rows)
	if err != nil {
		return nil, err
	}

	supports := make([]models.HelpSupport, 0, len(rows))
	for _, row := range rows {
		supports = append(supports, *supportFromRow(row))
	}
	return supports, nil
}

func (m *Manager) pair(helpRecordID string, teamID string) []store.Filter {
	return []store.Filter{
		store.Eq("help_record_id", helpRecordID),
		store.Eq("team_id", m.phone.Normalize(teamID)),
	}
}

func supportFromRow(row models.HelpSupportRow) *models.HelpSupport {
	return &models.HelpSupport{
		ID:           row.ID,
		HelpRecordID: row.HelpRecordID,
		TeamID:       row.TeamID,
		Status:       row.Status,
		Notes:        models.StringValue(row.Notes),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

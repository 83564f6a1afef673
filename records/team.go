package records

import (
	"context"
	"strings"

	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/store"
)

type TeamService struct {
	store store.Store
	phone PhoneFormatter
	now   clock
}

func NewTeamService(s store.Store, phone PhoneFormatter) *TeamService {
	return &TeamService{store: s, phone: phone, now: utcNow}
}

// Register creates a team keyed by its normalized phone number. If a team with
// that number already exists the insert conflicts, and the existing team is
// updated with dto instead.
func (ts *TeamService) Register(ctx context.Context, dto models.CreateTeamDto) (*models.Team, error) {
	if err := models.Validate(dto); err != nil {
		return nil, err
	}

	now := ts.now()
	row := &models.TeamRow{
		PhoneNumber:    ts.phone.Normalize(dto.PhoneNumber),
		TeamLeaderName: strings.TrimSpace(dto.TeamLeaderName),
		Email:          strings.TrimSpace(dto.Email),
		MemberCount:    dto.MemberCount,
		EssentialItems: dto.EssentialItems,
		Timestamps:     models.Timestamps{CreatedAt: now, UpdatedAt: now},
	}

	created := models.TeamRow{}
	err := ts.store.Insert(ctx, models.TableTeams, row, &created)
	if err == nil {
		return teamFromRow(created), nil
	}

	if !store.IsConflict(err) {
		return nil, err
	}

	logg.Debugf("team %v already registered, updating it", row.PhoneNumber)

	updated := models.TeamRow{}
	err = ts.store.Update(ctx, models.TableTeams,
		[]store.Filter{store.Eq("phone_number", row.PhoneNumber)},
		map[string]interface{}{
			"team_leader_name": row.TeamLeaderName,
			"email":            row.Email,
			"member_count":     row.MemberCount,
			"essential_items":  row.EssentialItems,
			"updated_at":       now,
		},
		&updated,
	)
	if err != nil {
		return nil, err
	}
	return teamFromRow(updated), nil
}

// Get returns nil when no team is registered with phone.
func (ts *TeamService) Get(ctx context.Context, phone string) (*models.Team, error) {
	row := models.TeamRow{}
	err := ts.store.SelectOne(ctx, models.TableTeams, ts.key(phone), &row)
	if store.IsNotFound(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	return teamFromRow(row), nil
}

func (ts *TeamService) Update(ctx context.Context, phone string, dto models.UpdateTeamDto) (*models.Team, error) {
	if err := models.Validate(dto); err != nil {
		return nil, err
	}

	patch := map[string]interface{}{"updated_at": ts.now()}
	if dto.TeamLeaderName != nil {
		patch["team_leader_name"] = strings.TrimSpace(*dto.TeamLeaderName)
	}
	if dto.Email != nil {
		patch["email"] = strings.TrimSpace(*dto.Email)
	}
	if dto.MemberCount != nil {
		patch["member_count"] = *dto.MemberCount
	}
	if dto.EssentialItems != nil {
		patch["essential_items"] = dto.EssentialItems
	}

	updated := models.TeamRow{}
	err := ts.store.Update(ctx, models.TableTeams, ts.key(phone), patch, &updated)
	if err != nil {
		return nil, err
	}
	return teamFromRow(updated), nil
}

func (ts *TeamService) Delete(ctx context.Context, phone string) error {
	return ts.store.Delete(ctx, models.TableTeams, ts.key(phone))
}

func (ts *TeamService) List(ctx context.Context) ([]models.Team, error) {
	rows := []models.TeamRow{}
	_, err := ts.store.Select(ctx, models.TableTeams, store.Query{
		Orders: []store.Order{store.Desc("created_at")},
	}, &rows)
	if err != nil {
		return nil, err
	}

	teams := make([]models.Team, 0, len(rows))
	for _, row := range rows {
		teams = append(teams, *teamFromRow(row))
	}
	return teams, nil
}

func (ts *TeamService) key(phone string) []store.Filter {
	return []store.Filter{store.Eq("phone_number", ts.phone.Normalize(phone))}
}

func teamFromRow(row models.TeamRow) *models.Team {
	return &models.Team{
		ID:             row.PhoneNumber,
		PhoneNumber:    row.PhoneNumber,
		TeamLeaderName: row.TeamLeaderName,
		Email:          row.Email,
		MemberCount:    row.MemberCount,
		EssentialItems: row.EssentialItems,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

package server

import (
	"encoding/json"
	"net/http"

	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/records"
	"github.com/Daskott/relief/server/auth/key"
	"github.com/Daskott/relief/server/metrics"
	"github.com/Daskott/relief/session"
	"github.com/gorilla/mux"
)

type phoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type verifyRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type meResponse struct {
	User *models.User `json:"user"`
	Team *models.Team `json:"team,omitempty"`
}

type supportResponse struct {
	Status  models.SupportStatus     `json:"status"`
	Info    models.SupportStatusInfo `json:"info"`
	Support *models.HelpSupport      `json:"support,omitempty"`
}

func health(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")
	writeData(rw, map[string]string{"status": "ok"}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Auth
// --------------------------------------------------------------------------------//

func (a *App) jwks(rw http.ResponseWriter, r *http.Request) {
	jwk, err := a.keyPair.JWK()
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	rw.Header().Add("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(key.ExportJWKAsJWKS(jwk))
}

func (a *App) sendOTP(rw http.ResponseWriter, r *http.Request) {
	data := phoneRequest{}
	if !decodeBody(rw, r, &data) {
		return
	}

	if err := records.ValidatePhone(data.PhoneNumber); err != nil {
		writeErrorResponse(rw, err)
		return
	}

	phone := a.phone.Normalize(data.PhoneNumber)
	if !a.otpLimiter.allow(phone) {
		writeResponse(rw, ResponsePayload{Errors: []string{"too many verification requests, try again later"}}, http.StatusTooManyRequests)
		return
	}

	err := a.otp.RequestCode(r.Context(), phone)
	metrics.RecordOTP("send", err)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func (a *App) verifyOTP(rw http.ResponseWriter, r *http.Request) {
	data := verifyRequest{}
	if !decodeBody(rw, r, &data) {
		return
	}

	if err := records.ValidatePhone(data.PhoneNumber); err != nil {
		writeErrorResponse(rw, err)
		return
	}

	if data.Code == "" {
		writeErrorResponse(rw, models.NewValidationError("'code' is required"))
		return
	}

	phone := a.phone.Normalize(data.PhoneNumber)
	if !a.otpLimiter.allow(verifyLimiterKey(phone)) {
		writeResponse(rw, ResponsePayload{Errors: []string{"too many verification attempts, try again later"}}, http.StatusTooManyRequests)
		return
	}

	s, err := a.otp.VerifyCode(r.Context(), phone, data.Code)
	metrics.RecordOTP("verify", err)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, s, http.StatusOK)
}

func (a *App) refreshSession(rw http.ResponseWriter, r *http.Request) {
	data := refreshRequest{}
	if !decodeBody(rw, r, &data) {
		return
	}

	s, err := a.otp.Refresh(r.Context(), data.RefreshToken)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, s, http.StatusOK)
}

func (a *App) me(rw http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	resp := meResponse{User: session.UserFromProvider(*identity.User, identity.Phone)}

	if identity.Phone != "" {
		team, err := a.records.Teams.Get(r.Context(), identity.Phone)
		if err != nil {
			writeErrorResponse(rw, err)
			return
		}
		resp.Team = team
	}

	writeData(rw, resp, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Provinces
// --------------------------------------------------------------------------------//

func (a *App) listProvinces(rw http.ResponseWriter, r *http.Request) {
	provinces, err := a.records.Provinces.List(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, provinces, http.StatusOK)
}

func (a *App) createProvince(rw http.ResponseWriter, r *http.Request) {
	data := models.CreateProvinceDto{}
	if !decodeBody(rw, r, &data) {
		return
	}

	province, err := a.records.Provinces.Create(r.Context(), data)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, province, http.StatusCreated)
}

func (a *App) getProvince(rw http.ResponseWriter, r *http.Request) {
	province, err := a.records.Provinces.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	if province == nil {
		writeNotFound(rw, "province")
		return
	}

	writeData(rw, province, http.StatusOK)
}

func (a *App) updateProvince(rw http.ResponseWriter, r *http.Request) {
	data := models.UpdateProvinceDto{}
	if !decodeBody(rw, r, &data) {
		return
	}

	province, err := a.records.Provinces.Update(r.Context(), mux.Vars(r)["id"], data)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, province, http.StatusOK)
}

func (a *App) deleteProvince(rw http.ResponseWriter, r *http.Request) {
	err := a.records.Provinces.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Help records
// --------------------------------------------------------------------------------//

// listHelpRecords returns every record of ?phone_number, or else one page of
// records, optionally in ?province_id.
func (a *App) listHelpRecords(rw http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if phone := query.Get("phone_number"); phone != "" {
		helpRecords, err := a.records.HelpRecords.ListByPhone(r.Context(), phone)
		if err != nil {
			writeErrorResponse(rw, err)
			return
		}

		writeData(rw, helpRecords, http.StatusOK)
		return
	}

	page, err := intQueryParam(r, "page", 0)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	limit, err := intQueryParam(r, "limit", models.DEFAULT_PAGE_SIZE)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	result, err := a.records.HelpRecords.ListPage(r.Context(), page, limit, query.Get("province_id"))
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, result, http.StatusOK)
}

func (a *App) createHelpRecord(rw http.ResponseWriter, r *http.Request) {
	data := models.CreateHelpRecordDto{}
	if !decodeBody(rw, r, &data) {
		return
	}

	helpRecord, err := a.records.HelpRecords.Create(r.Context(), data)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, helpRecord, http.StatusCreated)
}

func (a *App) getHelpRecord(rw http.ResponseWriter, r *http.Request) {
	helpRecord, err := a.records.HelpRecords.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	if helpRecord == nil {
		writeNotFound(rw, "help record")
		return
	}

	writeData(rw, helpRecord, http.StatusOK)
}

func (a *App) updateHelpRecord(rw http.ResponseWriter, r *http.Request) {
	helpRecord, ok := a.ownHelpRecord(rw, r)
	if !ok {
		return
	}

	data := models.UpdateHelpRecordDto{}
	if !decodeBody(rw, r, &data) {
		return
	}

	updated, err := a.records.HelpRecords.Update(r.Context(), helpRecord.ID, data)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, updated, http.StatusOK)
}

func (a *App) deleteHelpRecord(rw http.ResponseWriter, r *http.Request) {
	helpRecord, ok := a.ownHelpRecord(rw, r)
	if !ok {
		return
	}

	if err := a.records.HelpRecords.Delete(r.Context(), helpRecord.ID); err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ownHelpRecord loads the record in the path; only the requester's phone may
// change it.
func (a *App) ownHelpRecord(rw http.ResponseWriter, r *http.Request) (*models.HelpRecord, bool) {
	helpRecord, err := a.records.HelpRecords.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErrorResponse(rw, err)
		return nil, false
	}

	if helpRecord == nil {
		writeNotFound(rw, "help record")
		return nil, false
	}

	if helpRecord.PhoneNumber != identityFrom(r).Phone {
		writeForbidden(rw, "action is forbidden")
		return nil, false
	}
	return helpRecord, true
}

// ---------------------------------------------------------------------------------//
// Teams
// --------------------------------------------------------------------------------//

func (a *App) listTeams(rw http.ResponseWriter, r *http.Request) {
	teams, err := a.records.Teams.List(r.Context())
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, teams, http.StatusOK)
}

// registerTeam registers (or re-registers) the caller's own team.
func (a *App) registerTeam(rw http.ResponseWriter, r *http.Request) {
	data := models.CreateTeamDto{}
	if !decodeBody(rw, r, &data) {
		return
	}

	if data.PhoneNumber == "" {
		data.PhoneNumber = identityFrom(r).Phone
	}

	if a.phone.Normalize(data.PhoneNumber) != identityFrom(r).Phone {
		writeForbidden(rw, "teams can only be registered with your own phone number")
		return
	}

	team, err := a.records.Teams.Register(r.Context(), data)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, team, http.StatusCreated)
}

func (a *App) getTeam(rw http.ResponseWriter, r *http.Request) {
	team, err := a.records.Teams.Get(r.Context(), mux.Vars(r)["phone"])
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	if team == nil {
		writeNotFound(rw, "team")
		return
	}

	writeData(rw, team, http.StatusOK)
}

func (a *App) updateTeam(rw http.ResponseWriter, r *http.Request) {
	phone := mux.Vars(r)["phone"]
	if a.phone.Normalize(phone) != identityFrom(r).Phone {
		writeForbidden(rw, "action is forbidden")
		return
	}

	data := models.UpdateTeamDto{}
	if !decodeBody(rw, r, &data) {
		return
	}

	team, err := a.records.Teams.Update(r.Context(), phone, data)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, team, http.StatusOK)
}

func (a *App) deleteTeam(rw http.ResponseWriter, r *http.Request) {
	phone := mux.Vars(r)["phone"]
	if a.phone.Normalize(phone) != identityFrom(r).Phone {
		writeForbidden(rw, "action is forbidden")
		return
	}

	if err := a.records.Teams.Delete(r.Context(), phone); err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Supports
// --------------------------------------------------------------------------------//

func (a *App) listHelpRecordSupports(rw http.ResponseWriter, r *http.Request) {
	supports, err := a.supports.ListByHelpRecord(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, supports, http.StatusOK)
}

func (a *App) listTeamSupports(rw http.ResponseWriter, r *http.Request) {
	supports, err := a.supports.ListByTeam(r.Context(), mux.Vars(r)["phone"])
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, supports, http.StatusOK)
}

// getSupport returns the caller's team's support status for the record in the
// path, none when the team never registered support.
func (a *App) getSupport(rw http.ResponseWriter, r *http.Request) {
	team, helpRecord, ok := a.supportParties(rw, r)
	if !ok {
		return
	}

	current, err := a.supports.Get(r.Context(), helpRecord.ID, team.PhoneNumber)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeData(rw, newSupportResponse(current), http.StatusOK)
}

// advanceSupport moves the caller's team one step along the support cycle.
func (a *App) advanceSupport(rw http.ResponseWriter, r *http.Request) {
	team, helpRecord, ok := a.supportParties(rw, r)
	if !ok {
		return
	}

	advanced, err := a.supports.Advance(r.Context(), helpRecord.ID, team.PhoneNumber)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	metrics.RecordSupportTransition(string(advanced.Status))
	a.enqueueRequesterNotification(advanced)

	writeData(rw, newSupportResponse(advanced), http.StatusOK)
}

func (a *App) updateSupport(rw http.ResponseWriter, r *http.Request) {
	team, helpRecord, ok := a.supportParties(rw, r)
	if !ok {
		return
	}

	data := models.UpdateHelpSupportDto{}
	if !decodeBody(rw, r, &data) {
		return
	}

	updated, err := a.supports.Update(r.Context(), helpRecord.ID, team.PhoneNumber, data)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	if data.Status != nil {
		metrics.RecordSupportTransition(string(updated.Status))
		a.enqueueRequesterNotification(updated)
	}

	writeData(rw, newSupportResponse(updated), http.StatusOK)
}

func (a *App) deleteSupport(rw http.ResponseWriter, r *http.Request) {
	team, helpRecord, ok := a.supportParties(rw, r)
	if !ok {
		return
	}

	if err := a.supports.Delete(r.Context(), helpRecord.ID, team.PhoneNumber); err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// supportParties resolves the caller's team and the record in the path. Only
// registered teams can support a record.
func (a *App) supportParties(rw http.ResponseWriter, r *http.Request) (*models.Team, *models.HelpRecord, bool) {
	identity := identityFrom(r)
	if identity.Phone == "" {
		writeForbidden(rw, "a phone number is required to support help records")
		return nil, nil, false
	}

	team, err := a.records.Teams.Get(r.Context(), identity.Phone)
	if err != nil {
		writeErrorResponse(rw, err)
		return nil, nil, false
	}

	if team == nil {
		writeForbidden(rw, "register a team before supporting help records")
		return nil, nil, false
	}

	helpRecord, err := a.records.HelpRecords.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErrorResponse(rw, err)
		return nil, nil, false
	}

	if helpRecord == nil {
		writeNotFound(rw, "help record")
		return nil, nil, false
	}

	return team, helpRecord, true
}

func newSupportResponse(current *models.HelpSupport) supportResponse {
	status := models.NONE_SUPPORT
	if current != nil {
		status = current.Status
	}

	return supportResponse{
		Status:  status,
		Info:    models.StatusInfo[status],
		Support: current,
	}
}

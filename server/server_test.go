package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/Daskott/relief/backend"
	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/records"
	"github.com/Daskott/relief/server/twilio"
	"github.com/Daskott/relief/server/work"
	"github.com/Daskott/relief/shared"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	requesterPhone = "+84911111111"
	teamPhone      = "+84900000001"
)

var codeRegex = regexp.MustCompile(`\b(\d{6})\b`)

type envelope struct {
	Errors  []string        `json:"errors"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	app       *App
	router    *mux.Router
	messenger *twilio.LogMessenger
}

func newTestServer(t *testing.T, opts Options) *testServer {
	messenger := &twilio.LogMessenger{}
	b, err := backend.New(&shared.Config{
		Relief: shared.ReliefConfig{CountryCode: "84"},
		Store:  shared.StoreConfig{Backend: shared.MEMORY_BACKEND},
	}, "", messenger)
	require.Nil(t, err)

	opts.Messenger = messenger
	app := NewApp(b, opts)
	return &testServer{app: app, router: app.Router(), messenger: messenger}
}

func (ts *testServer) do(t *testing.T, method string, path string, token string, body interface{}) (int, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.Nil(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	payload := envelope{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	}
	return rec.Code, payload
}

func (ts *testServer) lastCodeFor(t *testing.T, phone string) string {
	sent := ts.messenger.Sent()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].To == phone {
			match := codeRegex.FindStringSubmatch(sent[i].Body)
			require.Len(t, match, 2)
			return match[1]
		}
	}
	t.Fatalf("no code sent to %v", phone)
	return ""
}

// signIn runs the OTP flow for phone and returns the access token.
func (ts *testServer) signIn(t *testing.T, phone string) string {
	status, _ := ts.do(t, "POST", "/api/v1/auth/otp", "", map[string]string{"phoneNumber": phone})
	require.Equal(t, http.StatusOK, status)

	normalized := records.NormalizePhone(phone)
	status, payload := ts.do(t, "POST", "/api/v1/auth/verify", "", map[string]string{
		"phoneNumber": phone,
		"code":        ts.lastCodeFor(t, normalized),
	})
	require.Equal(t, http.StatusOK, status, payload.Errors)

	s := struct {
		AccessToken string `json:"access_token"`
	}{}
	require.Nil(t, json.Unmarshal(payload.Data, &s))
	require.NotEmpty(t, s.AccessToken)
	return s.AccessToken
}

func helpRecordBody(phone string, location string) map[string]interface{} {
	return map[string]interface{}{
		"isForSelf":      true,
		"locationName":   location,
		"adultCount":     2,
		"childCount":     1,
		"phoneNumber":    phone,
		"essentialItems": []string{"Food", "Medical"},
		"latitude":       13.09,
		"longitude":      109.3,
	}
}

func teamBody(phone string) map[string]interface{} {
	return map[string]interface{}{
		"phoneNumber":    phone,
		"teamLeaderName": "Minh",
		"email":          "minh@example.com",
		"memberCount":    5,
		"essentialItems": []string{"Food"},
	}
}

func decodeData(t *testing.T, payload envelope, dst interface{}) {
	require.Nil(t, json.Unmarshal(payload.Data, dst))
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, Options{})

	status, payload := ts.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, payload.Success)

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relief_http_requests_total")
}

func TestJWKS(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest("GET", "/.well-known/jwks.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	jwks := struct {
		Keys []map[string]interface{} `json:"keys"`
	}{}
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &jwks))
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, "RSA", jwks.Keys[0]["kty"])
}

func TestSignInAndMe(t *testing.T) {
	ts := newTestServer(t, Options{})

	status, payload := ts.do(t, "POST", "/api/v1/auth/otp", "", map[string]string{"phoneNumber": "12"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, payload.Success)

	status, payload = ts.do(t, "POST", "/api/v1/auth/verify", "", map[string]string{"phoneNumber": "0911111111", "code": "000000"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, payload.Errors)

	token := ts.signIn(t, "0911111111")

	status, _ = ts.do(t, "GET", "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = ts.do(t, "GET", "/api/v1/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, payload = ts.do(t, "GET", "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)

	me := meResponse{}
	decodeData(t, payload, &me)
	assert.Equal(t, requesterPhone, me.User.PhoneNumber)
	assert.Equal(t, requesterPhone+"@example.com", me.User.Email)
	assert.Nil(t, me.Team)
}

func TestRefreshSession(t *testing.T) {
	ts := newTestServer(t, Options{})

	require.Nil(t, ts.app.otp.RequestCode(context.Background(), requesterPhone))
	s, err := ts.app.otp.VerifyCode(context.Background(), requesterPhone, ts.lastCodeFor(t, requesterPhone))
	require.Nil(t, err)

	status, payload := ts.do(t, "POST", "/api/v1/auth/refresh", "", map[string]string{"refreshToken": s.RefreshToken})
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, payload.Success)

	// an access token is no refresh token
	status, _ = ts.do(t, "POST", "/api/v1/auth/refresh", "", map[string]string{"refreshToken": s.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSendOTPIsRateLimited(t *testing.T) {
	ts := newTestServer(t, Options{RateLimit: shared.RateLimitConfig{OTPPerMinute: 1, OTPBurst: 2}})

	for i := 0; i < 2; i++ {
		status, _ := ts.do(t, "POST", "/api/v1/auth/otp", "", map[string]string{"phoneNumber": "0911111111"})
		assert.Equal(t, http.StatusOK, status)
	}

	// the same number in another format shares the bucket
	status, _ := ts.do(t, "POST", "/api/v1/auth/otp", "", map[string]string{"phoneNumber": "84911111111"})
	assert.Equal(t, http.StatusTooManyRequests, status)

	status, _ = ts.do(t, "POST", "/api/v1/auth/otp", "", map[string]string{"phoneNumber": "0922222222"})
	assert.Equal(t, http.StatusOK, status)
}

func TestVerifyOTPIsRateLimited(t *testing.T) {
	ts := newTestServer(t, Options{RateLimit: shared.RateLimitConfig{OTPPerMinute: 1, OTPBurst: 2}})

	status, _ := ts.do(t, "POST", "/api/v1/auth/otp", "", map[string]string{"phoneNumber": "0911111111"})
	require.Equal(t, http.StatusOK, status)

	wrong := "000000"
	if ts.lastCodeFor(t, requesterPhone) == wrong {
		wrong = "111111"
	}

	for i := 0; i < 2; i++ {
		status, _ = ts.do(t, "POST", "/api/v1/auth/verify", "", map[string]string{"phoneNumber": "0911111111", "code": wrong})
		assert.Equal(t, http.StatusBadRequest, status)
	}

	// the correct code is refused too once the bucket is empty
	status, _ = ts.do(t, "POST", "/api/v1/auth/verify", "", map[string]string{
		"phoneNumber": "84911111111",
		"code":        ts.lastCodeFor(t, requesterPhone),
	})
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestHelpRecordLifecycle(t *testing.T) {
	ts := newTestServer(t, Options{})

	status, payload := ts.do(t, "POST", "/api/v1/help-records", "", map[string]interface{}{
		"isForSelf":      true,
		"locationName":   "Tuy Hoa",
		"phoneNumber":    "0911111111",
		"essentialItems": []string{"Food"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Len(t, payload.Errors, 2, "headcount and coordinates are both missing")

	status, payload = ts.do(t, "POST", "/api/v1/help-records", "", helpRecordBody("0911111111", "Tuy Hoa"))
	require.Equal(t, http.StatusCreated, status, payload.Errors)

	created := models.HelpRecord{}
	decodeData(t, payload, &created)
	assert.Equal(t, requesterPhone, created.PhoneNumber)

	path := "/api/v1/help-records/" + created.ID
	status, _ = ts.do(t, "GET", path, "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, "GET", "/api/v1/help-records/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.do(t, "PUT", path, "", map[string]interface{}{"adultCount": 4})
	assert.Equal(t, http.StatusUnauthorized, status)

	otherToken := ts.signIn(t, "0922222222")
	status, _ = ts.do(t, "PUT", path, otherToken, map[string]interface{}{"adultCount": 4})
	assert.Equal(t, http.StatusForbidden, status)

	ownerToken := ts.signIn(t, requesterPhone)
	status, payload = ts.do(t, "PUT", path, ownerToken, map[string]interface{}{"adultCount": 4})
	require.Equal(t, http.StatusOK, status, payload.Errors)

	updated := models.HelpRecord{}
	decodeData(t, payload, &updated)
	assert.Equal(t, 4, updated.AdultCount)
	assert.Equal(t, 1, updated.ChildCount)

	status, payload = ts.do(t, "GET", "/api/v1/help-records?phone_number=84911111111", "", nil)
	assert.Equal(t, http.StatusOK, status)
	byPhone := []models.HelpRecord{}
	decodeData(t, payload, &byPhone)
	assert.Len(t, byPhone, 1)

	status, _ = ts.do(t, "DELETE", path, ownerToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, "GET", path, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListHelpRecordsPages(t *testing.T) {
	ts := newTestServer(t, Options{})

	for i := 0; i < 25; i++ {
		status, payload := ts.do(t, "POST", "/api/v1/help-records", "", helpRecordBody("0911111111", fmt.Sprintf("Location %v", i)))
		require.Equal(t, http.StatusCreated, status, payload.Errors)
	}

	cases := []struct {
		query       string
		wantRecords int
		wantHasMore bool
	}{
		{"", 10, true},
		{"?page=1&limit=10", 10, true},
		{"?page=2&limit=10", 5, false},
		{"?page=3&limit=10", 0, false},
		{"?page=0&limit=25", 25, false},
	}

	for _, c := range cases {
		status, payload := ts.do(t, "GET", "/api/v1/help-records"+c.query, "", nil)
		require.Equal(t, http.StatusOK, status)

		page := records.Page{}
		decodeData(t, payload, &page)
		assert.Len(t, page.Records, c.wantRecords, c.query)
		assert.Equal(t, c.wantHasMore, page.HasMore, c.query)
		assert.Equal(t, int64(25), page.Total, c.query)
	}

	status, _ := ts.do(t, "GET", "/api/v1/help-records?page=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(t, "GET", "/api/v1/help-records?page=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProvinces(t *testing.T) {
	ts := newTestServer(t, Options{})
	token := ts.signIn(t, teamPhone)

	status, _ := ts.do(t, "POST", "/api/v1/provinces", "", map[string]interface{}{"name": "Phu Yen"})
	assert.Equal(t, http.StatusUnauthorized, status)

	for i, name := range []string{"Khanh Hoa", "Phu Yen"} {
		order := i
		status, payload := ts.do(t, "POST", "/api/v1/provinces", token, map[string]interface{}{"name": name, "displayOrder": order})
		require.Equal(t, http.StatusCreated, status, payload.Errors)
	}

	status, payload := ts.do(t, "POST", "/api/v1/provinces", token, map[string]interface{}{"name": "Phu Yen"})
	assert.Equal(t, http.StatusConflict, status, payload.Errors)

	status, payload = ts.do(t, "GET", "/api/v1/provinces", "", nil)
	require.Equal(t, http.StatusOK, status)

	provinces := []models.Province{}
	decodeData(t, payload, &provinces)
	require.Len(t, provinces, 2)
	assert.Equal(t, "Khanh Hoa", provinces[0].Name)

	path := "/api/v1/provinces/" + provinces[1].ID
	status, payload = ts.do(t, "PUT", path, token, map[string]interface{}{"isActive": false})
	require.Equal(t, http.StatusOK, status, payload.Errors)

	status, payload = ts.do(t, "GET", "/api/v1/provinces?active=true", "", nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, payload, &provinces)
	assert.Len(t, provinces, 1)

	status, _ = ts.do(t, "DELETE", path, token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, "GET", path, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRegisterTeamNormalizesPhone(t *testing.T) {
	ts := newTestServer(t, Options{})
	token := ts.signIn(t, "0912345678")

	status, _ := ts.do(t, "POST", "/api/v1/teams", token, teamBody("0922222222"))
	assert.Equal(t, http.StatusForbidden, status)

	status, payload := ts.do(t, "POST", "/api/v1/teams", token, teamBody("0912345678"))
	require.Equal(t, http.StatusCreated, status, payload.Errors)

	body := teamBody("84912345678")
	body["memberCount"] = 8
	status, payload = ts.do(t, "POST", "/api/v1/teams", token, body)
	require.Equal(t, http.StatusCreated, status, payload.Errors)

	team := models.Team{}
	decodeData(t, payload, &team)
	assert.Equal(t, "+84912345678", team.ID)
	assert.Equal(t, 8, team.MemberCount)

	status, payload = ts.do(t, "GET", "/api/v1/teams", "", nil)
	require.Equal(t, http.StatusOK, status)
	teams := []models.Team{}
	decodeData(t, payload, &teams)
	assert.Len(t, teams, 1)

	status, _ = ts.do(t, "GET", "/api/v1/teams/0912345678", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, payload = ts.do(t, "GET", "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	me := meResponse{}
	decodeData(t, payload, &me)
	require.NotNil(t, me.Team)
	assert.Equal(t, "+84912345678", me.Team.PhoneNumber)
}

func TestSupportCycle(t *testing.T) {
	ts := newTestServer(t, Options{})
	ctx := context.Background()

	helpRecord, err := ts.app.records.HelpRecords.Create(ctx, models.CreateHelpRecordDto{
		IsForSelf:      false,
		LocationName:   "Song Cau",
		AdultCount:     3,
		PhoneNumber:    requesterPhone,
		EssentialItems: models.EssentialItems{models.FOOD_ITEM},
		Address:        "12 Tran Hung Dao",
	})
	require.Nil(t, err)

	token := ts.signIn(t, teamPhone)
	path := "/api/v1/help-records/" + helpRecord.ID + "/support"

	status, _ := ts.do(t, "POST", path+"/advance", token, nil)
	assert.Equal(t, http.StatusForbidden, status, "teams must be registered first")

	status, payload := ts.do(t, "POST", "/api/v1/teams", token, teamBody(teamPhone))
	require.Equal(t, http.StatusCreated, status, payload.Errors)

	status, payload = ts.do(t, "GET", path, token, nil)
	require.Equal(t, http.StatusOK, status)
	current := supportResponse{}
	decodeData(t, payload, &current)
	assert.Equal(t, models.NONE_SUPPORT, current.Status)
	assert.Nil(t, current.Support)

	want := []models.SupportStatus{
		models.PENDING_SUPPORT,
		models.ACTIVE_SUPPORT,
		models.COMPLETED_SUPPORT,
		models.PENDING_SUPPORT,
	}
	for _, expected := range want {
		status, payload = ts.do(t, "POST", path+"/advance", token, nil)
		require.Equal(t, http.StatusOK, status, payload.Errors)

		decodeData(t, payload, &current)
		assert.Equal(t, expected, current.Status)
		assert.Equal(t, models.StatusInfo[expected].Label, current.Info.Label)
	}

	status, payload = ts.do(t, "PUT", path, token, map[string]interface{}{"status": "completed", "notes": "delivered rice"})
	require.Equal(t, http.StatusOK, status, payload.Errors)
	decodeData(t, payload, &current)
	assert.Equal(t, "delivered rice", current.Support.Notes)

	status, _ = ts.do(t, "PUT", path, token, map[string]interface{}{"status": "none"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, payload = ts.do(t, "GET", "/api/v1/help-records/"+helpRecord.ID+"/supports", "", nil)
	require.Equal(t, http.StatusOK, status)
	supports := []models.HelpSupport{}
	decodeData(t, payload, &supports)
	require.Len(t, supports, 1)
	assert.Equal(t, teamPhone, supports[0].TeamID)

	status, payload = ts.do(t, "GET", "/api/v1/teams/0900000001/supports", "", nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, payload, &supports)
	assert.Len(t, supports, 1)

	status, _ = ts.do(t, "DELETE", path, token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, payload = ts.do(t, "GET", path, token, nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, payload, &current)
	assert.Equal(t, models.NONE_SUPPORT, current.Status)

	status, _ = ts.do(t, "POST", "/api/v1/help-records/missing/support/advance", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdvanceNotifiesRequester(t *testing.T) {
	workers := work.NewWorkerAdapter("UTC")
	ts := newTestServer(t, Options{Workers: workers, NotifyRequesters: true})
	require.Nil(t, ts.app.registerJobHandlers())
	require.Nil(t, workers.Start())
	defer workers.Stop()

	ctx := context.Background()
	helpRecord, err := ts.app.records.HelpRecords.Create(ctx, models.CreateHelpRecordDto{
		LocationName:   "Dong Hoa",
		ChildCount:     2,
		PhoneNumber:    requesterPhone,
		EssentialItems: models.EssentialItems{models.CLOTHES_ITEM},
		MapLink:        "https://maps.example.com/?q=13.0,109.3",
	})
	require.Nil(t, err)

	token := ts.signIn(t, teamPhone)
	status, payload := ts.do(t, "POST", "/api/v1/teams", token, teamBody(teamPhone))
	require.Equal(t, http.StatusCreated, status, payload.Errors)

	status, _ = ts.do(t, "POST", "/api/v1/help-records/"+helpRecord.ID+"/support/advance", token, nil)
	require.Equal(t, http.StatusOK, status)

	assert.Eventually(t, func() bool {
		for _, msg := range ts.messenger.Sent() {
			if msg.To == requesterPhone && strings.Contains(msg.Body, "Awaiting support") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRequesterMessage(t *testing.T) {
	msg := requesterMessage(
		&models.HelpRecord{LocationName: "Tuy An"},
		&models.Team{TeamLeaderName: "Minh", PhoneNumber: teamPhone},
		models.ACTIVE_SUPPORT,
	)
	assert.Equal(t, "[relief] Tuy An: Being supported. Team leader Minh can be reached at +84900000001.", msg)
}

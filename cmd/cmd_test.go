package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/Daskott/relief/backend"
	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/server/twilio"
	"github.com/Daskott/relief/session"
	"github.com/Daskott/relief/shared"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestDataProvider []struct {
	description string
	args        []string
	expectedOut string
}

var codeRegex = regexp.MustCompile(`\b(\d{6})\b`)

// stubCLIApp points the commands at an in-memory backend and the test config,
// restoring the previous globals when the test is done.
func stubCLIApp(t *testing.T) (*cliApp, *twilio.LogMessenger) {
	savedCfgFile := cfgFile
	savedCLI := cli

	path, err := os.Getwd()
	require.Nil(t, err)
	cfgFile = filepath.Join(path, "test-fixtures", "config.yml")

	messenger := &twilio.LogMessenger{}
	b, err := backend.New(&shared.Config{
		Relief: shared.ReliefConfig{CountryCode: "84"},
		Store:  shared.StoreConfig{Backend: shared.MEMORY_BACKEND},
	}, "", messenger)
	require.Nil(t, err)

	app, err := newCLIAppWith(b, session.NewMemoryStorage(), messenger)
	require.Nil(t, err)
	cli = app

	t.Cleanup(func() {
		cli = savedCLI
		cfgFile = savedCfgFile
	})
	return app, messenger
}

func runCmd(cmd *cobra.Command, stdin io.Reader, args ...string) string {
	buff := new(bytes.Buffer)

	if stdin == nil {
		stdin = strings.NewReader("")
	}

	cmd.SetOut(buff)
	cmd.SetErr(buff)
	cmd.SetIn(stdin)
	cmd.SetArgs(args)

	cmd.Execute()
	return buff.String()
}

// codeInput answers the login prompt with the code sent last, looked up only
// once the command reads it.
type codeInput struct {
	t         *testing.T
	messenger *twilio.LogMessenger
	r         io.Reader
}

func (ci *codeInput) Read(p []byte) (int, error) {
	if ci.r == nil {
		ci.r = strings.NewReader(lastCode(ci.t, ci.messenger) + "\n")
	}
	return ci.r.Read(p)
}

func lastCode(t *testing.T, messenger *twilio.LogMessenger) string {
	sent := messenger.Sent()
	require.NotEmpty(t, sent)

	match := codeRegex.FindStringSubmatch(sent[len(sent)-1].Body)
	require.Len(t, match, 2)
	return match[1]
}

func signIn(t *testing.T, app *cliApp, messenger *twilio.LogMessenger, phone string) {
	ctx := context.Background()
	require.Nil(t, app.session.SendOTP(ctx, phone))
	require.Nil(t, app.session.Login(ctx, phone, lastCode(t, messenger)))
}

func createHelpRecord(t *testing.T, app *cliApp, phone string) *models.HelpRecord {
	record, err := app.backend.Records.HelpRecords.Create(context.Background(), models.CreateHelpRecordDto{
		LocationName:   "Thôn 12, Phú Yên",
		AdultCount:     2,
		PhoneNumber:    phone,
		EssentialItems: models.EssentialItems{models.FOOD_ITEM},
		Address:        "Xã Hòa Quang, huyện Phú Hòa",
	})
	require.Nil(t, err)
	return record
}

func TestLoginCmd(t *testing.T) {
	stubCLIApp(t)

	cases := TestDataProvider{
		{
			description: "Should fail when phone flag is not provided",
			args:        []string{},
			expectedOut: "\"phone\" not set",
		},
		{
			description: "Should NOT send a code to an invalid phone number",
			args:        []string{"--phone", "12"},
			expectedOut: "'12' is not a valid phone number",
		},
		{
			description: "Should send a code and ask for it",
			args:        []string{"--phone", "0912345678"},
			expectedOut: "A verification code was sent to +84912345678",
		},
		{
			description: "Should fail when no code is entered",
			args:        []string{"--phone", "0912345678"},
			expectedOut: "no code entered",
		},
		{
			description: "Should NOT sign in with a wrong code",
			args:        []string{"--phone", "0912345678", "--code", "abcdef"},
			expectedOut: "Error:",
		},
	}

	for _, c := range cases {
		t.Run(c.description, func(t *testing.T) {
			actualOut := runCmd(createLoginCmd(), nil, c.args...)
			assert.Contains(t, actualOut, c.expectedOut)
		})
	}
}

func TestLoginWithCode(t *testing.T) {
	app, messenger := stubCLIApp(t)

	out := runCmd(createWhoamiCmd(), nil)
	assert.Contains(t, out, "You are not signed in")

	require.Nil(t, app.session.SendOTP(context.Background(), "0912345678"))
	code := lastCode(t, messenger)

	out = runCmd(createLoginCmd(), nil, "--phone", "84912345678", "--code", code)
	assert.Contains(t, out, "signed in as +84912345678")

	out = runCmd(createWhoamiCmd(), nil)
	assert.Contains(t, out, "Phone: +84912345678")
	assert.Contains(t, out, "not registered")

	out = runCmd(createLogoutCmd(), nil)
	assert.Contains(t, out, "You have been signed out")
	assert.False(t, app.session.State().IsAuthenticated)
}

func TestLoginPromptsForCode(t *testing.T) {
	app, messenger := stubCLIApp(t)

	out := runCmd(createLoginCmd(), &codeInput{t: t, messenger: messenger}, "--phone", "0912345678")
	assert.Contains(t, out, "the message was")
	assert.Contains(t, out, "Enter code:")
	assert.Contains(t, out, "signed in as +84912345678")
	assert.True(t, app.session.State().IsAuthenticated)
}

func TestSeedCmd(t *testing.T) {
	stubCLIApp(t)

	out := runCmd(createSeedCmd(), nil)
	assert.Contains(t, out, "added 4 provinces and 8 help requests")

	out = runCmd(createSeedCmd(), nil)
	assert.Contains(t, out, "added 0 provinces and 0 help requests")

	out = runCmd(createProvinceCmd(), nil, "list")
	for _, name := range []string{"Phú Yên", "Bình Định", "Khánh Hòa", "Quảng Nam"} {
		assert.Contains(t, out, name)
	}
}

func TestRequestCmd(t *testing.T) {
	app, messenger := stubCLIApp(t)
	runCmd(createSeedCmd(), nil)

	cases := TestDataProvider{
		{
			description: "Should list the first page of help requests",
			args:        []string{"list", "--limit", "5"},
			expectedOut: "page 0, 5 of 8 requests, more with --page 1",
		},
		{
			description: "Should list the last page of help requests",
			args:        []string{"list", "--limit", "5", "--page", "1"},
			expectedOut: "page 1, 3 of 8 requests\n",
		},
		{
			description: "Should list help requests by phone",
			args:        []string{"list", "--phone", "0901234501"},
			expectedOut: "Thôn 12, Phú Yên",
		},
		{
			description: "Should NOT create a help request without a phone when signed out",
			args:        []string{"create", "--location", "Thôn 1", "--adults", "1", "--items", "Food", "--address", "somewhere"},
			expectedOut: "\"phone\" not set",
		},
		{
			description: "Should NOT create a help request with an unknown item",
			args:        []string{"create", "--phone", "0901234599", "--location", "Thôn 1", "--adults", "1", "--items", "Water", "--address", "somewhere"},
			expectedOut: "unknown essential item 'Water'",
		},
		{
			description: "Should NOT create a help request for self without coordinates",
			args:        []string{"create", "--self", "--phone", "0901234599", "--location", "Thôn 1", "--adults", "1", "--items", "Food"},
			expectedOut: "latitude and longitude are required",
		},
		{
			description: "Should create a help request for someone else",
			args:        []string{"create", "--phone", "0901234599", "--location", "Thôn 1", "--adults", "1", "--items", "Food,Tools", "--address", "somewhere"},
			expectedOut: "help request",
		},
		{
			description: "Should NOT get a missing help request",
			args:        []string{"get", "missing"},
			expectedOut: "no help request with id 'missing'",
		},
		{
			description: "Should NOT delete when signed out",
			args:        []string{"delete", "missing"},
			expectedOut: "you are not signed in",
		},
	}

	for _, c := range cases {
		t.Run(c.description, func(t *testing.T) {
			actualOut := runCmd(createRequestCmd(), nil, c.args...)
			assert.Contains(t, actualOut, c.expectedOut)
		})
	}

	created, err := app.backend.Records.HelpRecords.ListByPhone(context.Background(), "0901234599")
	require.Nil(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "+84901234599", created[0].PhoneNumber)

	t.Run("Should only delete your own help requests", func(t *testing.T) {
		signIn(t, app, messenger, "0912345678")
		out := runCmd(createRequestCmd(), nil, "delete", created[0].ID)
		assert.Contains(t, out, "was not made with your phone number")

		mine := createHelpRecord(t, app, "0912345678")
		out = runCmd(createRequestCmd(), nil, "delete", mine.ID)
		assert.Contains(t, out, "deleted")

		found, err := app.backend.Records.HelpRecords.Get(context.Background(), mine.ID)
		require.Nil(t, err)
		assert.Nil(t, found)
	})
}

func TestTeamCmd(t *testing.T) {
	app, messenger := stubCLIApp(t)

	out := runCmd(createTeamCmd(), nil, "register", "--leader", "An", "--email", "an@example.com", "--items", "Food")
	assert.Contains(t, out, "you are not signed in")

	signIn(t, app, messenger, "0912345678")

	cases := TestDataProvider{
		{
			description: "Should NOT register a team without an email",
			args:        []string{"register", "--leader", "An", "--items", "Food"},
			expectedOut: "'email' is required",
		},
		{
			description: "Should register a team under the signed in phone",
			args:        []string{"register", "--leader", "An", "--email", "an@example.com", "--members", "3", "--items", "Food,Medical"},
			expectedOut: "team +84912345678 registered",
		},
		{
			description: "Should update the team when registering again",
			args:        []string{"register", "--leader", "Binh", "--email", "binh@example.com", "--members", "5", "--items", "Tools"},
			expectedOut: "team +84912345678 registered",
		},
		{
			description: "Should show the signed in user's team",
			args:        []string{"get"},
			expectedOut: "led by Binh",
		},
		{
			description: "Should show a team by local phone number",
			args:        []string{"get", "84912345678"},
			expectedOut: "members: 5",
		},
		{
			description: "Should NOT show a team that isn't registered",
			args:        []string{"get", "0900000000"},
			expectedOut: "no team registered with '+84900000000'",
		},
	}

	for _, c := range cases {
		t.Run(c.description, func(t *testing.T) {
			actualOut := runCmd(createTeamCmd(), nil, c.args...)
			assert.Contains(t, actualOut, c.expectedOut)
		})
	}

	teams, err := app.backend.Records.Teams.List(context.Background())
	require.Nil(t, err)
	assert.Len(t, teams, 1)
}

func TestSupportCmd(t *testing.T) {
	app, messenger := stubCLIApp(t)
	record := createHelpRecord(t, app, "0901234501")

	signIn(t, app, messenger, "0900000001")

	out := runCmd(createSupportCmd(), nil, "advance", record.ID)
	assert.Contains(t, out, "register your team first")

	_, err := app.backend.Records.Teams.Register(context.Background(), models.CreateTeamDto{
		PhoneNumber:    "0900000001",
		TeamLeaderName: "An",
		Email:          "an@example.com",
		MemberCount:    2,
		EssentialItems: models.EssentialItems{models.FOOD_ITEM},
	})
	require.Nil(t, err)

	cases := TestDataProvider{
		{
			description: "Should start with no support",
			args:        []string{"status", record.ID},
			expectedOut: "Not supported (none)",
		},
		{
			description: "Should advance to pending",
			args:        []string{"advance", record.ID},
			expectedOut: "Awaiting support (pending)",
		},
		{
			description: "Should advance to active",
			args:        []string{"advance", record.ID},
			expectedOut: "Being supported (active)",
		},
		{
			description: "Should advance to completed",
			args:        []string{"advance", record.ID},
			expectedOut: "Supported (completed)",
		},
		{
			description: "Should wrap around to pending",
			args:        []string{"advance", record.ID},
			expectedOut: "Awaiting support (pending)",
		},
		{
			description: "Should list the team's supports",
			args:        []string{"list"},
			expectedOut: record.ID,
		},
		{
			description: "Should NOT advance a missing help request",
			args:        []string{"advance", "missing"},
			expectedOut: "no help request with id 'missing'",
		},
	}

	for _, c := range cases {
		t.Run(c.description, func(t *testing.T) {
			actualOut := runCmd(createSupportCmd(), nil, c.args...)
			assert.Contains(t, actualOut, c.expectedOut)
		})
	}

	supports, err := app.backend.Supports.ListByHelpRecord(context.Background(), record.ID)
	require.Nil(t, err)
	require.Len(t, supports, 1)
	assert.Equal(t, "+84900000001", supports[0].TeamID)
	assert.Equal(t, models.PENDING_SUPPORT, supports[0].Status)
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), SESSION_FILE_NAME)

	storage, err := newFileStorage(path)
	require.Nil(t, err)

	value, err := storage.Get(session.STORAGE_KEY)
	require.Nil(t, err)
	assert.Nil(t, value)

	require.Nil(t, storage.Set(session.STORAGE_KEY, []byte(`{"isAuthenticated":true}`)))

	// a new instance reads what the previous one wrote
	reopened, err := newFileStorage(path)
	require.Nil(t, err)

	value, err = reopened.Get(session.STORAGE_KEY)
	require.Nil(t, err)
	assert.JSONEq(t, `{"isAuthenticated":true}`, string(value))

	info, err := os.Stat(path)
	require.Nil(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.Nil(t, reopened.Delete(session.STORAGE_KEY))
	value, err = reopened.Get(session.STORAGE_KEY)
	require.Nil(t, err)
	assert.Nil(t, value)
}

func TestServerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yml")
	require.Nil(t, os.WriteFile(path, []byte(`
relief:
  countryCode: "84"
  cron:
    timeZone: "Asia/Ho_Chi_Minh"
  listener:
    port: 3000
  rateLimit:
    otpPerMinute: 2
store:
  backend: memory
`), 0600))

	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")

	cfg, err := serverConfig(path)
	require.Nil(t, err)
	assert.Nil(t, shared.ValidateConfig(cfg))

	assert.Equal(t, 3000, cfg.Relief.Listener.Port)
	assert.Equal(t, 2, cfg.Relief.RateLimit.OTPPerMinute)
	assert.Equal(t, shared.MEMORY_BACKEND, cfg.Store.Backend)
	assert.Equal(t, "AC123", cfg.Twilio.AccountSid)

	_, err = serverConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.NotNil(t, err)
}

package config

// SERVER_YML is written to dev/config/server.yml the first time the server runs
// with --dev. The signing key is generated under dev/ when privateKeyPem is blank.
const SERVER_YML = `
relief:
  privateKeyPem:
  countryCode: "84"
  notifyRequesters: false
  cron:
    timeZone: "Asia/Ho_Chi_Minh"
  listener:
    port: 3000
  rateLimit:
    otpPerMinute: 3
    otpBurst: 3

store:
  backend: sqlite

sqlite:
  passPhrase: passphrase

supabase:
  url:
  anonKey:

google:
  storage:
    bucket: "relief"
    prefix: "relief-dev"
    sqliteBackupSchedule: "*/30 * * * *"
    enableSqliteBackupAndSync: false
  applicationCredentials:

twilio:
  accountSid:
  authToken:
  messagingServiceSid:
`

package shared

// Config is the relief configuration, shared by the server (--sconfig) and the
// CLI (~/.relief.yaml).
type Config struct {
	Relief   ReliefConfig   `mapstructure:"relief" validate:"required"`
	Store    StoreConfig    `mapstructure:"store" validate:"required"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Sqlite   SqliteConfig   `mapstructure:"sqlite"`
	Twilio   TwilioConfig   `mapstructure:"twilio"`
	Google   GoogleConfig   `mapstructure:"google"`
}

type ReliefConfig struct {
	PrivateKeyPem    string          `mapstructure:"privateKeyPem"`
	CountryCode      string          `mapstructure:"countryCode" validate:"omitempty,country_code"`
	NotifyRequesters bool            `mapstructure:"notifyRequesters"`
	Cron             CronConfig      `mapstructure:"cron" validate:"required"`
	Listener         ListenerConfig  `mapstructure:"listener" validate:"required"`
	RateLimit        RateLimitConfig `mapstructure:"rateLimit"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=supabase sqlite memory"`
}

type SupabaseConfig struct {
	URL     string `mapstructure:"url" validate:"omitempty,url"`
	AnonKey string `mapstructure:"anonKey"`
}

type SqliteConfig struct {
	PassPhrase string `mapstructure:"passPhrase"`
	Dir        string `mapstructure:"dir"`
}

type TwilioConfig struct {
	AccountSid          string `mapstructure:"accountSid"`
	AuthToken           string `mapstructure:"authToken"`
	MessagingServiceSid string `mapstructure:"messagingServiceSid"`
}

type GoogleConfig struct {
	ApplicationCredentials string        `mapstructure:"applicationCredentials"`
	Storage                StorageConfig `mapstructure:"storage"`
}

type CronConfig struct {
	TimeZone string `mapstructure:"timeZone" validate:"required"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// RateLimitConfig throttles OTP requests per phone number. Zero values fall
// back to the server defaults.
type RateLimitConfig struct {
	OTPPerMinute int `mapstructure:"otpPerMinute" validate:"omitempty,min=1"`
	OTPBurst     int `mapstructure:"otpBurst" validate:"omitempty,min=1"`
}

type StorageConfig struct {
	Bucket                    string `mapstructure:"bucket" validate:"required_with=EnableSqliteBackupAndSync"`
	Prefix                    string `mapstructure:"prefix" validate:"required_with=EnableSqliteBackupAndSync"`
	SqliteBackupSchedule      string `mapstructure:"sqliteBackupSchedule" validate:"required_with=EnableSqliteBackupAndSync"`
	EnableSqliteBackupAndSync bool   `mapstructure:"enableSqliteBackupAndSync"`
}

/*
Copyright © 2021 Edmond Cotterell

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Daskott/relief/server/logger"
	"github.com/Daskott/relief/version"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	config  *viper.Viper

	isDevEnv  bool
	isTestEnv bool
	verbose   bool

	yellow       = color.New(color.FgYellow).SprintFunc()
	red          = color.New(color.FgRed).SprintFunc()
	green        = color.New(color.FgGreen).SprintFunc()
	warningLabel = yellow("Warning:")

	logg = logger.NewLogger()
)

// secretEnvs maps config keys to the env vars that may hold them instead, so
// secrets don't need to be stored in .relief.yaml. The env var wins.
var secretEnvs = map[string][]string{
	"supabase.url":                  {"SUPABASE_URL", "EXPO_PUBLIC_SUPABASE_URL"},
	"supabase.anonKey":              {"SUPABASE_ANON_KEY", "EXPO_PUBLIC_SUPABASE_ANON_KEY"},
	"sqlite.passPhrase":             {"RELIEF_SQLITE_PASSPHRASE"},
	"twilio.accountSid":             {"TWILIO_ACCOUNT_SID"},
	"twilio.authToken":              {"TWILIO_AUTH_TOKEN"},
	"twilio.messagingServiceSid":    {"TWILIO_MESSAGING_SERVICE_SID"},
	"google.applicationCredentials": {"GOOGLE_APPLICATION_CREDENTIALS"},
}

// rootCmd represents the base command when called without any subcommands
var rootCmd *cobra.Command

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	closeCLIApp()
	cobra.CheckErr(err)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd = createRootCmd()
	rootCmd.Version = fmt.Sprintf("v%s", version.Version)

	rootCmd.AddCommand(
		createServerCmd(),
		createSeedCmd(),
		createLoginCmd(),
		createLogoutCmd(),
		createWhoamiCmd(),
		createRequestCmd(),
		createTeamCmd(),
		createProvinceCmd(),
		createSupportCmd(),
	)
}

func createRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "relief",
		Short: `relief coordinates disaster-relief help requests.

People in need post help requests, volunteer teams register with their
phone number and move each request they take on through
pending -> active -> completed.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.relief.yaml)")
	cmd.PersistentFlags().BoolVarP(&isDevEnv, "dev", "", false, "run in development mode")
	cmd.PersistentFlags().BoolVarP(&isTestEnv, "test", "", false, "run in test mode")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs")

	return cmd
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if verbose {
		logger.SetLevel("debug")
	} else if os.Getenv(logger.LOG_LEVEL_ENV) == "" {
		logger.SetLevel("warn")
	}

	// A missing .env is fine, the vars may already be exported.
	_ = godotenv.Load()

	config = viper.New()
	setConfigDefaults(config)

	if cfgFile != "" {
		// Use config file from the flag.
		config.SetConfigFile(cfgFile)
	} else {
		configName, configDir, err := defaulatCFgNameAndDir()
		cobra.CheckErr(err)

		// If config file is not found, create one using defaultConfigValue
		configFilePath := filepath.Join(configDir, configName)
		if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
			err = os.WriteFile(configFilePath, []byte(defaultConfigValue()), 0600)
			cobra.CheckErr(err)
		}

		config.AddConfigPath(configDir)
		config.SetConfigType("yaml")
		config.SetConfigName(configName)
	}

	for key, envs := range secretEnvs {
		cobra.CheckErr(config.BindEnv(append([]string{key}, envs...)...))
	}

	config.AutomaticEnv() // read in environment variables that match

	if err := config.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, warningLabel, "unable to read config file:", err)
	}
}

// setConfigDefaults fills in what the CLI never uses but shared.ValidateConfig
// requires.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("relief.countryCode", "84")
	v.SetDefault("relief.cron.timeZone", "Asia/Ho_Chi_Minh")
	v.SetDefault("relief.listener.port", 3000)
	v.SetDefault("store.backend", "sqlite")
}

func defaulatCFgNameAndDir() (configName string, configDir string, err error) {
	configName = ".relief.yaml"

	// Use home directory for production
	configDir, err = os.UserHomeDir()
	if err != nil {
		return "", "", err
	}

	if isDevEnv || isTestEnv {
		configName = ".relief.dev.yaml"
		configDir, err = os.Getwd()
		if err != nil {
			return "", "", err
		}

		if isTestEnv {
			configName = "config.yml"
			configDir = filepath.Join(configDir, "test-fixtures")
		}
	}

	return configName, configDir, err
}

// defaultConfigValue returns the default content for .relief.yaml
func defaultConfigValue() string {
	return `relief:
  # Calling code used to turn local numbers (0912345678) into +84912345678
  countryCode: "84"
  # PEM encoded RSA key used to sign sessions. Leave blank to generate
  # one under ~/.relief
  privateKeyPem:

# Where help requests, teams and supports are kept: supabase, sqlite or memory.
# With supabase, set 'supabase.url' and 'supabase.anonKey' (or the
# SUPABASE_URL and SUPABASE_ANON_KEY env vars).
store:
  backend: sqlite

supabase:
  url:
  anonKey:

sqlite:
  # Or set RELIEF_SQLITE_PASSPHRASE
  passPhrase: <Pass phrase used to encrypt the local database>

# Used to text one time codes when signing in against the sqlite store.
# Codes are printed to the log when left blank.
twilio:
  accountSid:
  authToken:
  messagingServiceSid:
`
}

func formattedError(format string, a ...interface{}) error {
	return fmt.Errorf(red(format), a...)
}

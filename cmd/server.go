package cmd

import (
	"os"
	"path/filepath"

	devconfig "github.com/Daskott/relief/dev/config"
	"github.com/Daskott/relief/server"
	"github.com/Daskott/relief/shared"
	"github.com/Daskott/relief/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func createServerCmd() *cobra.Command {
	var serverConfigFile string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start a relief server",
		Long: `The relief server exposes help requests, teams, provinces and supports
over a JSON API, signs volunteers in with one time codes and runs the
background jobs (requester notifications, sqlite backups).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isDevEnv {
				path, err := devConfigFilePath()
				if err != nil {
					return err
				}
				serverConfigFile = path
			}

			if serverConfigFile == "" {
				return formattedError("\"sconfig\" not set, pass the path to the server config")
			}

			cfg, err := serverConfig(serverConfigFile)
			if err != nil {
				return err
			}

			server.Start(cfg, isDevEnv)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "Config for server")
	return cmd
}

// serverConfig reads the server config at path. Secrets can come from the
// same env vars the CLI reads.
func serverConfig(path string) (*shared.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	for key, envs := range secretEnvs {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, err
		}
	}
	v.AutomaticEnv() // read in environment variables that match

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "error reading server config file")
	}

	cfg := &shared.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "error decoding server config file")
	}
	return cfg, nil
}

// devConfigFilePath returns dev/config/server.yml, writing the default dev
// config there the first time.
func devConfigFilePath() (string, error) {
	configDir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	path := filepath.Join(configDir, "dev", "config", "server.yml")
	if utils.FileExist(path) {
		return path, nil
	}

	if err := utils.CreateDirIfNotExist(filepath.Dir(path)); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, []byte(devconfig.SERVER_YML), 0600); err != nil {
		return "", err
	}
	return path, nil
}

package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const (
	envAPIKey = "DOCQA_API_KEY"
	envAPIURL = "DOCQA_API_URL"

	defaultAPIURL = "http://localhost:8080"
)

// GlobalConfig is the optional per-user config.json.
type GlobalConfig struct {
	APIKey string `json:"api_key"`
	APIURL string `json:"api_url"`
}

var getConfigPathFunc = defaultGetConfigPath

func defaultGetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "docqa", "config.json"), nil
}

// GetConfigPath returns the full path to the config.json file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads config.json. A missing file yields a nil config and no error.
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// CredentialSource represents where the API URL came from
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceDefault      CredentialSource = "default"
)

// Credentials is the resolved connection settings for one invocation.
type Credentials struct {
	APIKey string
	APIURL string
	Source CredentialSource
}

// ResolveCredentials applies the cascade flag -> env -> config.json -> default.
// Key and URL are resolved independently; Source reports where the URL came from.
func ResolveCredentials(cmd *cobra.Command) (Credentials, error) {
	var creds Credentials

	if cmd != nil {
		if v, err := cmd.Flags().GetString("api-key"); err == nil && v != "" {
			creds.APIKey = v
		}
		if v, err := cmd.Flags().GetString("api-url"); err == nil && v != "" {
			creds.APIURL = v
			creds.Source = SourceFlag
		}
	}

	if creds.APIKey == "" {
		creds.APIKey = os.Getenv(envAPIKey)
	}
	if creds.APIURL == "" {
		if v := os.Getenv(envAPIURL); v != "" {
			creds.APIURL = v
			creds.Source = SourceEnv
		}
	}

	if creds.APIKey == "" || creds.APIURL == "" {
		global, err := LoadGlobalConfig()
		if err != nil {
			return Credentials{}, err
		}
		if global != nil {
			if creds.APIKey == "" {
				creds.APIKey = global.APIKey
			}
			if creds.APIURL == "" && global.APIURL != "" {
				creds.APIURL = global.APIURL
				creds.Source = SourceGlobalConfig
			}
		}
	}

	if creds.APIURL == "" {
		creds.APIURL = defaultAPIURL
		creds.Source = SourceDefault
	}
	creds.APIURL = strings.TrimRight(creds.APIURL, "/")

	return creds, nil
}

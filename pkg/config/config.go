// Package config loads .slack-intel.yaml and the recognized environment
// variables. The config file is looked up in the working directory first,
// then in $HOME.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
	"github.com/zbigniewsiwiec/slack-intel/pkg/model"
)

const FileName = ".slack-intel.yaml"

// Environment variable names recognized by the tool.
const (
	EnvUserToken   = "USER_TOKEN"
	EnvBotToken    = "BOT_TOKEN"
	EnvIssueUser   = "ISSUE_USER"
	EnvIssueToken  = "ISSUE_TOKEN"
	EnvIssueServer = "ISSUE_SERVER"
)

// Config is the parsed .slack-intel.yaml.
type Config struct {
	Channels []model.Channel `yaml:"channels"`
	Storage  StorageConfig   `yaml:"storage,omitempty"`
	Jira     JiraConfig      `yaml:"jira,omitempty"`
}

// StorageConfig names the object-store mirror target. The mirror itself is
// an external collaborator; the keys are parsed and validated only.
type StorageConfig struct {
	Bucket  string `yaml:"bucket,omitempty"`
	Prefix  string `yaml:"prefix,omitempty"`
	Region  string `yaml:"region,omitempty"`
	Profile string `yaml:"profile,omitempty"`
}

// JiraConfig overrides issue-tracker settings from the environment.
type JiraConfig struct {
	Server string `yaml:"server,omitempty"`
}

// Load reads the first config file found, or returns an empty Config when
// none exists. A present but malformed file is a config error.
func Load() (*Config, error) {
	paths := []string{FileName}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, FileName))
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, apierror.New(apierror.KindConfig, errors.Wrapf(err, "parsing %s", path))
		}
		return &cfg, nil
	}

	return &Config{}, nil
}

// TokenKind records which credential the chat client was built with.
// Observable for logging only; behavior does not differ.
type TokenKind string

const (
	TokenKindUser TokenKind = "user"
	TokenKindBot  TokenKind = "bot"
)

// ChatToken selects the chat API credential: USER_TOKEN wins over
// BOT_TOKEN; neither set is fatal at startup.
func ChatToken() (string, TokenKind, error) {
	if tok := os.Getenv(EnvUserToken); tok != "" {
		return tok, TokenKindUser, nil
	}
	if tok := os.Getenv(EnvBotToken); tok != "" {
		return tok, TokenKindBot, nil
	}
	return "", "", apierror.Newf(apierror.KindConfig, "neither %s nor %s is set", EnvUserToken, EnvBotToken)
}

// IssueCredentials returns the issue-tracker basic-auth pair and base URL.
// cfgServer, when non-empty, overrides ISSUE_SERVER.
func IssueCredentials(cfgServer string) (user, token, server string, err error) {
	user = os.Getenv(EnvIssueUser)
	token = os.Getenv(EnvIssueToken)
	server = cfgServer
	if server == "" {
		server = os.Getenv(EnvIssueServer)
	}
	if user == "" || token == "" || server == "" {
		return "", "", "", apierror.Newf(apierror.KindConfig,
			"issue tracker requires %s, %s and %s (or jira.server in %s)",
			EnvIssueUser, EnvIssueToken, EnvIssueServer, FileName)
	}
	return user, token, server, nil
}

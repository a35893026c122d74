// Package config turns environment variables and flags into validated
// settings for the two binaries. Nothing outside cmd/ reads the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	EnvCreateURL       = "SITECHAT_CREATE_URL"
	EnvListURL         = "SITECHAT_LIST_URL"
	EnvAccessCode      = "SITECHAT_ACCESS_CODE"
	EnvAccessCodeParam = "SITECHAT_ACCESS_CODE_PARAM"
	EnvHTTPTimeout     = "SITECHAT_HTTP_TIMEOUT"
	EnvCode            = "SITECHAT_CODE"

	EnvProjectsTable = "PROJECTS_TABLE"
	EnvDatabaseURL   = "DATABASE_URL"
	EnvParamPrefix   = "PARAM_PREFIX"
	EnvSiteDomain    = "SITE_DOMAIN"

	DefaultHTTPTimeout = 30 * time.Second
	DefaultSiteDomain  = "poehali.dev"
)

// LookupFunc matches os.Getenv so tests can supply a map.
type LookupFunc func(key string) string

type Client struct {
	CreateURL       string
	ListURL         string
	AccessCode      string
	AccessCodeParam string
	// Code is what a non-interactive caller enters at the gate.
	Code    string
	Timeout time.Duration
	LogFile string
}

// ClientDefaults seeds flag defaults from the environment. An unparseable
// timeout falls back to DefaultHTTPTimeout.
func ClientDefaults(getenv LookupFunc) Client {
	if getenv == nil {
		getenv = os.Getenv
	}
	return Client{
		CreateURL:       strings.TrimSpace(getenv(EnvCreateURL)),
		ListURL:         strings.TrimSpace(getenv(EnvListURL)),
		AccessCode:      getenv(EnvAccessCode),
		AccessCodeParam: strings.TrimSpace(getenv(EnvAccessCodeParam)),
		Code:            getenv(EnvCode),
		Timeout:         envDuration(getenv, EnvHTTPTimeout, DefaultHTTPTimeout),
		LogFile:         filepath.Join(os.TempDir(), "sitechat.log"),
	}
}

// Validate checks the endpoints. requireGate is false for subcommands that
// skip the access-code screen.
func (c Client) Validate(requireGate bool) error {
	if err := validateEndpoint("create url", c.CreateURL); err != nil {
		return err
	}
	if err := validateEndpoint("list url", c.ListURL); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %s", c.Timeout)
	}
	if requireGate && c.AccessCode == "" && c.AccessCodeParam == "" {
		return fmt.Errorf("config: access code required (set %s or %s)", EnvAccessCode, EnvAccessCodeParam)
	}
	return nil
}

type API struct {
	ProjectsTable string
	DatabaseURL   string
	ParamPrefix   string
	SiteDomain    string
}

func LoadAPI(getenv LookupFunc) (API, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := API{
		ProjectsTable: strings.TrimSpace(getenv(EnvProjectsTable)),
		DatabaseURL:   strings.TrimSpace(getenv(EnvDatabaseURL)),
		ParamPrefix:   strings.TrimSpace(getenv(EnvParamPrefix)),
		SiteDomain:    strings.TrimSpace(getenv(EnvSiteDomain)),
	}
	if cfg.SiteDomain == "" {
		cfg.SiteDomain = DefaultSiteDomain
	}
	if cfg.ProjectsTable == "" && cfg.DatabaseURL == "" {
		return API{}, fmt.Errorf("config: one of %s or %s is required", EnvProjectsTable, EnvDatabaseURL)
	}
	if cfg.ProjectsTable != "" && cfg.DatabaseURL != "" {
		return API{}, fmt.Errorf("config: %s and %s are mutually exclusive", EnvProjectsTable, EnvDatabaseURL)
	}
	return cfg, nil
}

// UsePostgres reports whether projects live in PostgreSQL rather than DynamoDB.
func (c API) UsePostgres() bool {
	return c.DatabaseURL != ""
}

func validateEndpoint(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("config: %s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: %s: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("config: " + name + " must be an absolute http(s) url")
	}
	return nil
}

func envDuration(getenv LookupFunc, key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

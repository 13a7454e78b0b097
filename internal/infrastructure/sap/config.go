package sap

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for images without one

	"github.com/erp/portal/internal/infrastructure/config"
)

const (
	// DefaultTimeout bounds a single Service Layer request
	DefaultTimeout = 60 * time.Second
	// DefaultPageSize is sent as odata.maxpagesize
	DefaultPageSize = 500
)

// Errors for SAP configuration
var (
	ErrConfigMissingBaseURL     = errors.New("sap: base URL is required")
	ErrConfigMissingCompanyDB   = errors.New("sap: company database is required")
	ErrConfigMissingCredentials = errors.New("sap: username and password are required")
	ErrConfigInvalidTimezone    = errors.New("sap: unknown time zone")
)

// Config holds the Service Layer connection settings
type Config struct {
	// BaseURL is the Service Layer root, e.g. https://sap.example.com:50000/b1s/v1
	BaseURL   string
	CompanyDB string
	Username  string
	Password  string
	Timeout   time.Duration
	// PageSize is the preferred number of records per page
	PageSize           int
	InsecureSkipVerify bool
	// Timezone is the zone of the server clock. Dates and times without an
	// offset are read in it. Empty means UTC.
	Timezone string

	location *time.Location
}

// NewConfig builds a client configuration from the application settings
func NewConfig(cfg config.SAPConfig) *Config {
	return &Config{
		BaseURL:            cfg.BaseURL,
		CompanyDB:          cfg.CompanyDB,
		Username:           cfg.Username,
		Password:           cfg.Password,
		Timeout:            cfg.Timeout,
		PageSize:           cfg.PageSize,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Timezone:           cfg.Timezone,
	}
}

// Validate checks required settings and fills in defaults
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrConfigMissingBaseURL
	}
	if c.CompanyDB == "" {
		return ErrConfigMissingCompanyDB
	}
	if c.Username == "" || c.Password == "" {
		return ErrConfigMissingCredentials
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrConfigInvalidTimezone, c.Timezone)
	}
	c.location = loc
	return nil
}

// Location returns the server zone resolved by Validate
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

package pg

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/pkg/errors"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const driverName = "nrpgx"

type Config struct {
	User               string
	Host               string
	Password           string
	Port               int
	DbName             string
	MaxOpenConnections int
	MaxIdleConnections int
}

// Validate ensures the config can produce a connection string
func (c *Config) Validate() error {
	if len(c.User) == 0 {
		return errors.New("user is required")
	}
	if len(c.Host) == 0 {
		return errors.New("host is required")
	}
	if len(c.DbName) == 0 {
		return errors.New("db name is required")
	}
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

// DSN returns the connection URL for the config
func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.DbName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// New returns a pinged DB connection pool using username/password credentials.
// Queries are instrumented with New Relic via the nrpgx driver.
func New(config *Config) (*sql.DB, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid postgres config")
	}

	db, err := sql.Open(driverName, config.DSN())
	if err != nil {
		return nil, err
	}

	if config.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(config.MaxOpenConnections)
	}
	if config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(config.MaxIdleConnections)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}

	return db, nil
}

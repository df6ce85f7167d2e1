package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const defaultPostgresPort = 5432

// DSN returns the libpq key/value connection string. A set URL takes
// precedence over the individual fields; an unparsable URL falls back to them.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		resolved := *c
		if err := resolved.applyURL(); err == nil {
			return resolved.fieldsDSN()
		}
	}
	return c.fieldsDSN()
}

// applyURL overwrites the connection fields with the parts of a postgres://
// or postgresql:// URL. Query parameters other than sslmode land in Options.
func (c *DatabaseConfig) applyURL() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("database url has no host")
	}

	port := defaultPostgresPort
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return fmt.Errorf("invalid port %q in database url", p)
		}
	}

	c.Host = u.Hostname()
	c.Port = port
	c.Database = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		c.User = u.User.Username()
		c.Password, _ = u.User.Password()
	}

	query := u.Query()
	c.SSLMode = query.Get("sslmode")
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	query.Del("sslmode")

	options := make(map[string]string, len(c.Options)+len(query))
	for k, v := range c.Options {
		options[k] = v
	}
	for k := range query {
		options[k] = query.Get(k)
	}
	c.Options = options

	return nil
}

func (c *DatabaseConfig) fieldsDSN() string {
	parts := []string{
		"host=" + dsnValue(c.Host),
		"port=" + strconv.Itoa(c.Port),
		"user=" + dsnValue(c.User),
		"password=" + dsnValue(c.Password),
		"dbname=" + dsnValue(c.Database),
		"sslmode=" + dsnValue(c.SSLMode),
	}

	keys := make([]string, 0, len(c.Options))
	for k := range c.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+dsnValue(c.Options[k]))
	}

	return strings.Join(parts, " ")
}

// dsnValue quotes a libpq value when it is empty or holds spaces, quotes or backslashes
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EndpointConfig identifies one side of the migration: the driver name and a
// DSN-equivalent connection descriptor.
type EndpointConfig struct {
	Driver string
	DSN    string
}

// resolveEndpoint merges flag, config file and positional argument for the
// "source" or "dest" side; the positional argument wins.
func resolveEndpoint(key, positional string) (EndpointConfig, error) {
	ep := EndpointConfig{
		Driver: viper.GetString(key + ".driver"),
		DSN:    viper.GetString(key + ".dsn"),
	}
	if positional != "" {
		ep.DSN = positional
	}
	if ep.DSN == "" {
		return ep, fmt.Errorf("%s.dsn is required (via flag, config or positional argument)", key)
	}
	if ep.Driver == "" {
		ep.Driver = detectDriver(ep.DSN)
	}
	return ep, nil
}

// detectDriver guesses the engine from the DSN shape: URL scheme or
// keyword/value form means postgres, the go-sql-driver address form means
// mysql. Ambiguous DSNs need an explicit driver flag or config key.
func detectDriver(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	case strings.Contains(dsn, "@tcp("), strings.Contains(dsn, "@unix("):
		return "mysql"
	case strings.Contains(dsn, "host="), strings.Contains(dsn, "dbname="), strings.Contains(dsn, "sslmode="):
		return "postgres"
	}
	return "mysql"
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

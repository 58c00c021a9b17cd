package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tixferry/internal/dialect"
	"tixferry/internal/engine"
	"tixferry/internal/schema"
)

var (
	cfgFile string
	verbose bool
	dryRun  bool

	sourceDSN    string
	sourceDriver string
	destDSN      string
	destDriver   string
)

var RootCmd = &cobra.Command{
	Use:   "tixferry",
	Short: "A ticketing database migration tool",
	Long: `tixferry - one-shot ticketing database migration

Copies every user table from a lenient source engine into a schema-compatible
strict destination, repairing attachment payload encodings on the way,
verifying exact row-count parity and resynchronizing destination sequences.`,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./tixferry.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	RootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "perform all reads and checks but mutate nothing")
	RootCmd.PersistentFlags().StringVar(&sourceDSN, "source-dsn", "", "source Database Source Name (DSN)")
	RootCmd.PersistentFlags().StringVar(&sourceDriver, "source-driver", "", "source driver (mysql or postgres, auto-detected from DSN when unset)")
	RootCmd.PersistentFlags().StringVar(&destDSN, "dest-dsn", "", "destination Database Source Name (DSN)")
	RootCmd.PersistentFlags().StringVar(&destDriver, "dest-driver", "", "destination driver (mysql or postgres, auto-detected from DSN when unset)")

	viper.BindPFlag("source.dsn", RootCmd.PersistentFlags().Lookup("source-dsn"))
	viper.BindPFlag("source.driver", RootCmd.PersistentFlags().Lookup("source-driver"))
	viper.BindPFlag("dest.dsn", RootCmd.PersistentFlags().Lookup("dest-dsn"))
	viper.BindPFlag("dest.driver", RootCmd.PersistentFlags().Lookup("dest-driver"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if ex, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("tixferry")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

// openEndpoint connects one side and bundles it with its dialect and
// inspector. Connection failures are fatal; there are no retries.
func openEndpoint(ep EndpointConfig) (*engine.Endpoint, error) {
	db, err := sql.Open(ep.Driver, ep.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", ep.Driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect (%s): %w", ep.Driver, err)
	}

	d := dialect.GetDialect(ep.Driver)

	schemaName := ""
	if ep.Driver == "mysql" {
		if err := db.QueryRow("SELECT DATABASE()").Scan(&schemaName); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to get database name: %w", err)
		}
		if schemaName == "" {
			db.Close()
			return nil, fmt.Errorf("no database selected in DSN")
		}
	}

	return &engine.Endpoint{
		DB:        db,
		Dialect:   d,
		Inspector: schema.NewInspector(db, d, schemaName),
	}, nil
}

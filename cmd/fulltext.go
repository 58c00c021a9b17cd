package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tixferry/internal/fulltext"
)

var fulltextCmd = &cobra.Command{
	Use:   "fulltext",
	Short: "Manage the destination-side trigram search objects",
}

var fulltextAddCmd = &cobra.Command{
	Use:   "add [dest-dsn]",
	Short: "Install trigram functions, triggers and GIN indexes on the destination",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cleanup, err := destProvisioner(argAt(args, 0))
		if err != nil {
			return err
		}
		defer cleanup()
		return p.Install()
	},
}

var fulltextRemoveCmd = &cobra.Command{
	Use:   "remove [dest-dsn]",
	Short: "Remove the trigram search objects from the destination",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cleanup, err := destProvisioner(argAt(args, 0))
		if err != nil {
			return err
		}
		defer cleanup()
		return p.Remove()
	},
}

func destProvisioner(positional string) (*fulltext.Provisioner, func(), error) {
	log := newLogger()

	dstCfg, err := resolveEndpoint("dest", positional)
	if err != nil {
		return nil, nil, err
	}
	if dstCfg.Driver != "postgres" {
		return nil, nil, fmt.Errorf("fulltext provisioning requires a postgres destination, got %s", dstCfg.Driver)
	}

	dst, err := openEndpoint(dstCfg)
	if err != nil {
		return nil, nil, err
	}
	return fulltext.New(dst.DB, dryRun, log), func() { dst.DB.Close() }, nil
}

func init() {
	RootCmd.AddCommand(fulltextCmd)
	fulltextCmd.AddCommand(fulltextAddCmd)
	fulltextCmd.AddCommand(fulltextRemoveCmd)
}

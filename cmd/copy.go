package cmd

import (
	"fmt"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tixferry/internal/engine"
)

var (
	chunkSize      int
	strictEncoding bool
)

var copyCmd = &cobra.Command{
	Use:   "copy [source-dsn] [dest-dsn]",
	Short: "Copy all rows from the source database to the destination",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()

		srcCfg, err := resolveEndpoint("source", argAt(args, 0))
		if err != nil {
			return err
		}
		dstCfg, err := resolveEndpoint("dest", argAt(args, 1))
		if err != nil {
			return err
		}

		src, err := openEndpoint(srcCfg)
		if err != nil {
			return err
		}
		defer src.DB.Close()

		dst, err := openEndpoint(dstCfg)
		if err != nil {
			return err
		}
		defer dst.DB.Close()

		cfg := engine.Config{
			ChunkSize:      viper.GetInt("settings.chunk_size"),
			DryRun:         dryRun,
			StrictEncoding: strictEncoding,
		}

		log.Info().Str("source", srcCfg.Driver).Str("dest", dstCfg.Driver).Msg("connected")
		if dryRun {
			log.Info().Msg("dry-run mode active: no data will be written")
		}

		orch := engine.NewOrchestrator(cfg, src, dst, log)

		start := time.Now()
		onTable := func() {}
		if !dryRun && !verbose {
			uiprogress.Start()
			bar := uiprogress.AddBar(100).AppendCompleted().PrependElapsed()
			bar.PrependFunc(func(b *uiprogress.Bar) string {
				return "Copying: "
			})
			onTable = func() { bar.Incr() }
			defer uiprogress.Stop()
		}

		results, runErr := orch.Run(onTable)

		printSummary(results, time.Since(start))
		return runErr
	},
}

func printSummary(results []engine.TableResult, elapsed time.Duration) {
	if len(results) == 0 {
		return
	}
	fmt.Printf("\n📊 Summary Report:\n")
	var total int64
	for i, r := range results {
		icon := "✓"
		if r.Status != "copied" && r.Status != "read (dry-run)" {
			icon = "!"
		}
		fmt.Printf("[%s] [%02d/%02d] %-24s : %d rows - %s\n", icon, i+1, len(results), r.Table, r.Rows, r.Status)
		total += r.Rows
	}
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Total rows: %d (elapsed: %s)\n", total, elapsed)
}

func init() {
	RootCmd.AddCommand(copyCmd)

	copyCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "rows per key-range chunk (overrides config)")
	copyCmd.Flags().BoolVar(&strictEncoding, "strict-encoding", false, "treat unresolvable attachment charsets as fatal instead of falling back to base64")

	viper.BindPFlag("settings.chunk_size", copyCmd.Flags().Lookup("chunk-size"))
	viper.SetDefault("settings.chunk_size", engine.DefaultChunkSize)
}

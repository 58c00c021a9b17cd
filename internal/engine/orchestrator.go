package engine

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// PlanEntry is one table in the resolved migration plan, tagged with the
// sides it exists on. Names are normalized to lower case.
type PlanEntry struct {
	Name     string
	InSource bool
	InDest   bool
}

// PlanTables builds the deduplicated, case-insensitive union of the two
// table lists: source ordering first, destination-only names appended.
func PlanTables(srcTables, dstTables []string) []PlanEntry {
	var plan []PlanEntry
	index := make(map[string]int)

	for _, name := range srcTables {
		key := strings.ToLower(name)
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = len(plan)
		plan = append(plan, PlanEntry{Name: key, InSource: true})
	}
	for _, name := range dstTables {
		key := strings.ToLower(name)
		if i, ok := index[key]; ok {
			plan[i].InDest = true
			continue
		}
		index[key] = len(plan)
		plan = append(plan, PlanEntry{Name: key, InDest: true})
	}
	return plan
}

// BackingTable derives the table a destination sequence backs by stripping
// the conventional suffix from the sequence name.
func BackingTable(seq string) (string, bool) {
	for _, suffix := range []string{"_id_seq", "_id_s"} {
		if table := strings.TrimSuffix(seq, suffix); table != seq && table != "" {
			return table, true
		}
	}
	return "", false
}

// TableResult is the per-table outcome collected for the summary report.
type TableResult struct {
	Table  string
	Rows   int64
	Status string
}

// Orchestrator drives the whole migration: plan the table set, run the
// delete-then-load cycle per table, then resynchronize destination sequences.
// Tables are processed serially; any fatal error aborts the run.
type Orchestrator struct {
	cfg      Config
	src, dst *Endpoint
	transfer *Transfer
	log      zerolog.Logger
}

func NewOrchestrator(cfg Config, src, dst *Endpoint, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		src:      src,
		dst:      dst,
		transfer: NewTransfer(cfg, log),
		log:      log,
	}
}

// Run executes the migration. onTable, if non-nil, is called once per planned
// table for progress reporting.
func (o *Orchestrator) Run(onTable func()) ([]TableResult, error) {
	srcTables, err := o.src.Inspector.ListUserTables()
	if err != nil {
		return nil, err
	}
	dstTables, err := o.dst.Inspector.ListUserTables()
	if err != nil {
		return nil, err
	}

	plan := PlanTables(srcTables, dstTables)
	var results []TableResult

	for _, entry := range plan {
		result, err := o.runTable(entry)
		results = append(results, result)
		if onTable != nil {
			onTable()
		}
		if err != nil {
			return results, err
		}
	}

	if err := o.ResyncSequences(plan); err != nil {
		return results, err
	}
	return results, nil
}

func (o *Orchestrator) runTable(entry PlanEntry) (TableResult, error) {
	switch {
	case !entry.InDest:
		o.log.Warn().Str("table", entry.Name).Msg("table missing on destination, skipping")
		return TableResult{Table: entry.Name, Status: "skipped (missing on destination)"}, nil
	case !entry.InSource:
		o.log.Warn().Str("table", entry.Name).Msg("table missing on source, skipping")
		return TableResult{Table: entry.Name, Status: "skipped (missing on source)"}, nil
	}

	rows, err := o.transfer.CopyTable(o.src, o.dst, entry.Name, nil)
	if err != nil {
		return TableResult{Table: entry.Name, Rows: rows, Status: "failed"}, err
	}

	status := "copied"
	if o.cfg.DryRun {
		status = "read (dry-run)"
	}
	o.log.Info().Str("table", entry.Name).Int64("rows", rows).Msg(status)
	return TableResult{Table: entry.Name, Rows: rows, Status: status}, nil
}

// ResyncSequences resets every destination sequence to max(id)+1 of its
// backing table, or 1 when the table is empty, so the next generated key
// cannot collide with copied rows.
func (o *Orchestrator) ResyncSequences(plan []PlanEntry) error {
	resetQuery := o.dst.Dialect.ResetSequenceQuery()
	if resetQuery == "" {
		return nil
	}

	seqs, err := o.dst.Inspector.ListUserSequences()
	if err != nil {
		return err
	}

	inDest := make(map[string]bool)
	for _, entry := range plan {
		if entry.InDest {
			inDest[entry.Name] = true
		}
	}

	for _, seq := range seqs {
		table, ok := BackingTable(seq)
		if !ok || !inDest[table] {
			o.log.Debug().Str("sequence", seq).Msg("no backing table, skipping")
			continue
		}

		var max sql.NullInt64
		if err := o.dst.DB.QueryRow(o.dst.Dialect.MaxKeyQuery(table, keyColumn)).Scan(&max); err != nil {
			return fmt.Errorf("failed to read max key of %s: %w", table, err)
		}
		next := max.Int64 + 1 // 1 when the table is empty

		if o.cfg.DryRun {
			o.log.Info().Str("sequence", seq).Int64("next", next).Msg("dry-run: would reset sequence")
			continue
		}
		if _, err := o.dst.DB.Exec(resetQuery, seq, next); err != nil {
			return fmt.Errorf("failed to reset sequence %s: %w", seq, err)
		}
		o.log.Debug().Str("sequence", seq).Int64("next", next).Msg("sequence reset")
	}
	return nil
}

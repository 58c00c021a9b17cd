// Package fulltext installs or removes the destination-side trigram search
// objects. The statements are issued verbatim and in order; the engine does
// not interpret them.
package fulltext

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

var installStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS plpgsql`,

	`CREATE OR REPLACE FUNCTION trigrams(src text) RETURNS text AS $$
DECLARE
	word text;
	result text := '';
BEGIN
	FOREACH word IN ARRAY regexp_split_to_array(lower(coalesce(src, '')), '\W+') LOOP
		FOR i IN 1 .. greatest(length(word) - 2, 0) LOOP
			result := result || ' ' || substr(word, i, 3);
		END LOOP;
	END LOOP;
	RETURN result;
END;
$$ LANGUAGE plpgsql IMMUTABLE`,

	`CREATE OR REPLACE FUNCTION trigrams_tsvector(src text) RETURNS tsvector AS $$
BEGIN
	RETURN to_tsvector('simple', trigrams(src));
END;
$$ LANGUAGE plpgsql IMMUTABLE`,

	`CREATE OR REPLACE FUNCTION trigrams_tsquery(src text) RETURNS tsquery AS $$
BEGIN
	RETURN to_tsquery('simple', regexp_replace(trim(trigrams(src)), '\s+', ' & ', 'g'));
END;
$$ LANGUAGE plpgsql IMMUTABLE`,

	`ALTER TABLE tickets ADD COLUMN IF NOT EXISTS subject_trigrams tsvector`,

	`ALTER TABLE attachments ADD COLUMN IF NOT EXISTS content_trigrams tsvector`,

	`CREATE OR REPLACE FUNCTION tickets_trigrams_update() RETURNS trigger AS $$
BEGIN
	NEW.subject_trigrams := trigrams_tsvector(NEW.subject);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`,

	`CREATE OR REPLACE FUNCTION attachments_trigrams_update() RETURNS trigger AS $$
BEGIN
	IF NEW.contentencoding IS DISTINCT FROM 'base64' THEN
		NEW.content_trigrams := trigrams_tsvector(convert_from(NEW.content, 'UTF8'));
	ELSE
		NEW.content_trigrams := NULL;
	END IF;
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`,

	`CREATE TRIGGER tickets_trigrams_trg BEFORE INSERT OR UPDATE ON tickets
FOR EACH ROW EXECUTE PROCEDURE tickets_trigrams_update()`,

	`CREATE TRIGGER attachments_trigrams_trg BEFORE INSERT OR UPDATE ON attachments
FOR EACH ROW EXECUTE PROCEDURE attachments_trigrams_update()`,

	`CREATE INDEX tickets_subject_trigrams_idx ON tickets USING gin(subject_trigrams)`,

	`CREATE INDEX attachments_content_trigrams_idx ON attachments USING gin(content_trigrams)`,
}

var removeStatements = []string{
	`DROP INDEX IF EXISTS attachments_content_trigrams_idx`,
	`DROP INDEX IF EXISTS tickets_subject_trigrams_idx`,
	`DROP TRIGGER IF EXISTS attachments_trigrams_trg ON attachments`,
	`DROP TRIGGER IF EXISTS tickets_trigrams_trg ON tickets`,
	`DROP FUNCTION IF EXISTS attachments_trigrams_update()`,
	`DROP FUNCTION IF EXISTS tickets_trigrams_update()`,
	`ALTER TABLE attachments DROP COLUMN IF EXISTS content_trigrams`,
	`ALTER TABLE tickets DROP COLUMN IF EXISTS subject_trigrams`,
	`DROP FUNCTION IF EXISTS trigrams_tsquery(text)`,
	`DROP FUNCTION IF EXISTS trigrams_tsvector(text)`,
	`DROP FUNCTION IF EXISTS trigrams(text)`,
}

// Provisioner issues the administrative statements against the destination.
type Provisioner struct {
	db     *sql.DB
	dryRun bool
	log    zerolog.Logger
}

func New(db *sql.DB, dryRun bool, log zerolog.Logger) *Provisioner {
	return &Provisioner{db: db, dryRun: dryRun, log: log}
}

// Install provisions the plpgsql language and creates the trigram functions,
// maintenance triggers, generated columns and GIN indexes. The first failing
// statement aborts the remainder.
func (p *Provisioner) Install() error {
	return p.run(installStatements)
}

// Remove drops everything Install created, in reverse dependency order. The
// plpgsql language stays installed; other database objects may depend on it.
func (p *Provisioner) Remove() error {
	return p.run(removeStatements)
}

func (p *Provisioner) run(statements []string) error {
	for _, stmt := range statements {
		if p.dryRun {
			p.log.Info().Str("statement", stmt).Msg("dry-run: would execute")
			continue
		}
		if _, err := p.db.Exec(stmt); err != nil {
			return fmt.Errorf("administrative statement failed (%.60s...): %w", stmt, err)
		}
		p.log.Debug().Str("statement", stmt).Msg("executed")
	}
	return nil
}

// InstallStatements and RemoveStatements expose the statement lists for
// inspection and tests.
func InstallStatements() []string { return append([]string(nil), installStatements...) }
func RemoveStatements() []string  { return append([]string(nil), removeStatements...) }

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/evidence-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS evidence_records (
	company    TEXT NOT NULL,
	link       TEXT NOT NULL,
	pages      TEXT NOT NULL DEFAULT '[]',
	summary    TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (company, link)
);
`

const sqliteUpsert = `INSERT INTO evidence_records (company, link, pages, summary, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (company, link) DO UPDATE SET
	pages = excluded.pages,
	summary = excluded.summary,
	updated_at = excluded.updated_at`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReadPartition(ctx context.Context, company model.CompanyIdentity) ([]model.EvidenceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT link, pages, summary FROM evidence_records WHERE company = ? ORDER BY link`,
		company.String(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read partition %s", company)
	}
	defer rows.Close() //nolint:errcheck

	recs := []model.EvidenceRecord{}
	for rows.Next() {
		var (
			link, pages, summary string
		)
		if err := rows.Scan(&link, &pages, &summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		ps, err := decodePages([]byte(pages))
		if err != nil {
			return nil, err
		}
		recs = append(recs, model.EvidenceRecord{Link: model.CandidateLink(link), Pages: ps, Summary: summary})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate records")
	}
	return recs, nil
}

func (s *SQLiteStore) WriteEntry(ctx context.Context, company model.CompanyIdentity, rec model.EvidenceRecord) error {
	pages, err := encodePages(rec.Pages)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteUpsert,
		company.String(), rec.Link.String(), string(pages), rec.Summary, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: write entry %s", rec.Link)
}

func (s *SQLiteStore) WriteEntries(ctx context.Context, company model.CompanyIdentity, recs []model.EvidenceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, rec := range recs {
		pages, err := encodePages(rec.Pages)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, company.String(), rec.Link.String(), string(pages), rec.Summary, now); err != nil {
			return eris.Wrapf(err, "sqlite: write entry %s", rec.Link)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) DeletePartition(ctx context.Context, company model.CompanyIdentity) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM evidence_records WHERE company = ?`, company.String())
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete partition %s", company)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return n, nil
}

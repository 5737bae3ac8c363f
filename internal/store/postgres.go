package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/evidence-cli/internal/db"
	"github.com/sells-group/evidence-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgReadPartition = `SELECT link, pages, summary FROM evidence_records WHERE company = $1 ORDER BY link COLLATE "C"`
	pgUpsert        = `INSERT INTO evidence_records (company, link, pages, summary, updated_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (company, link) DO UPDATE SET pages = EXCLUDED.pages, summary = EXCLUDED.summary, updated_at = EXCLUDED.updated_at`
	pgDeletePartition = `DELETE FROM evidence_records WHERE company = $1`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"read_partition":   pgReadPartition,
	"upsert_record":    pgUpsert,
	"delete_partition": pgDeletePartition,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS evidence_records (
	company    TEXT NOT NULL,
	link       TEXT NOT NULL,
	pages      JSONB NOT NULL DEFAULT '[]'::jsonb,
	summary    TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (company, link)
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ReadPartition(ctx context.Context, company model.CompanyIdentity) ([]model.EvidenceRecord, error) {
	rows, err := s.pool.Query(ctx, pgReadPartition, company.String())
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: read partition %s", company)
	}
	defer rows.Close()

	recs := []model.EvidenceRecord{}
	for rows.Next() {
		var (
			link, summary string
			pages         []byte
		)
		if err := rows.Scan(&link, &pages, &summary); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		ps, err := decodePages(pages)
		if err != nil {
			return nil, err
		}
		recs = append(recs, model.EvidenceRecord{Link: model.CandidateLink(link), Pages: ps, Summary: summary})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate records")
	}
	model.SortRecords(recs)
	return recs, nil
}

func (s *PostgresStore) WriteEntry(ctx context.Context, company model.CompanyIdentity, rec model.EvidenceRecord) error {
	pages, err := encodePages(rec.Pages)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, pgUpsert, company.String(), rec.Link.String(), pages, rec.Summary, time.Now().UTC())
	return eris.Wrapf(err, "postgres: write entry %s", rec.Link)
}

func (s *PostgresStore) WriteEntries(ctx context.Context, company model.CompanyIdentity, recs []model.EvidenceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		pages, err := encodePages(rec.Pages)
		if err != nil {
			return err
		}
		rows = append(rows, []any{company.String(), rec.Link.String(), string(pages), rec.Summary, now})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "evidence_records",
		Columns:      []string{"company", "link", "pages", "summary", "updated_at"},
		ConflictKeys: []string{"company", "link"},
	}, rows)
	return eris.Wrapf(err, "postgres: write entries %s", company)
}

func (s *PostgresStore) DeletePartition(ctx context.Context, company model.CompanyIdentity) (int64, error) {
	tag, err := s.pool.Exec(ctx, pgDeletePartition, company.String())
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete partition %s", company)
	}
	return tag.RowsAffected(), nil
}

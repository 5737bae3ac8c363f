// Package store persists evidence records partitioned by company.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/evidence-cli/internal/model"
)

// Store is the persistent evidence cache. Each company is a partition
// holding at most one record per candidate link.
type Store interface {
	// ReadPartition returns every record stored for company, ordered by
	// link. An unknown company yields an empty slice.
	ReadPartition(ctx context.Context, company model.CompanyIdentity) ([]model.EvidenceRecord, error)
	// WriteEntry creates or fully replaces the record for (company, rec.Link).
	WriteEntry(ctx context.Context, company model.CompanyIdentity, rec model.EvidenceRecord) error
	// WriteEntries writes several records in one batch.
	WriteEntries(ctx context.Context, company model.CompanyIdentity, recs []model.EvidenceRecord) error
	// DeletePartition drops every record of company and returns how many
	// were removed.
	DeletePartition(ctx context.Context, company model.CompanyIdentity) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Driver names for the store.driver setting.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

func encodePages(p model.PageSet) ([]byte, error) {
	if p == nil {
		p = model.PageSet{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode pages")
	}
	return b, nil
}

func decodePages(b []byte) (model.PageSet, error) {
	if len(b) == 0 {
		return model.PageSet{}, nil
	}
	var p model.PageSet
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, eris.Wrap(err, "store: decode pages")
	}
	if p == nil {
		p = model.PageSet{}
	}
	return p, nil
}

package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sells-group/evidence-cli/internal/model"
)

// MongoCollection is the collection holding evidence documents.
const MongoCollection = "evidence_records"

// MongoStore implements Store on a MongoDB collection. Each document holds
// one (company, link) record.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoRecord struct {
	Company   string    `bson:"company"`
	Link      string    `bson:"link"`
	Pages     []int     `bson:"pages"`
	Summary   string    `bson:"summary"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongo connects to uri and uses database for storage.
func NewMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, eris.Wrap(err, "mongo: connect")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, eris.Wrap(err, "mongo: ping")
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(MongoCollection),
	}, nil
}

// newMongoFromCollection wraps an existing collection.
func newMongoFromCollection(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "company", Value: 1}, {Key: "link", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return eris.Wrap(err, "mongo: create index")
}

func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return eris.Wrap(s.client.Disconnect(ctx), "mongo: disconnect")
}

func (s *MongoStore) ReadPartition(ctx context.Context, company model.CompanyIdentity) ([]model.EvidenceRecord, error) {
	cur, err := s.coll.Find(ctx,
		bson.M{"company": company.String()},
		options.Find().SetSort(bson.D{{Key: "link", Value: 1}}),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "mongo: read partition %s", company)
	}
	defer cur.Close(ctx) //nolint:errcheck

	recs := []model.EvidenceRecord{}
	for cur.Next(ctx) {
		var doc mongoRecord
		if err := cur.Decode(&doc); err != nil {
			return nil, eris.Wrap(err, "mongo: decode record")
		}
		pages := model.PageSet(doc.Pages)
		if pages == nil {
			pages = model.PageSet{}
		}
		recs = append(recs, model.EvidenceRecord{
			Link:    model.CandidateLink(doc.Link),
			Pages:   pages,
			Summary: doc.Summary,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, eris.Wrap(err, "mongo: iterate records")
	}
	// Sort again in Go: server collation may differ from byte order.
	model.SortRecords(recs)
	return recs, nil
}

func (s *MongoStore) WriteEntry(ctx context.Context, company model.CompanyIdentity, rec model.EvidenceRecord) error {
	filter, update := upsertModel(company, rec, time.Now().UTC())
	_, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return eris.Wrapf(err, "mongo: write entry %s", rec.Link)
}

func (s *MongoStore) WriteEntries(ctx context.Context, company model.CompanyIdentity, recs []model.EvidenceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(recs))
	for _, rec := range recs {
		filter, update := upsertModel(company, rec, now)
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(update).
			SetUpsert(true))
	}
	_, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	return eris.Wrapf(err, "mongo: write entries %s", company)
}

func (s *MongoStore) DeletePartition(ctx context.Context, company model.CompanyIdentity) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"company": company.String()})
	if err != nil {
		return 0, eris.Wrapf(err, "mongo: delete partition %s", company)
	}
	return res.DeletedCount, nil
}

func upsertModel(company model.CompanyIdentity, rec model.EvidenceRecord, now time.Time) (bson.M, bson.M) {
	pages := []int(rec.Pages)
	if pages == nil {
		pages = []int{}
	}
	filter := bson.M{"company": company.String(), "link": rec.Link.String()}
	update := bson.M{"$set": mongoRecord{
		Company:   company.String(),
		Link:      rec.Link.String(),
		Pages:     pages,
		Summary:   rec.Summary,
		UpdatedAt: now,
	}}
	return filter, update
}

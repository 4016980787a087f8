package sink

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/pipeline"
	"github.com/kbukum/tablemut/table"
)

const mongoBatchSize = 500

// Mongo stores each row as a document keyed by column name.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
	mode   Mode
	log    *logger.Logger
}

// OpenMongo connects to a MongoDB target.
func OpenMongo(ctx context.Context, t Target, log *logger.Logger) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(t.DSN))
	if err != nil {
		return nil, errors.ResourceAcquisition("mongodb", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.ResourceAcquisition("mongodb", err)
	}
	return &Mongo{
		client: client,
		coll:   client.Database(t.Database).Collection(t.Table),
		mode:   t.Mode,
		log:    log.WithFields(logger.Fields("collection", t.Table, "database", t.Database)),
	}, nil
}

// Write inserts the rows of t in batches.
func (s *Mongo) Write(ctx context.Context, t table.Table) (int, error) {
	cols := ColumnNames(t.Header())
	if s.mode == ModeReplace {
		if err := s.coll.Drop(ctx); err != nil {
			return 0, err
		}
	}
	rows, err := table.Stream(t)
	if err != nil {
		return 0, err
	}
	rows = warnLongRows(rows, len(cols), s.log)

	n := 0
	err = pipeline.ForEach(ctx, pipeline.Batch(rows, mongoBatchSize), func(ctx context.Context, batch []table.Row) error {
		docs := make([]any, len(batch))
		for i, row := range batch {
			docs[i] = Document(cols, row)
		}
		if _, err := s.coll.InsertMany(ctx, docs); err != nil {
			return err
		}
		n += len(batch)
		return nil
	})
	if err != nil {
		return n, err
	}
	s.log.Debug("Documents stored", logger.Fields(logger.FieldRows, n, "mode", string(s.mode)))
	return n, nil
}

// Document builds the document for one row. Cells missing from a short row
// are omitted; cells beyond the header are dropped.
func Document(cols []string, row table.Row) bson.D {
	doc := make(bson.D, 0, len(cols))
	for i, c := range cols {
		if i >= len(row) {
			break
		}
		doc = append(doc, bson.E{Key: c, Value: row[i]})
	}
	return doc
}

// Close disconnects the client.
func (s *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

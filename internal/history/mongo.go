package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultDatabase is used when the connection URI names no database.
const DefaultDatabase = "forensicwatch"

// MongoStore keeps records in the analysisHistory collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects to uri and verifies the server answers.
func OpenMongo(ctx context.Context, uri string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(DatabaseName(uri)).Collection(CollectionName),
	}, nil
}

// DatabaseName extracts the database from a connection URI.
func DatabaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return DefaultDatabase
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return DefaultDatabase
	}
	return name
}

type document struct {
	UID       string    `bson:"uid"`
	JobID     string    `bson:"jobId"`
	FileName  string    `bson:"fileName,omitempty"`
	Result    any       `bson:"result,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

type storedDocument struct {
	UID       string        `bson:"uid"`
	JobID     string        `bson:"jobId"`
	FileName  string        `bson:"fileName"`
	Result    bson.RawValue `bson:"result"`
	CreatedAt time.Time     `bson:"createdAt"`
}

// toDocument stores the result as native BSON so it can be queried.
func toDocument(r Record) (document, error) {
	d := document{
		UID:       r.UID,
		JobID:     r.JobID,
		FileName:  r.FileName,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Result) > 0 {
		var v any
		if err := json.Unmarshal(r.Result, &v); err != nil {
			return d, fmt.Errorf("result is not JSON: %w", err)
		}
		d.Result = v
	}
	return d, nil
}

func fromDocument(d storedDocument) (Record, error) {
	r := Record{
		UID:       d.UID,
		JobID:     d.JobID,
		FileName:  d.FileName,
		CreatedAt: d.CreatedAt.UTC(),
	}
	switch d.Result.Type {
	case 0, bson.TypeNull:
	case bson.TypeEmbeddedDocument:
		js, err := bson.MarshalExtJSON(bson.Raw(d.Result.Value), false, false)
		if err != nil {
			return r, err
		}
		r.Result = js
	default:
		var v any
		if err := d.Result.Unmarshal(&v); err != nil {
			return r, err
		}
		js, err := json.Marshal(v)
		if err != nil {
			return r, err
		}
		r.Result = js
	}
	return r, nil
}

func (s *MongoStore) Save(ctx context.Context, r Record) error {
	doc, err := toDocument(r)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, uid string, limit int) ([]Record, error) {
	if uid == "" {
		return nil, ErrNoUser
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.M{"uid": uid}, opts)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer cur.Close(ctx)

	var out []Record
	for cur.Next(ctx) {
		var d storedDocument
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode history record: %w", err)
		}
		r, err := fromDocument(d)
		if err != nil {
			return nil, fmt.Errorf("decode history result for %s: %w", d.JobID, err)
		}
		out = append(out, r)
	}
	return out, cur.Err()
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/manifest"
	"github.com/depreview/depreview/pkg/registry"
)

const defaultMongoDatabase = "depreview"

// MongoStore persists to MongoDB. List ids come from a counters collection
// so they stay sequential like the SQL backend's.
type MongoStore struct {
	client   *mongo.Client
	lists    *mongo.Collection
	packages *mongo.Collection
	counters *mongo.Collection
}

type listDoc struct {
	ID        int64         `bson:"_id"`
	CreatedAt time.Time     `bson:"created_at"`
	Registry  string        `bson:"registry"`
	Format    string        `bson:"format"`
	Entries   []entryRecord `bson:"entries"`
}

type packageDoc struct {
	ID          string             `bson:"_id"`
	Registry    string             `bson:"registry"`
	Name        string             `bson:"name"`
	OrigName    string             `bson:"orig_name"`
	Author      string             `bson:"author,omitempty"`
	Description string             `bson:"description,omitempty"`
	Repository  string             `bson:"repository,omitempty"`
	LastRefresh time.Time          `bson:"last_refresh"`
	Versions    []registry.Version `bson:"versions"`
}

type counterDoc struct {
	Seq int64 `bson:"seq"`
}

// OpenMongo connects to uri and uses database db.
func OpenMongo(ctx context.Context, uri, db string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return NewMongoStore(client, db), nil
}

// NewMongoStore uses an already connected client.
func NewMongoStore(client *mongo.Client, db string) *MongoStore {
	d := client.Database(db)
	return &MongoStore{
		client:   client,
		lists:    d.Collection("lists"),
		packages: d.Collection("packages"),
		counters: d.Collection("counters"),
	}
}

func (s *MongoStore) nextID(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var c counterDoc
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return c.Seq, nil
}

func (s *MongoStore) CreateList(ctx context.Context, reg string, format manifest.Format, entries []manifest.Entry) (*List, error) {
	id, err := s.nextID(ctx, "lists")
	if err != nil {
		return nil, err
	}
	doc := listDoc{
		ID:        id,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Registry:  reg,
		Format:    string(format),
		Entries:   make([]entryRecord, len(entries)),
	}
	for i, e := range entries {
		doc.Entries[i] = toRecord(e)
	}
	if _, err := s.lists.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert list: %w", err)
	}
	return doc.list(), nil
}

func (s *MongoStore) GetList(ctx context.Context, id uint64) (*List, error) {
	var doc listDoc
	err := s.lists.FindOne(ctx, bson.M{"_id": int64(id)}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, listNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find list: %w", err)
	}
	return doc.list(), nil
}

func (s *MongoStore) GetPackage(ctx context.Context, id registry.Identity) (*Package, error) {
	var doc packageDoc
	err := s.packages.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, packageNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find package: %w", err)
	}
	return doc.pkg(), nil
}

// PutPackage reads, merges and replaces the package document. Callers hold
// the package's Locker key, so the read-modify-write does not race.
func (s *MongoStore) PutPackage(ctx context.Context, p *Package) error {
	versions := p.Versions
	if old, err := s.GetPackage(ctx, p.Identity); err == nil {
		versions = MergeVersions(old.Versions, p.Versions)
	} else if !errors.Is(err, errors.ErrCodePackageNotFound) {
		return err
	}

	doc := packageDoc{
		ID:          p.Identity.String(),
		Registry:    p.Registry,
		Name:        p.Name,
		OrigName:    p.OrigName,
		Author:      p.Author,
		Description: p.Description,
		Repository:  p.Repository,
		LastRefresh: p.LastRefresh.UTC(),
		Versions:    make([]registry.Version, 0, len(versions)),
	}
	for _, v := range versions {
		doc.Versions = append(doc.Versions, v)
	}

	_, err := s.packages.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace package: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (d listDoc) list() *List {
	l := &List{
		ID:        uint64(d.ID),
		CreatedAt: d.CreatedAt,
		Registry:  d.Registry,
		Format:    manifest.Format(d.Format),
		Entries:   make([]manifest.Entry, len(d.Entries)),
	}
	for i, r := range d.Entries {
		l.Entries[i] = r.entry()
	}
	return l
}

func (d packageDoc) pkg() *Package {
	return &Package{
		Identity:    registry.Identity{Registry: d.Registry, Name: d.Name},
		OrigName:    d.OrigName,
		Author:      d.Author,
		Description: d.Description,
		Repository:  d.Repository,
		LastRefresh: d.LastRefresh,
		Versions:    VersionMap(d.Versions),
	}
}

var _ Store = (*MongoStore)(nil)

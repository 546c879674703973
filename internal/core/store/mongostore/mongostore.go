// Package mongostore keeps AI configurations in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/metrics"
)

const (
	DefaultDatabase   = "nexus"
	DefaultCollection = "ai_configurations"

	connectTimeout = 10 * time.Second
)

// Options selects the deployment and collection.
type Options struct {
	URI        string
	Database   string
	Collection string
}

// Store implements ailink.Repository on a MongoDB collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ ailink.Repository = (*Store)(nil)

// document is the persisted shape. Roles are stored as an array so membership
// is an exact element match.
type document struct {
	ID            string    `bson:"_id"`
	Provider      string    `bson:"provider"`
	APIKey        string    `bson:"api_key"`
	BaseURL       *string   `bson:"base_url,omitempty"`
	ModelID       string    `bson:"model_id"`
	AssignedRoles []string  `bson:"assigned_roles"`
	OwnerID       string    `bson:"owner_id"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

// Open connects, verifies the primary is reachable and ensures the lookup index.
func Open(ctx context.Context, opts Options) (*Store, error) {
	uri := strings.TrimSpace(opts.URI)
	if uri == "" {
		return nil, errors.New("mongodb uri is required")
	}
	if strings.TrimSpace(opts.Database) == "" {
		opts.Database = DefaultDatabase
	}
	if strings.TrimSpace(opts.Collection) == "" {
		opts.Collection = DefaultCollection
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(connectTimeout)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Store{
		client:     client,
		collection: client.Database(opts.Database).Collection(opts.Collection),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "assigned_roles", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create mongodb indexes: %w", err)
	}
	return nil
}

// FindDedicated returns the earliest configuration of ownerID whose role list contains role.
func (s *Store) FindDedicated(ctx context.Context, ownerID string, role ailink.Role) (*ailink.Configuration, error) {
	role = ailink.NormalizeRole(role)
	if !ailink.ValidRole(role) {
		return nil, nil
	}
	return s.findFirst(ctx, dedicatedFilter(ownerID, role))
}

// FindEarliest returns the oldest configuration owned by ownerID.
func (s *Store) FindEarliest(ctx context.Context, ownerID string) (*ailink.Configuration, error) {
	return s.findFirst(ctx, ownerFilter(ownerID))
}

func (s *Store) findFirst(ctx context.Context, filter bson.M) (*ailink.Configuration, error) {
	var doc document
	err := s.collection.FindOne(ctx, filter, options.FindOne().SetSort(creationOrder())).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find configuration: %w", err)
	}
	return fromDocument(doc), nil
}

// CreateConfiguration inserts cfg, assigning an ID and timestamps when unset.
func (s *Store) CreateConfiguration(ctx context.Context, cfg *ailink.Configuration) error {
	if cfg == nil {
		return errors.New("configuration is required")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	cfg.UpdatedAt = cfg.CreatedAt

	if _, err := s.collection.InsertOne(ctx, toDocument(*cfg)); err != nil {
		return fmt.Errorf("insert configuration: %w", err)
	}
	metrics.RecordConfigurationWrite("create")
	return nil
}

// GetConfiguration returns a configuration by ID, or nil when absent.
func (s *Store) GetConfiguration(ctx context.Context, id string) (*ailink.Configuration, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("configuration id is required")
	}
	return s.findFirst(ctx, bson.M{"_id": id})
}

// ListConfigurations returns configurations in creation order. An empty ownerID lists all.
func (s *Store) ListConfigurations(ctx context.Context, ownerID string) ([]ailink.Configuration, error) {
	filter := bson.M{}
	if owner := strings.TrimSpace(ownerID); owner != "" {
		filter = ownerFilter(owner)
	}
	sort := append(bson.D{{Key: "owner_id", Value: 1}}, creationOrder()...)

	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	defer cursor.Close(ctx) // nolint:errcheck // best-effort cursor cleanup

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode configurations: %w", err)
	}
	configs := make([]ailink.Configuration, 0, len(docs))
	for _, doc := range docs {
		configs = append(configs, *fromDocument(doc))
	}
	return configs, nil
}

// UpdateConfiguration replaces the mutable fields of an existing configuration.
func (s *Store) UpdateConfiguration(ctx context.Context, cfg *ailink.Configuration) error {
	if cfg == nil || strings.TrimSpace(cfg.ID) == "" {
		return errors.New("configuration id is required")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.UpdatedAt = time.Now().UTC()

	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": cfg.ID}, updateDocument(*cfg))
	if err != nil {
		return fmt.Errorf("update configuration: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ailink.ErrConfigurationNotFound, cfg.ID)
	}
	metrics.RecordConfigurationWrite("update")
	return nil
}

// DeleteConfiguration removes a configuration by ID.
func (s *Store) DeleteConfiguration(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete configuration: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ailink.ErrConfigurationNotFound, id)
	}
	metrics.RecordConfigurationWrite("delete")
	return nil
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func ownerFilter(ownerID string) bson.M {
	return bson.M{"owner_id": ownerID}
}

// dedicatedFilter relies on array element equality, so "chat" never matches "chatbot".
func dedicatedFilter(ownerID string, role ailink.Role) bson.M {
	return bson.M{
		"owner_id":       ownerID,
		"assigned_roles": string(role),
	}
}

func creationOrder() bson.D {
	return bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
}

func toDocument(cfg ailink.Configuration) document {
	roles := cfg.AssignedRoles.Strings()
	if roles == nil {
		roles = []string{}
	}
	return document{
		ID:            cfg.ID,
		Provider:      cfg.Provider,
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		ModelID:       cfg.ModelID,
		AssignedRoles: roles,
		OwnerID:       cfg.OwnerID,
		CreatedAt:     cfg.CreatedAt.UTC(),
		UpdatedAt:     cfg.UpdatedAt.UTC(),
	}
}

func updateDocument(cfg ailink.Configuration) bson.M {
	doc := toDocument(cfg)
	set := bson.M{
		"provider":       doc.Provider,
		"api_key":        doc.APIKey,
		"model_id":       doc.ModelID,
		"assigned_roles": doc.AssignedRoles,
		"updated_at":     doc.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if doc.BaseURL != nil {
		set["base_url"] = *doc.BaseURL
	} else {
		update["$unset"] = bson.M{"base_url": ""}
	}
	return update
}

func fromDocument(doc document) *ailink.Configuration {
	return &ailink.Configuration{
		ID:            doc.ID,
		Provider:      doc.Provider,
		APIKey:        doc.APIKey,
		BaseURL:       doc.BaseURL,
		ModelID:       doc.ModelID,
		AssignedRoles: ailink.NewRoleSet(doc.AssignedRoles...),
		OwnerID:       doc.OwnerID,
		CreatedAt:     doc.CreatedAt.UTC(),
		UpdatedAt:     doc.UpdatedAt.UTC(),
	}
}

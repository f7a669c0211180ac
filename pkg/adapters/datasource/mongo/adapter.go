// Package mongo implements the datasource adapter for MongoDB. Queries
// arrive as structured JSON specifications rather than SQL text; the
// adapter interprets them into driver calls.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/adapters/datasource"
	"github.com/queryline-io/queryline-engine/pkg/apperrors"
	"github.com/queryline-io/queryline-engine/pkg/models"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Kind:        models.EngineMongoDB,
			DisplayName: "MongoDB",
			Description: "Connect to MongoDB 5+",
		},
		Factory: func(profile *models.ConnectionProfile, logger *zap.Logger) (datasource.Adapter, error) {
			return NewAdapter(profile, logger), nil
		},
	})
}

// querySpec is the structured document query shape produced by the
// translator for document profiles.
type querySpec struct {
	Op         string         `json:"op"`
	Collection string         `json:"collection"`
	Filter     map[string]any `json:"filter"`
	Pipeline   []any          `json:"pipeline"`
	Sort       map[string]any `json:"sort"`
}

// Adapter executes document queries against one MongoDB database.
type Adapter struct {
	profile  *models.ConnectionProfile
	logger   *zap.Logger
	client   *mongo.Client
	database *mongo.Database
}

var _ datasource.Adapter = (*Adapter)(nil)

// NewAdapter creates an unconnected MongoDB adapter.
func NewAdapter(profile *models.ConnectionProfile, logger *zap.Logger) *Adapter {
	return &Adapter{profile: profile, logger: logger.Named("mongo")}
}

// Connect implements datasource.Adapter.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.client != nil {
		return nil
	}

	uri := fmt.Sprintf("mongodb://%s:%d", a.profile.Host, a.profile.Port)
	opts := options.Client().ApplyURI(uri)
	if a.profile.Username != "" {
		opts.SetAuth(options.Credential{
			Username: a.profile.Username,
			Password: a.profile.Password,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("ping mongodb: %w", err)
	}

	a.client = client
	a.database = client.Database(a.profile.Database)
	return nil
}

// Execute implements datasource.Adapter. The request's query is a JSON
// specification; its op dispatches to find, aggregate or count. The limit
// is pushed into the driver call, with one extra document requested so
// truncation is reported.
func (a *Adapter) Execute(ctx context.Context, req *models.ExecutionRequest) (*models.ResultSet, error) {
	if a.client == nil {
		return nil, apperrors.New(apperrors.KindConnectionError, "mongo", "not connected")
	}

	var spec querySpec
	if err := json.Unmarshal([]byte(req.Query), &spec); err != nil {
		return nil, apperrors.Wrap(apperrors.KindExecutionError, "mongo",
			"malformed document query", err)
	}
	if spec.Collection == "" {
		return nil, apperrors.New(apperrors.KindExecutionError, "mongo",
			"document query names no collection")
	}

	limit := req.EffectiveLimit()
	started := time.Now()

	var (
		docs []bson.M
		err  error
	)
	switch spec.Op {
	case "find":
		docs, err = a.find(ctx, &spec, limit)
	case "aggregate":
		docs, err = a.aggregate(ctx, &spec, limit)
	case "count":
		docs, err = a.count(ctx, &spec)
	default:
		return nil, apperrors.New(apperrors.KindExecutionError, "mongo",
			fmt.Sprintf("unsupported document operation %q", spec.Op))
	}
	if err != nil {
		return nil, execError(err)
	}

	columnNames, rows := normalizeDocs(docs)
	return datasource.BuildResultSet(columnNames, rows, limit, time.Since(started)), nil
}

func (a *Adapter) find(ctx context.Context, spec *querySpec, limit int) ([]bson.M, error) {
	filter := spec.Filter
	if filter == nil {
		filter = map[string]any{}
	}

	opts := options.Find().SetLimit(int64(limit + 1))
	if len(spec.Sort) > 0 {
		opts.SetSort(spec.Sort)
	}

	cursor, err := a.database.Collection(spec.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (a *Adapter) aggregate(ctx context.Context, spec *querySpec, limit int) ([]bson.M, error) {
	pipeline := make([]any, 0, len(spec.Pipeline)+1)
	pipeline = append(pipeline, spec.Pipeline...)
	pipeline = append(pipeline, bson.M{"$limit": limit + 1})

	cursor, err := a.database.Collection(spec.Collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (a *Adapter) count(ctx context.Context, spec *querySpec) ([]bson.M, error) {
	filter := spec.Filter
	if filter == nil {
		filter = map[string]any{}
	}

	n, err := a.database.Collection(spec.Collection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}
	return []bson.M{{"count": n}}, nil
}

// IntrospectSchema implements datasource.Adapter. Collections are the
// tables; fields are sampled from one document each, so the descriptor can
// be partial for sparse collections.
func (a *Adapter) IntrospectSchema(ctx context.Context) (*models.SchemaDescriptor, error) {
	if a.client == nil {
		return nil, apperrors.New(apperrors.KindConnectionError, "mongo", "not connected")
	}

	names, err := a.database.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	descriptor := &models.SchemaDescriptor{}
	for _, name := range names {
		var sample bson.M
		err := a.database.Collection(name).FindOne(ctx, bson.M{}).Decode(&sample)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			a.logger.Warn("sample document read failed",
				zap.String("collection", name), zap.Error(err))
		}

		var columns []models.ColumnDescriptor
		for field, value := range sample {
			columns = append(columns, models.ColumnDescriptor{
				Name:     field,
				DataType: bsonTypeName(value),
				Nullable: true,
			})
		}
		descriptor.Tables = append(descriptor.Tables, models.TableDescriptor{
			Name:    name,
			Columns: columns,
		})
	}
	return descriptor, nil
}

// Ping implements datasource.Adapter.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.client == nil {
		return apperrors.New(apperrors.KindConnectionError, "mongo", "not connected")
	}
	return a.client.Ping(ctx, nil)
}

// Close implements datasource.Adapter.
func (a *Adapter) Close() error {
	if a.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := a.client.Disconnect(ctx)
		a.client = nil
		a.database = nil
		return err
	}
	return nil
}

// normalizeDocs flattens documents into row maps with portable values.
// Column order is first-seen across documents so results stay stable for a
// homogeneous collection.
func normalizeDocs(docs []bson.M) ([]string, []map[string]any) {
	var columnNames []string
	seen := make(map[string]bool)
	rows := make([]map[string]any, 0, len(docs))

	for _, doc := range docs {
		row := make(map[string]any, len(doc))
		for key, value := range doc {
			if !seen[key] {
				seen[key] = true
				columnNames = append(columnNames, key)
			}
			row[key] = normalizeBSONValue(value)
		}
		rows = append(rows, row)
	}
	return columnNames, rows
}

// normalizeBSONValue converts driver-native types before the generic
// normalization pass. ObjectIDs become hex strings, BSON dates RFC 3339.
func normalizeBSONValue(v any) any {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return val.String()
	case primitive.A:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalizeBSONValue(inner)
		}
		return out
	case primitive.M:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = normalizeBSONValue(inner)
		}
		return out
	default:
		return datasource.NormalizeValue(v)
	}
}

func bsonTypeName(v any) string {
	switch v.(type) {
	case primitive.ObjectID:
		return "objectId"
	case primitive.DateTime:
		return "date"
	case primitive.Decimal128:
		return "decimal"
	case string:
		return "string"
	case bool:
		return "bool"
	case int32, int64, float64:
		return "number"
	case primitive.A:
		return "array"
	case primitive.M:
		return "document"
	default:
		return "unknown"
	}
}

func execError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindTimeout, "mongo", "query timed out", err)
	}
	return apperrors.Wrap(apperrors.KindExecutionError, "mongo", "query failed", err)
}

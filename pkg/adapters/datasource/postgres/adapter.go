// Package postgres implements the datasource adapter for PostgreSQL using
// pgx connection pools.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/adapters/datasource"
	"github.com/queryline-io/queryline-engine/pkg/apperrors"
	"github.com/queryline-io/queryline-engine/pkg/models"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Kind:        models.EnginePostgres,
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+",
		},
		Factory: func(profile *models.ConnectionProfile, logger *zap.Logger) (datasource.Adapter, error) {
			return NewAdapter(profile, logger), nil
		},
	})
}

// Adapter executes queries against one PostgreSQL database.
type Adapter struct {
	profile *models.ConnectionProfile
	logger  *zap.Logger
	pool    *pgxpool.Pool
}

var _ datasource.Adapter = (*Adapter)(nil)

// NewAdapter creates an unconnected PostgreSQL adapter.
func NewAdapter(profile *models.ConnectionProfile, logger *zap.Logger) *Adapter {
	return &Adapter{profile: profile, logger: logger.Named("postgres")}
}

// Connect implements datasource.Adapter.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.pool != nil {
		return nil
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		a.profile.Host, a.profile.Port, a.profile.Username, a.profile.Password, a.profile.Database)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	a.pool = pool
	return nil
}

// Execute implements datasource.Adapter. The query is always wrapped with a
// server-side LIMIT; one extra row is requested so truncation is reported.
func (a *Adapter) Execute(ctx context.Context, req *models.ExecutionRequest) (*models.ResultSet, error) {
	if a.pool == nil {
		return nil, apperrors.New(apperrors.KindConnectionError, "postgres", "not connected")
	}

	limit := req.EffectiveLimit()
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d",
		datasource.TrimTrailingSemicolons(req.Query), limit+1)

	started := time.Now()
	rows, err := a.pool.Query(ctx, wrapped)
	if err != nil {
		return nil, execError(err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columnNames := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columnNames[i] = string(fd.Name)
	}

	collected := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, execError(err)
		}
		row := make(map[string]any, len(columnNames))
		for i, name := range columnNames {
			row[name] = datasource.NormalizeValue(values[i])
		}
		collected = append(collected, row)
	}
	if err := rows.Err(); err != nil {
		return nil, execError(err)
	}

	return datasource.BuildResultSet(columnNames, collected, limit, time.Since(started)), nil
}

// IntrospectSchema implements datasource.Adapter. Tables whose columns
// cannot be read are reported without column detail.
func (a *Adapter) IntrospectSchema(ctx context.Context) (*models.SchemaDescriptor, error) {
	if a.pool == nil {
		return nil, apperrors.New(apperrors.KindConnectionError, "postgres", "not connected")
	}

	rows, err := a.pool.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tableNames = append(tableNames, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	descriptor := &models.SchemaDescriptor{}
	for _, tableName := range tableNames {
		columns, err := a.tableColumns(ctx, tableName)
		if err != nil {
			a.logger.Warn("column introspection failed",
				zap.String("table", tableName), zap.Error(err))
			columns = nil
		}
		descriptor.Tables = append(descriptor.Tables, models.TableDescriptor{
			Name:    tableName,
			Columns: columns,
		})
	}
	return descriptor, nil
}

func (a *Adapter) tableColumns(ctx context.Context, tableName string) ([]models.ColumnDescriptor, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []models.ColumnDescriptor
	for rows.Next() {
		var col models.ColumnDescriptor
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// Ping implements datasource.Adapter.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.pool == nil {
		return apperrors.New(apperrors.KindConnectionError, "postgres", "not connected")
	}
	return a.pool.Ping(ctx)
}

// Close implements datasource.Adapter.
func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return nil
}

func execError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindTimeout, "postgres", "query timed out", err)
	}
	return apperrors.Wrap(apperrors.KindExecutionError, "postgres", "query failed", err)
}

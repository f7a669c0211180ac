// Package sqlite implements the datasource adapter for SQLite files. The
// profile's database field is the file path.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/adapters/datasource"
	"github.com/queryline-io/queryline-engine/pkg/apperrors"
	"github.com/queryline-io/queryline-engine/pkg/models"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Kind:        models.EngineSQLite,
			DisplayName: "SQLite",
			Description: "Query a local SQLite database file",
		},
		Factory: func(profile *models.ConnectionProfile, logger *zap.Logger) (datasource.Adapter, error) {
			return NewAdapter(profile, logger), nil
		},
	})
}

// Adapter executes queries against one SQLite file.
type Adapter struct {
	profile *models.ConnectionProfile
	logger  *zap.Logger
	db      *sql.DB
}

var _ datasource.Adapter = (*Adapter)(nil)

// NewAdapter creates an unconnected SQLite adapter.
func NewAdapter(profile *models.ConnectionProfile, logger *zap.Logger) *Adapter {
	return &Adapter{profile: profile, logger: logger.Named("sqlite")}
}

// Connect implements datasource.Adapter. The file is opened read-only so a
// misbehaving query can never mutate it.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.db != nil {
		return nil
	}

	dsn := fmt.Sprintf("file:%s?mode=ro", a.profile.Database)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}

	a.db = db
	return nil
}

// Execute implements datasource.Adapter.
func (a *Adapter) Execute(ctx context.Context, req *models.ExecutionRequest) (*models.ResultSet, error) {
	if a.db == nil {
		return nil, apperrors.New(apperrors.KindConnectionError, "sqlite", "not connected")
	}

	limit := req.EffectiveLimit()
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d",
		datasource.TrimTrailingSemicolons(req.Query), limit+1)

	started := time.Now()
	rows, err := a.db.QueryContext(ctx, wrapped)
	if err != nil {
		return nil, execError(err)
	}
	defer rows.Close()

	columnNames, collected, err := datasource.ScanRows(rows)
	if err != nil {
		return nil, execError(err)
	}

	return datasource.BuildResultSet(columnNames, collected, limit, time.Since(started)), nil
}

// IntrospectSchema implements datasource.Adapter. Uses sqlite_master plus
// PRAGMA table_info per table.
func (a *Adapter) IntrospectSchema(ctx context.Context) (*models.SchemaDescriptor, error) {
	if a.db == nil {
		return nil, apperrors.New(apperrors.KindConnectionError, "sqlite", "not connected")
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
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
	rows, err := a.db.QueryContext(ctx,
		fmt.Sprintf("PRAGMA table_info(%q)", tableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []models.ColumnDescriptor
	for rows.Next() {
		var (
			cid        int
			name       string
			dataType   string
			notNull    int
			defaultVal any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, models.ColumnDescriptor{
			Name:     name,
			DataType: dataType,
			Nullable: notNull == 0,
		})
	}
	return columns, rows.Err()
}

// Ping implements datasource.Adapter.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return apperrors.New(apperrors.KindConnectionError, "sqlite", "not connected")
	}
	return a.db.PingContext(ctx)
}

// Close implements datasource.Adapter.
func (a *Adapter) Close() error {
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

func execError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindTimeout, "sqlite", "query timed out", err)
	}
	return apperrors.Wrap(apperrors.KindExecutionError, "sqlite", "query failed", err)
}

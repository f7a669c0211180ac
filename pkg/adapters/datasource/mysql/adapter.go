// Package mysql implements the datasource adapter for MySQL and MariaDB
// over database/sql with the go-sql-driver driver.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/adapters/datasource"
	"github.com/queryline-io/queryline-engine/pkg/apperrors"
	"github.com/queryline-io/queryline-engine/pkg/models"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Kind:        models.EngineMySQL,
			DisplayName: "MySQL",
			Description: "Connect to MySQL 8+ or MariaDB",
		},
		Factory: func(profile *models.ConnectionProfile, logger *zap.Logger) (datasource.Adapter, error) {
			return NewAdapter(profile, logger), nil
		},
	})
}

// Adapter executes queries against one MySQL database.
type Adapter struct {
	profile *models.ConnectionProfile
	logger  *zap.Logger
	db      *sql.DB
}

var _ datasource.Adapter = (*Adapter)(nil)

// NewAdapter creates an unconnected MySQL adapter.
func NewAdapter(profile *models.ConnectionProfile, logger *zap.Logger) *Adapter {
	return &Adapter{profile: profile, logger: logger.Named("mysql")}
}

// NewAdapterWithDB wraps an existing handle. Used by tests with sqlmock.
func NewAdapterWithDB(db *sql.DB, logger *zap.Logger) *Adapter {
	return &Adapter{db: db, logger: logger.Named("mysql")}
}

// Connect implements datasource.Adapter.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.db != nil {
		return nil
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		a.profile.Username, a.profile.Password, a.profile.Host, a.profile.Port, a.profile.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping mysql: %w", err)
	}

	a.db = db
	return nil
}

// Execute implements datasource.Adapter. The query is wrapped with a
// server-side LIMIT; one extra row is requested so truncation is reported.
func (a *Adapter) Execute(ctx context.Context, req *models.ExecutionRequest) (*models.ResultSet, error) {
	if a.db == nil {
		return nil, apperrors.New(apperrors.KindConnectionError, "mysql", "not connected")
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

// IntrospectSchema implements datasource.Adapter.
func (a *Adapter) IntrospectSchema(ctx context.Context) (*models.SchemaDescriptor, error) {
	if a.db == nil {
		return nil, apperrors.New(apperrors.KindConnectionError, "mysql", "not connected")
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
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
	rows, err := a.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
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
	if a.db == nil {
		return apperrors.New(apperrors.KindConnectionError, "mysql", "not connected")
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
		return apperrors.Wrap(apperrors.KindTimeout, "mysql", "query timed out", err)
	}
	return apperrors.Wrap(apperrors.KindExecutionError, "mysql", "query failed", err)
}

// Package sqlserver implements the datasource adapter for Microsoft SQL
// Server over database/sql with the go-mssqldb driver.
package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/adapters/datasource"
	"github.com/queryline-io/queryline-engine/pkg/apperrors"
	"github.com/queryline-io/queryline-engine/pkg/models"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Kind:        models.EngineSQLServer,
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2017+ or Azure SQL",
		},
		Factory: func(profile *models.ConnectionProfile, logger *zap.Logger) (datasource.Adapter, error) {
			return NewAdapter(profile, logger), nil
		},
	})
}

// Adapter executes queries against one SQL Server database.
type Adapter struct {
	profile *models.ConnectionProfile
	logger  *zap.Logger
	db      *sql.DB
}

var _ datasource.Adapter = (*Adapter)(nil)

// NewAdapter creates an unconnected SQL Server adapter.
func NewAdapter(profile *models.ConnectionProfile, logger *zap.Logger) *Adapter {
	return &Adapter{profile: profile, logger: logger.Named("sqlserver")}
}

// NewAdapterWithDB wraps an existing handle. Used by tests with sqlmock.
func NewAdapterWithDB(db *sql.DB, logger *zap.Logger) *Adapter {
	return &Adapter{db: db, logger: logger.Named("sqlserver")}
}

// Connect implements datasource.Adapter.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.db != nil {
		return nil
	}

	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(a.profile.Username, a.profile.Password),
		Host:   fmt.Sprintf("%s:%d", a.profile.Host, a.profile.Port),
	}
	q := url.Values{}
	q.Set("database", a.profile.Database)
	u.RawQuery = q.Encode()

	db, err := sql.Open("sqlserver", u.String())
	if err != nil {
		return fmt.Errorf("open sqlserver: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping sqlserver: %w", err)
	}

	a.db = db
	return nil
}

// Execute implements datasource.Adapter. SQL Server bounds with TOP rather
// than LIMIT; one extra row is requested so truncation is reported.
func (a *Adapter) Execute(ctx context.Context, req *models.ExecutionRequest) (*models.ResultSet, error) {
	if a.db == nil {
		return nil, apperrors.New(apperrors.KindConnectionError, "sqlserver", "not connected")
	}

	limit := req.EffectiveLimit()
	wrapped := fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _limited",
		limit+1, datasource.TrimTrailingSemicolons(req.Query))

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
		return nil, apperrors.New(apperrors.KindConnectionError, "sqlserver", "not connected")
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`)
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
		SELECT COLUMN_NAME, DATA_TYPE, CASE WHEN IS_NULLABLE = 'YES' THEN 1 ELSE 0 END
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_NAME = @p1
		ORDER BY ORDINAL_POSITION`, tableName)
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
		return apperrors.New(apperrors.KindConnectionError, "sqlserver", "not connected")
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
		return apperrors.Wrap(apperrors.KindTimeout, "sqlserver", "query timed out", err)
	}
	return apperrors.Wrap(apperrors.KindExecutionError, "sqlserver", "query failed", err)
}

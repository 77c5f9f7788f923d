package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// DatabaseExecutor is the "database" node kind (spec §4.2): open a
// connection against a config-supplied connection string (or the
// executor's default), run one of insert/find/update/delete against a
// named table, and close the connection on exit.
type DatabaseExecutor struct {
	defaultDSN string
}

// NewDatabaseExecutor creates a new database executor. defaultDSN is used
// when a task's config omits a connectionString.
func NewDatabaseExecutor(defaultDSN string) *DatabaseExecutor {
	return &DatabaseExecutor{defaultDSN: defaultDSN}
}

func (e *DatabaseExecutor) Kind() models.NodeKind { return models.NodeKindDatabase }

func (e *DatabaseExecutor) Execute(ctx context.Context, config map[string]interface{}, rc RunContext) (*TaskResult, error) {
	table, _ := config["table"].(string)
	if table == "" {
		return nil, errs.New(errs.KindValidation, "database task requires a table", nil)
	}
	operation, _ := config["operation"].(string)

	dsn, _ := config["connectionString"].(string)
	if dsn == "" {
		dsn = e.defaultDSN
	}
	if dsn == "" {
		return nil, errs.New(errs.KindConfigMissing, "database task has no connection string configured", nil)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errs.New(errs.KindConfigMissing, fmt.Sprintf("failed to open database connection: %v", err), err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, errs.New(errs.KindInfraTransient, fmt.Sprintf("failed to reach database: %v", err), err)
	}

	values, _ := config["values"].(map[string]interface{})
	where, _ := config["where"].(map[string]interface{})

	switch operation {
	case "insert":
		return e.insert(ctx, db, table, values)
	case "find":
		return e.find(ctx, db, table, where)
	case "update":
		return e.update(ctx, db, table, values, where)
	case "delete":
		return e.delete(ctx, db, table, where)
	default:
		return nil, errs.New(errs.KindValidation, fmt.Sprintf("unsupported database operation %q", operation), nil)
	}
}

func (e *DatabaseExecutor) insert(ctx context.Context, db *sql.DB, table string, values map[string]interface{}) (*TaskResult, error) {
	if len(values) == 0 {
		return nil, errs.New(errs.KindValidation, "database insert requires values", nil)
	}
	cols := make([]string, 0, len(values))
	placeholders := make([]string, 0, len(values))
	args := make([]interface{}, 0, len(values))
	i := 1
	for col, val := range values {
		cols = append(cols, quoteIdent(col))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
		args = append(args, val)
		i++
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("insert failed: %v", err), err)
	}
	n, _ := result.RowsAffected()
	return &TaskResult{Outcome: OutcomeSuccess, Output: map[string]interface{}{"rowsAffected": n}}, nil
}

func (e *DatabaseExecutor) find(ctx context.Context, db *sql.DB, table string, where map[string]interface{}) (*TaskResult, error) {
	clause, args := whereClause(where)
	query := fmt.Sprintf("SELECT * FROM %s%s", quoteIdent(table), clause)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("find failed: %v", err), err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to read columns: %v", err), err)
	}

	var records []map[string]interface{}
	for rows.Next() {
		scanTargets := make([]interface{}, len(cols))
		scanValues := make([]interface{}, len(cols))
		for i := range scanTargets {
			scanTargets[i] = &scanValues[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to scan row: %v", err), err)
		}
		record := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			record[col] = scanValues[i]
		}
		records = append(records, record)
	}
	return &TaskResult{Outcome: OutcomeSuccess, Output: map[string]interface{}{"rows": records, "count": len(records)}}, nil
}

func (e *DatabaseExecutor) update(ctx context.Context, db *sql.DB, table string, values, where map[string]interface{}) (*TaskResult, error) {
	if len(values) == 0 {
		return nil, errs.New(errs.KindValidation, "database update requires values", nil)
	}
	sets := make([]string, 0, len(values))
	args := make([]interface{}, 0, len(values)+len(where))
	i := 1
	for col, val := range values {
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdent(col), i))
		args = append(args, val)
		i++
	}
	clause, whereArgs := whereClauseFrom(where, i)
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s%s", quoteIdent(table), strings.Join(sets, ", "), clause)
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("update failed: %v", err), err)
	}
	n, _ := result.RowsAffected()
	return &TaskResult{Outcome: OutcomeSuccess, Output: map[string]interface{}{"rowsAffected": n}}, nil
}

func (e *DatabaseExecutor) delete(ctx context.Context, db *sql.DB, table string, where map[string]interface{}) (*TaskResult, error) {
	clause, args := whereClause(where)
	if clause == "" {
		return nil, errs.New(errs.KindValidation, "database delete requires a where clause", nil)
	}
	query := fmt.Sprintf("DELETE FROM %s%s", quoteIdent(table), clause)
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("delete failed: %v", err), err)
	}
	n, _ := result.RowsAffected()
	return &TaskResult{Outcome: OutcomeSuccess, Output: map[string]interface{}{"rowsAffected": n}}, nil
}

func whereClause(where map[string]interface{}) (string, []interface{}) {
	return whereClauseFrom(where, 1)
}

func whereClauseFrom(where map[string]interface{}, startIndex int) (string, []interface{}) {
	if len(where) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(where))
	args := make([]interface{}, 0, len(where))
	i := startIndex
	for col, val := range where {
		conds = append(conds, fmt.Sprintf("%s = $%d", quoteIdent(col), i))
		args = append(args, val)
		i++
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// quoteIdent double-quotes a SQL identifier, since table/column names come
// from task config rather than a fixed schema and must not be
// interpolated unescaped.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

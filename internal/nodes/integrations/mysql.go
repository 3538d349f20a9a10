package integrations

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

func init() {
	core.Register(&core.NodeType{
		Identifier:  "integration.mysql",
		DisplayName: "MySQL",
		Group:       []string{"integration"},
		Version:     1,
		Inputs:      []string{"main"},
		Outputs:     []string{"main"},
		Properties: []core.NodeProperty{
			{Name: "operation", DisplayName: "Operation", Kind: core.KindOptions, Default: "query",
				Options: []interface{}{"query", "insert", "update", "delete", "execute"}},
			{Name: "query", DisplayName: "Query", Kind: core.KindString},
			{Name: "params", DisplayName: "Parameters", Kind: core.KindJSON},
			{Name: "table", DisplayName: "Table", Kind: core.KindString},
			{Name: "data", DisplayName: "Data", Kind: core.KindJSON},
			{Name: "where", DisplayName: "Where", Kind: core.KindString},
			{Name: "whereParams", DisplayName: "Where Parameters", Kind: core.KindJSON},
		},
		Credentials: []core.CredentialDefinition{{Type: "mysql", Required: true}},
		Node:        &MySQLNode{},
	})
}

var validMySQLIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,63}$`)

func validateMySQLIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !validMySQLIdentifier.MatchString(identifier) {
		return fmt.Errorf("invalid identifier: %s", identifier)
	}
	lower := strings.ToLower(identifier)
	dangerousKeywords := []string{"select", "insert", "update", "delete", "drop", "truncate", "alter", "create", "exec", "execute", "union", "grant", "revoke"}
	for _, keyword := range dangerousKeywords {
		if lower == keyword {
			return fmt.Errorf("identifier cannot be a SQL keyword: %s", identifier)
		}
	}
	return nil
}

func quoteIdentifierMySQL(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "`", "``")
	return "`" + escaped + "`"
}

// MySQLNode runs one query/insert/update/delete/execute operation per
// invocation against a fresh connection, credentials supplied via the
// "mysql" credential type rather than node parameters.
type MySQLNode struct{}

func (n *MySQLNode) Execute(ctx context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	p := execCtx.Parameters
	operation := getStr(p, "operation", "query")

	db, err := n.connect(execCtx.Credentials["mysql"])
	if err != nil {
		return nil, fmt.Errorf("integration.mysql: connection failed: %w", err)
	}
	defer db.Close()

	items := execCtx.InputData["main"]
	var input map[string]interface{}
	if len(items) > 0 {
		input = items[0].JSON
	}

	var result map[string]interface{}
	switch operation {
	case "insert":
		result, err = n.executeInsert(ctx, db, p, input)
	case "update":
		result, err = n.executeUpdate(ctx, db, p, input)
	case "delete":
		result, err = n.executeDelete(ctx, db, p)
	case "execute":
		result, err = n.executeRaw(ctx, db, p)
	default:
		result, err = n.executeQuery(ctx, db, p)
	}
	if err != nil {
		return nil, fmt.Errorf("integration.mysql: %w", err)
	}
	return core.PortData{"main": core.Items{{JSON: result}}}, nil
}

func (n *MySQLNode) connect(cred map[string]interface{}) (*sql.DB, error) {
	host := getStr(cred, "host", "localhost")
	port := getInt(cred, "port", 3306)
	user := getStr(cred, "user", "")
	password := getStr(cred, "password", "")
	database := getStr(cred, "database", "")

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		user, password, host, port, database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func (n *MySQLNode) executeQuery(ctx context.Context, db *sql.DB, p map[string]interface{}) (map[string]interface{}, error) {
	query := getStr(p, "query", "")
	params := getArray(p, "params")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	args := make([]interface{}, len(params))
	copy(args, params)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}

	return map[string]interface{}{"rows": results, "rowCount": len(results), "columns": columns}, nil
}

func (n *MySQLNode) executeInsert(ctx context.Context, db *sql.DB, p map[string]interface{}, input map[string]interface{}) (map[string]interface{}, error) {
	table := getStr(p, "table", "")
	data := getMap(p, "data")
	if table == "" {
		return nil, fmt.Errorf("table is required")
	}
	if err := validateMySQLIdentifier(table); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}
	if len(data) == 0 && input != nil {
		if d, ok := input["data"].(map[string]interface{}); ok {
			data = d
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("data is required")
	}

	columns := make([]string, 0, len(data))
	placeholders := make([]string, 0, len(data))
	values := make([]interface{}, 0, len(data))
	for col, val := range data {
		if err := validateMySQLIdentifier(col); err != nil {
			return nil, fmt.Errorf("invalid column name %s: %w", col, err)
		}
		columns = append(columns, quoteIdentifierMySQL(col))
		placeholders = append(placeholders, "?")
		values = append(values, val)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifierMySQL(table), strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	result, err := db.ExecContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("insert failed: %w", err)
	}
	lastID, _ := result.LastInsertId()
	affected, _ := result.RowsAffected()
	return map[string]interface{}{"success": true, "lastInsertId": lastID, "rowsAffected": affected}, nil
}

func (n *MySQLNode) executeUpdate(ctx context.Context, db *sql.DB, p map[string]interface{}, input map[string]interface{}) (map[string]interface{}, error) {
	table := getStr(p, "table", "")
	data := getMap(p, "data")
	where := getStr(p, "where", "")
	whereParams := getArray(p, "whereParams")
	if table == "" {
		return nil, fmt.Errorf("table is required")
	}
	if err := validateMySQLIdentifier(table); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}
	if len(data) == 0 && input != nil {
		if d, ok := input["data"].(map[string]interface{}); ok {
			data = d
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("data is required")
	}

	setClauses := make([]string, 0, len(data))
	values := make([]interface{}, 0, len(data))
	for col, val := range data {
		if err := validateMySQLIdentifier(col); err != nil {
			return nil, fmt.Errorf("invalid column name %s: %w", col, err)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", quoteIdentifierMySQL(col)))
		values = append(values, val)
	}

	query := fmt.Sprintf("UPDATE %s SET %s", quoteIdentifierMySQL(table), strings.Join(setClauses, ", "))
	if where != "" {
		query += " WHERE " + where
		values = append(values, whereParams...)
	}

	result, err := db.ExecContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("update failed: %w", err)
	}
	affected, _ := result.RowsAffected()
	return map[string]interface{}{"success": true, "rowsAffected": affected}, nil
}

func (n *MySQLNode) executeDelete(ctx context.Context, db *sql.DB, p map[string]interface{}) (map[string]interface{}, error) {
	table := getStr(p, "table", "")
	where := getStr(p, "where", "")
	params := getArray(p, "params")
	if table == "" {
		return nil, fmt.Errorf("table is required")
	}
	if err := validateMySQLIdentifier(table); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}
	if where == "" {
		return nil, fmt.Errorf("where clause is required for delete operations")
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdentifierMySQL(table), where)
	args := make([]interface{}, len(params))
	copy(args, params)

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("delete failed: %w", err)
	}
	affected, _ := result.RowsAffected()
	return map[string]interface{}{"success": true, "rowsAffected": affected}, nil
}

func (n *MySQLNode) executeRaw(ctx context.Context, db *sql.DB, p map[string]interface{}) (map[string]interface{}, error) {
	query := getStr(p, "query", "")
	params := getArray(p, "params")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	queryUpper := strings.ToUpper(strings.TrimSpace(query))
	if strings.HasPrefix(queryUpper, "SELECT") {
		return n.executeQuery(ctx, db, p)
	}

	args := make([]interface{}, len(params))
	copy(args, params)

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute failed: %w", err)
	}
	lastID, _ := result.LastInsertId()
	affected, _ := result.RowsAffected()
	return map[string]interface{}{"success": true, "lastInsertId": lastID, "rowsAffected": affected}, nil
}

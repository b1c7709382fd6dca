package overrides

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoTable.
type DynamoAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoTable reads override entries from a DynamoDB table whose items
// carry pattern/strategy/model/max_pages attributes.
type DynamoTable struct {
	client DynamoAPI
	table  string
}

func NewDynamoTable(client DynamoAPI, table string) *DynamoTable {
	return &DynamoTable{
		client: client,
		table:  table,
	}
}

func (t *DynamoTable) Entries(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	input := &dynamodb.ScanInput{TableName: aws.String(t.table)}

	for {
		out, err := t.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scanning override table %s: %w", t.table, err)
		}

		var page []Entry
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("decoding override table %s: %w", t.table, err)
		}
		entries = append(entries, page...)

		if len(out.LastEvaluatedKey) == 0 {
			return entries, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// SQLiteTable reads override entries from a local SQLite table, used by the
// one-shot route command and local development.
type SQLiteTable struct {
	db    *sql.DB
	table string
}

func NewSQLiteTable(db *sql.DB, table string) (*SQLiteTable, error) {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		pattern TEXT NOT NULL,
		strategy TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		max_pages INTEGER NOT NULL DEFAULT 0
	)`, table)
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("creating override table %s: %w", table, err)
	}
	return &SQLiteTable{db: db, table: table}, nil
}

func (t *SQLiteTable) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf(`SELECT pattern, strategy, model, max_pages FROM %q`, t.table))
	if err != nil {
		return nil, fmt.Errorf("querying override table %s: %w", t.table, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.Pattern, &entry.Strategy, &entry.Model, &entry.MaxPages); err != nil {
			return nil, fmt.Errorf("reading override row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MemoryTable is a fixed in-memory table for tests.
type MemoryTable struct {
	Rows []Entry
	Err  error
}

func (t *MemoryTable) Entries(context.Context) ([]Entry, error) {
	return t.Rows, t.Err
}

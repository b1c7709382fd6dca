package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/docflowhq/docflow/pkg/sqliteutil"
)

// DynamoAPI is the subset of the DynamoDB client used by the Dynamo sink.
type DynamoAPI interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Dynamo appends rows to a pair of DynamoDB tables.
type Dynamo struct {
	client       DynamoAPI
	baseTable    string
	routingTable string
}

func NewDynamo(client DynamoAPI, baseTable, routingTable string) *Dynamo {
	return &Dynamo{
		client:       client,
		baseTable:    baseTable,
		routingTable: routingTable,
	}
}

func (s *Dynamo) AppendBase(ctx context.Context, rows []Row) error {
	return s.append(ctx, s.baseTable, rows)
}

func (s *Dynamo) AppendRouting(ctx context.Context, rows []Row) error {
	return s.append(ctx, s.routingTable, rows)
}

// dynamoBatchMax is the BatchWriteItem request limit.
const dynamoBatchMax = 25

func (s *Dynamo) append(ctx context.Context, table string, rows []Row) error {
	if table == "" || len(rows) == 0 {
		return nil
	}
	for start := 0; start < len(rows); start += dynamoBatchMax {
		chunk := rows[start:min(start+dynamoBatchMax, len(rows))]
		requests := make([]types.WriteRequest, 0, len(chunk))
		for _, row := range chunk {
			item, err := attributevalue.MarshalMap(map[string]any(row))
			if err != nil {
				return fmt.Errorf("encoding metadata row: %w", err)
			}
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		pending := map[string][]types.WriteRequest{table: requests}
		for len(pending[table]) > 0 {
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("writing %d rows to %s: %w", len(pending[table]), table, err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

// SQLite appends rows as JSON blobs to local tables, for development and
// the one-shot route command.
type SQLite struct {
	db           *sql.DB
	baseTable    string
	routingTable string
}

func OpenSQLite(path, baseTable, routingTable string) (*SQLite, error) {
	db, err := sqliteutil.OpenDB(path)
	if err != nil {
		return nil, err
	}
	for _, table := range []string{baseTable, routingTable} {
		schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			source_path TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`, table)
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating metadata table %s: %w", table, err)
		}
	}
	return &SQLite{db: db, baseTable: baseTable, routingTable: routingTable}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) AppendBase(ctx context.Context, rows []Row) error {
	return s.append(ctx, s.baseTable, rows)
}

func (s *SQLite) AppendRouting(ctx context.Context, rows []Row) error {
	return s.append(ctx, s.routingTable, rows)
}

func (s *SQLite) append(ctx context.Context, table string, rows []Row) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, row := range rows {
		raw, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encoding metadata row: %w", err)
		}
		sourcePath, _ := row["source_path"].(string)
		if _, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %q (source_path, payload, created_at) VALUES (?, ?, ?)`, table),
			sourcePath, string(raw), now); err != nil {
			return fmt.Errorf("appending to %s: %w", table, err)
		}
	}
	return nil
}

// Writer streams rows as JSON lines, used with stdout in development.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (s *Writer) AppendBase(ctx context.Context, rows []Row) error {
	return s.write("base", rows)
}

func (s *Writer) AppendRouting(ctx context.Context, rows []Row) error {
	return s.write("routing", rows)
}

func (s *Writer) write(kind string, rows []Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.out)
	for _, row := range rows {
		if err := enc.Encode(map[string]any{"table": kind, "row": row}); err != nil {
			return err
		}
	}
	return nil
}

// Memory collects rows in-process for tests.
type Memory struct {
	mu      sync.Mutex
	Base    []Row
	Routing []Row
	Err     error
}

func NewMemorySink() *Memory {
	return &Memory{}
}

func (s *Memory) AppendBase(_ context.Context, rows []Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Base = append(s.Base, rows...)
	return nil
}

func (s *Memory) AppendRouting(_ context.Context, rows []Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Routing = append(s.Routing, rows...)
	return nil
}

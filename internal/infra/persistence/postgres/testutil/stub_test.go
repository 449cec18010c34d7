package testutil

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
)

func TestStubDBUpsertsAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	upsert := "INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload"
	for _, payload := range []string{`{"a":1}`, `{"a":2}`} {
		if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "connects"}, {Value: []byte(payload)}}); err != nil {
			t.Fatalf("ExecContext insert: %v", err)
		}
	}
	if len(conn.Tables["state"]) != 1 {
		t.Fatalf("expected upsert to replace the bucket row, got %v", conn.Tables["state"])
	}
	row, ok := conn.Row("state", "bucket", "connects")
	if !ok || string(row["payload"].([]byte)) != `{"a":2}` {
		t.Fatalf("unexpected row %v", row)
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "connects" {
		t.Fatalf("unexpected row values: %v", dest)
	}
}

func TestStubDBTransientFailures(t *testing.T) {
	_, conn := NewStubDB()
	conn.TransientFailures = 1
	query := "INSERT INTO state(bucket,payload) VALUES($1,$2)"
	args := []driver.NamedValue{{Value: "leads"}, {Value: []byte(`{}`)}}
	if _, err := conn.ExecContext(context.Background(), query, args); err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected transient failure, got %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), query, args); err != nil {
		t.Fatalf("expected second attempt to succeed: %v", err)
	}
}

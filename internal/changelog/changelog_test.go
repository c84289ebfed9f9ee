package changelog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestFileWriter_AppendAndReadFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	w, err := NewFileWriter(dir, "catalog.jsonl")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}

	e1 := Event{Seq: 1, RunID: "r1", Table: "movie_ratings", Op: OpDrop, Year: 2013, Month: 9, TS: 1}
	e2 := Event{Seq: 2, RunID: "r1", Table: "movie_ratings", Op: OpAdd, Year: 2013, Month: 9, Location: "/out/year=2013/month=9/", TS: 2}
	if err := w.Append(ctx, e1); err != nil {
		t.Fatalf("append1: %v", err)
	}
	if err := w.Append(ctx, e2); err != nil {
		t.Fatalf("append2: %v", err)
	}

	got, err := ReadFile(filepath.Join(dir, "catalog.jsonl"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 events, got %d", len(got))
	}
	if got[0] != e1 || got[1] != e2 {
		t.Fatalf("mismatch: %+v vs %+v,%+v", got, e1, e2)
	}
	if got[1].Key() != "movie_ratings/year=2013/month=9" {
		t.Fatalf("bad key: %s", got[1].Key())
	}
}

func TestReadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"seq\":1}\n\nnot json\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ReadFile(path)
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected line 3 error, got %v", err)
	}
}

// fakeKafkaWriter implements kafkaMessageWriter for tests
type fakeKafkaWriter struct {
	msgs []kafka.Message
	fail bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("fail")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaWriter_Append_Success(t *testing.T) {
	fk := &fakeKafkaWriter{}
	kw := NewKafkaWriterWith(fk)
	e := Event{Seq: 1, Table: "movie_ratings", Op: OpAdd, Year: 2014, Month: 1, Location: "s3://b/o/", TS: 1}
	if err := kw.Append(context.Background(), e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(fk.msgs) != 1 {
		t.Fatalf("want 1 msg, got %d", len(fk.msgs))
	}
	if string(fk.msgs[0].Key) != "movie_ratings/year=2014/month=1" {
		t.Fatalf("bad key: %s", string(fk.msgs[0].Key))
	}
	var got Event
	if err := json.Unmarshal(fk.msgs[0].Value, &got); err != nil || got != e {
		t.Fatalf("bad value: %s err=%v", fk.msgs[0].Value, err)
	}
}

func TestMultiWriter_StopsOnFailure(t *testing.T) {
	ok := &fakeKafkaWriter{}
	bad := &fakeKafkaWriter{fail: true}
	after := &fakeKafkaWriter{}
	mw := NewMultiWriter(NewKafkaWriterWith(ok), NewKafkaWriterWith(bad), NewKafkaWriterWith(after))
	if err := mw.Append(context.Background(), Event{Seq: 1, Table: "t", Op: OpDrop}); err == nil {
		t.Fatalf("expected error")
	}
	if len(ok.msgs) != 1 || len(after.msgs) != 0 {
		t.Fatalf("unexpected fan-out: ok=%d after=%d", len(ok.msgs), len(after.msgs))
	}
}

package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func sample() Manifest {
	return Manifest{
		BatchID: "1613301962",
		RunID:   "run-1",
		Table:   "shyam.movie_ratings",
		Root:    "/out/batch_id=1613301962",
		Partitions: []Entry{
			{Year: 2013, Month: 9, Location: "/out/batch_id=1613301962/year=2013/month=9/", Rows: 2},
		},
	}
}

func TestPublishAndReadLatest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := NewFilesystemManifest(dir)

	if _, err := m.ReadLatest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound before publish, got %v", err)
	}
	if err := m.PublishLatest(ctx, sample()); err != nil {
		t.Fatalf("PublishLatest error: %v", err)
	}
	withSnap := sample()
	withSnap.SnapshotID = "sid-123"
	if err := m.PublishLatest(ctx, withSnap); err != nil {
		t.Fatalf("PublishLatest error: %v", err)
	}
	got, err := m.ReadLatest(ctx)
	if err != nil {
		t.Fatalf("ReadLatest error: %v", err)
	}
	if got.SnapshotID != "sid-123" || got.BatchID != "1613301962" || got.CreatedAt == 0 || len(got.Partitions) != 1 {
		t.Fatalf("unexpected manifest: %+v", got)
	}
	if got.Partitions[0].Key().Path() != "year=2013/month=9" {
		t.Fatalf("bad entry key: %v", got.Partitions[0].Key())
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
	for _, m := range msgs {
		m.Offset = int64(len(f.msgs))
		f.msgs = append(f.msgs, m)
	}
	return nil
}

// fakeConn replays the messages of a fakeKafkaWriter.
type fakeConn struct {
	msgs []kafka.Message
	pos  int
}

func (c *fakeConn) ReadFirstOffset() (int64, error) { return 0, nil }
func (c *fakeConn) ReadLastOffset() (int64, error)  { return int64(len(c.msgs)), nil }
func (c *fakeConn) Seek(offset int64, whence int) (int64, error) {
	c.pos = int(offset)
	return offset, nil
}
func (c *fakeConn) ReadMessage(maxBytes int) (kafka.Message, error) {
	m := c.msgs[c.pos]
	c.pos++
	return m, nil
}
func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) Close() error                    { return nil }

func TestKafkaManifest_PublishAndReadLatest(t *testing.T) {
	ctx := context.Background()
	fk := &fakeKafkaWriter{}
	km := NewKafkaManifestWith(fk, "shyam.movie_ratings")
	km.dial = func(context.Context) (kafkaPartitionConn, error) { return &fakeConn{msgs: fk.msgs}, nil }

	if _, err := km.ReadLatest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	first := sample()
	if err := km.PublishLatest(ctx, first); err != nil {
		t.Fatalf("publish: %v", err)
	}
	other := NewKafkaManifestWith(fk, "other.table")
	if err := other.PublishLatest(ctx, Manifest{Table: "other.table"}); err != nil {
		t.Fatalf("publish other: %v", err)
	}
	second := sample()
	second.SnapshotID = "sid-abc"
	if err := km.PublishLatest(ctx, second); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fk.msgs) != 3 || string(fk.msgs[0].Key) != "shyam.movie_ratings" {
		t.Fatalf("unexpected messages: %d key=%s", len(fk.msgs), fk.msgs[0].Key)
	}
	var decoded Manifest
	if err := json.Unmarshal(fk.msgs[0].Value, &decoded); err != nil || decoded.RunID != "run-1" {
		t.Fatalf("bad value: %s err=%v", fk.msgs[0].Value, err)
	}

	got, err := km.ReadLatest(ctx)
	if err != nil {
		t.Fatalf("ReadLatest: %v", err)
	}
	if got.SnapshotID != "sid-abc" || got.Table != "shyam.movie_ratings" {
		t.Fatalf("unexpected latest: %+v", got)
	}
}

func TestKafkaManifest_PublishLatest_Fail(t *testing.T) {
	fk := &fakeKafkaWriter{fail: true}
	km := NewKafkaManifestWith(fk, "shyam.movie_ratings")
	if err := km.PublishLatest(context.Background(), sample()); err == nil {
		t.Fatalf("expected error")
	}
	if err := MultiPublisher(NewFilesystemManifest(t.TempDir()), km).PublishLatest(context.Background(), sample()); err == nil {
		t.Fatalf("expected multi publisher error")
	}
}

package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/RajaShyam/JET-movie-ratings/internal/model"
)

const latestFile = "manifest.latest.json"

// ErrNotFound is returned when no manifest has been published yet.
var ErrNotFound = errors.New("manifest not found")

// Entry is one written partition.
type Entry struct {
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Location string `json:"location"`
	Rows     int    `json:"rows"`
}

func (e Entry) Key() model.PartitionKey { return model.PartitionKey{Year: e.Year, Month: e.Month} }

// Manifest describes the output of the last successful data write of a run.
type Manifest struct {
	BatchID    string  `json:"batchId"`
	RunID      string  `json:"runId"`
	Table      string  `json:"table"`
	Root       string  `json:"root"`
	Partitions []Entry `json:"partitions"`
	SnapshotID string  `json:"snapshotId,omitempty"`
	CreatedAt  int64   `json:"createdAt"`
}

type Publisher interface {
	PublishLatest(ctx context.Context, m Manifest) error
}

// MultiPublisher writes to multiple publishers sequentially.
type MultiPublisherImpl struct {
	pubs []Publisher
}

func MultiPublisher(pubs ...Publisher) Publisher {
	return &MultiPublisherImpl{pubs: pubs}
}

func (m *MultiPublisherImpl) PublishLatest(ctx context.Context, man Manifest) error {
	for _, p := range m.pubs {
		if err := p.PublishLatest(ctx, man); err != nil {
			return err
		}
	}
	return nil
}

type Reader interface {
	ReadLatest(ctx context.Context) (Manifest, error)
}

type FilesystemManifest struct {
	baseDir string
}

func NewFilesystemManifest(baseDir string) *FilesystemManifest {
	return &FilesystemManifest{baseDir: baseDir}
}

func stamp(m Manifest) Manifest {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UTC().Unix()
	}
	return m
}

func (f *FilesystemManifest) PublishLatest(ctx context.Context, m Manifest) error {
	if err := os.MkdirAll(f.baseDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(stamp(m), "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	tmp := filepath.Join(f.baseDir, "."+latestFile+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(f.baseDir, latestFile)); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (f *FilesystemManifest) ReadLatest(ctx context.Context) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(f.baseDir, latestFile))
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, ErrNotFound
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return m, nil
}

// KafkaManifest publishes the latest manifest as a compacted Kafka record
// keyed by table, and reads it back from partition 0 of the topic.
type KafkaManifest struct {
	writer kafkaMessageWriter
	dial   func(ctx context.Context) (kafkaPartitionConn, error)
	key    []byte
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// kafkaPartitionConn is the subset of *kafka.Conn used to read the topic.
type kafkaPartitionConn interface {
	ReadFirstOffset() (int64, error)
	ReadLastOffset() (int64, error)
	Seek(offset int64, whence int) (int64, error)
	ReadMessage(maxBytes int) (kafka.Message, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// NewKafkaManifest creates a Kafka manifest publisher and reader.
// bootstrap can be comma-separated brokers. key is typically the table name.
func NewKafkaManifest(bootstrap string, topic string, key string) *KafkaManifest {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		if a = strings.TrimSpace(a); a != "" {
			brokers = append(brokers, a)
		}
	}
	return &KafkaManifest{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
		dial: func(ctx context.Context) (kafkaPartitionConn, error) {
			var lastErr error
			for _, b := range brokers {
				conn, err := kafka.DialLeader(ctx, "tcp", b, topic, 0)
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			return nil, fmt.Errorf("dial leader: %w", lastErr)
		},
		key: []byte(key),
	}
}

func (k *KafkaManifest) PublishLatest(ctx context.Context, m Manifest) error {
	b, err := json.Marshal(stamp(m))
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: k.key, Value: b})
}

// ReadLatest scans the partition and returns the last record with our key.
func (k *KafkaManifest) ReadLatest(ctx context.Context) (Manifest, error) {
	if k.dial == nil {
		return Manifest{}, errors.New("kafka manifest has no reader")
	}
	conn, err := k.dial(ctx)
	if err != nil {
		return Manifest{}, err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
	} else {
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	}

	first, err := conn.ReadFirstOffset()
	if err != nil {
		return Manifest{}, fmt.Errorf("first offset: %w", err)
	}
	last, err := conn.ReadLastOffset()
	if err != nil {
		return Manifest{}, fmt.Errorf("last offset: %w", err)
	}
	if _, err := conn.Seek(first, kafka.SeekAbsolute); err != nil {
		return Manifest{}, fmt.Errorf("seek: %w", err)
	}

	var latest []byte
	for off := first; off < last; {
		msg, err := conn.ReadMessage(10 << 20)
		if err != nil {
			return Manifest{}, fmt.Errorf("read offset %d: %w", off, err)
		}
		if string(msg.Key) == string(k.key) {
			latest = msg.Value
		}
		off = msg.Offset + 1
	}
	if latest == nil {
		return Manifest{}, ErrNotFound
	}
	var m Manifest
	if err := json.Unmarshal(latest, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return m, nil
}

func (k *KafkaManifest) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// NewKafkaManifestWith is only for tests to inject a fake writer.
func NewKafkaManifestWith(w kafkaMessageWriter, key string) *KafkaManifest {
	return &KafkaManifest{writer: w, key: []byte(key)}
}

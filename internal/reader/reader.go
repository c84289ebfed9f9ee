// Package reader loads the ratings log and the metadata feed from storage.
package reader

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/RajaShyam/JET-movie-ratings/internal/literal"
	"github.com/RajaShyam/JET-movie-ratings/internal/metrics"
	"github.com/RajaShyam/JET-movie-ratings/internal/model"
	"github.com/RajaShyam/JET-movie-ratings/internal/schema"
	"github.com/RajaShyam/JET-movie-ratings/internal/storage"
)

// SourceUnavailable means a location could not be listed, opened or read to
// the end. It is fatal for the batch.
var SourceUnavailable = errs.Class("source unavailable")

// MaxLineSize bounds a single metadata line.
const MaxLineSize = 16 << 20

// RatingsBatch is the result of reading the ratings log. Skipped counts rows
// that did not fit the ratings schema.
type RatingsBatch struct {
	Events  []model.RatingEvent
	Skipped int
}

type Reader struct {
	store   storage.Store
	log     *zap.Logger
	metrics *metrics.Registry
	ratings schema.Schema
}

func New(store storage.Store, log *zap.Logger, m *metrics.Registry) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{
		store:   store,
		log:     log.Named("reader"),
		metrics: m,
		ratings: schema.MustLookup(schema.Ratings),
	}
}

// ReadRatings reads headerless CSV rows reviewerID,asin,ratings,rating_time
// from every object under location.
func (r *Reader) ReadRatings(ctx context.Context, location string) (RatingsBatch, error) {
	objs, err := r.list(ctx, location)
	if err != nil {
		return RatingsBatch{}, err
	}
	var batch RatingsBatch
	for _, obj := range objs {
		if err := r.readRatingsObject(ctx, obj.Key, &batch); err != nil {
			return RatingsBatch{}, err
		}
	}
	r.metrics.AddRecordsRead(schema.Ratings, len(batch.Events))
	r.metrics.AddRatingsSkipped(batch.Skipped)
	if batch.Skipped > 0 {
		r.log.Warn("skipped malformed ratings rows", zap.String("location", location), zap.Int("skipped", batch.Skipped))
	}
	r.log.Info("ratings read",
		zap.String("location", location),
		zap.Int("objects", len(objs)),
		zap.Int("rows", len(batch.Events)))
	return batch, nil
}

func (r *Reader) readRatingsObject(ctx context.Context, key string, batch *RatingsBatch) error {
	rc, err := r.open(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	cr := csv.NewReader(rc)
	cr.FieldsPerRecord = len(r.ratings.Fields)
	cr.ReuseRecord = true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			batch.Skipped++
			r.log.Debug("ratings row rejected", zap.String("object", key), zap.Int("line", perr.Line), zap.Error(err))
			continue
		}
		if err != nil {
			return SourceUnavailable.New("read %s: %v", key, err)
		}
		ev, err := parseRating(rec)
		if err != nil {
			batch.Skipped++
			line, _ := cr.FieldPos(0)
			r.log.Debug("ratings row rejected", zap.String("object", key), zap.Int("line", line), zap.Error(err))
			continue
		}
		batch.Events = append(batch.Events, ev)
		if len(batch.Events)%65536 == 0 && ctx.Err() != nil {
			return SourceUnavailable.Wrap(ctx.Err())
		}
	}
}

func parseRating(rec []string) (model.RatingEvent, error) {
	rating, err := strconv.ParseFloat(rec[2], 32)
	if err != nil {
		return model.RatingEvent{}, err
	}
	ts, err := strconv.ParseInt(rec[3], 10, 64)
	if err != nil {
		return model.RatingEvent{}, err
	}
	return model.RatingEvent{
		ReviewerID: rec[0],
		ASIN:       rec[1],
		Rating:     float32(rating),
		RatingTime: ts,
	}, nil
}

// ReadMetadata reads one record per non-blank line. Lines that fail strict
// parsing are kept verbatim as corrupt records.
func (r *Reader) ReadMetadata(ctx context.Context, location string) ([]model.RawMetadataRecord, error) {
	objs, err := r.list(ctx, location)
	if err != nil {
		return nil, err
	}
	var records []model.RawMetadataRecord
	corrupt := 0
	for _, obj := range objs {
		rc, err := r.open(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		sc := bufio.NewScanner(rc)
		sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
		for sc.Scan() {
			line := sc.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			rec := parseMetadata(line)
			if rec.IsCorrupt() {
				corrupt++
			}
			records = append(records, rec)
		}
		err = sc.Err()
		rc.Close()
		if err != nil {
			return nil, SourceUnavailable.New("read %s: %v", obj.Key, err)
		}
		if ctx.Err() != nil {
			return nil, SourceUnavailable.Wrap(ctx.Err())
		}
	}
	r.metrics.AddRecordsRead(schema.MovieMetadata, len(records))
	r.log.Info("metadata read",
		zap.String("location", location),
		zap.Int("objects", len(objs)),
		zap.Int("records", len(records)),
		zap.Int("corrupt", corrupt))
	return records, nil
}

func parseMetadata(line string) model.RawMetadataRecord {
	obj, err := literal.ParseMap(line)
	if err != nil {
		return model.NewCorruptRecord(line)
	}
	fields, err := model.MetadataFromLiteral(obj)
	if err != nil {
		return model.NewCorruptRecord(line)
	}
	return model.NewValidRecord(fields)
}

func (r *Reader) list(ctx context.Context, location string) ([]storage.Object, error) {
	objs, err := r.store.List(ctx, location)
	if err != nil {
		return nil, SourceUnavailable.Wrap(err)
	}
	if len(objs) == 0 {
		return nil, SourceUnavailable.New("no objects at %s", r.store.URL(location))
	}
	return objs, nil
}

// open returns the object body, decompressed when the key ends in .gz.
func (r *Reader) open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := r.store.Open(ctx, key)
	if err != nil {
		return nil, SourceUnavailable.Wrap(err)
	}
	if !strings.HasSuffix(key, ".gz") {
		return rc, nil
	}
	zr, err := gzip.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, SourceUnavailable.New("gzip %s: %v", key, err)
	}
	return &gzipReadCloser{Reader: zr, body: rc}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	body io.Closer
}

func (g *gzipReadCloser) Close() error {
	return errs.Combine(g.Reader.Close(), g.body.Close())
}

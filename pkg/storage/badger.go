package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/sguter90/weatherlog/pkg/models"
)

var (
	readingPrefix = []byte("r/")
	sequenceKey   = []byte("seq/readings")
)

const keyLen = 2 + 8 + 8

// BadgerLog is an embedded ReadingLog. Keys are the reading prefix, the big
// endian capture time and a sequence number, so iteration order is capture
// order with ties broken by insertion.
type BadgerLog struct {
	db         *badger.DB
	seq        *badger.Sequence
	compressor *Compressor
	logger     kitlog.Logger
}

// BadgerOptions holds the embedded store settings
type BadgerOptions struct {
	Path             string
	InMemory         bool
	CompressionLevel int
}

// NewBadgerLog opens (or creates) a Badger database at opts.Path
func NewBadgerLog(opts BadgerOptions, logger kitlog.Logger) (*BadgerLog, error) {
	logger = kitlog.With(logger, "module", "badger")

	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts = bopts.WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	seq, err := db.GetSequence(sequenceKey, 100)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to acquire sequence: %w", err)
	}

	compLevel := opts.CompressionLevel
	if compLevel == 0 {
		compLevel = 2
	}
	compressor, err := NewCompressor(compLevel)
	if err != nil {
		seq.Release()
		db.Close()
		return nil, err
	}

	return &BadgerLog{
		db:         db,
		seq:        seq,
		compressor: compressor,
		logger:     logger,
	}, nil
}

func (b *BadgerLog) Append(ctx context.Context, ts int64, fields models.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := encodeFields(fields)
	if err != nil {
		return err
	}

	n, err := b.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate sequence: %w", err)
	}

	key := readingKey(ts, n)
	value := b.compressor.Compress(payload)

	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}); err != nil {
		return fmt.Errorf("failed to append reading: %w", err)
	}
	return nil
}

func (b *BadgerLog) QueryRange(ctx context.Context, since, until int64) ([]models.RawReading, error) {
	out := []models.RawReading{}
	if since < 0 {
		since = 0
	}
	if until <= since {
		return out, nil
	}

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = readingPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(readingKey(since, 0)); it.ValidForPrefix(readingPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			ts := keyTimestamp(item.Key())
			if ts >= until {
				break
			}

			r, err := b.decodeItem(ts, item)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BadgerLog) Latest(ctx context.Context) (models.RawReading, error) {
	var latest models.RawReading
	found := false

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = readingPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(lastKey())
		if !it.ValidForPrefix(readingPrefix) {
			return nil
		}

		item := it.Item()
		r, err := b.decodeItem(keyTimestamp(item.Key()), item)
		if err != nil {
			return err
		}
		latest = r
		found = true
		return nil
	})
	if err != nil {
		return models.RawReading{}, err
	}
	if !found {
		return models.RawReading{}, ErrNotFound
	}
	return latest, ctx.Err()
}

func (b *BadgerLog) decodeItem(ts int64, item *badger.Item) (models.RawReading, error) {
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return models.RawReading{}, fmt.Errorf("failed to read value: %w", err)
	}
	payload, err := b.compressor.Decompress(raw)
	if err != nil {
		return models.RawReading{}, err
	}
	fields, err := decodeFields(payload)
	if err != nil {
		return models.RawReading{}, err
	}
	return models.RawReading{CapturedAt: ts, Fields: fields}, nil
}

// Close releases the sequence and closes the database
func (b *BadgerLog) Close() error {
	var errs []error
	if err := b.seq.Release(); err != nil {
		errs = append(errs, err)
	}
	b.compressor.Close()
	if err := b.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func readingKey(ts int64, seq uint64) []byte {
	key := make([]byte, 0, keyLen)
	key = append(key, readingPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(ts))
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}

func lastKey() []byte {
	key := append([]byte{}, readingPrefix...)
	for i := 0; i < 16; i++ {
		key = append(key, 0xff)
	}
	return key
}

func keyTimestamp(key []byte) int64 {
	if len(key) < keyLen {
		return 0
	}
	return int64(binary.BigEndian.Uint64(key[len(readingPrefix):]))
}

// badgerLogger routes badger's internal logging through go-kit.
type badgerLogger struct {
	logger kitlog.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	level.Error(l.logger).Log("msg", fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	level.Warn(l.logger).Log("msg", fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Infof(f string, v ...interface{}) {
	level.Debug(l.logger).Log("msg", fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	level.Debug(l.logger).Log("msg", fmt.Sprintf(f, v...))
}

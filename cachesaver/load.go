package cachesaver

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	savev1 "github.com/royalcat/osmgaz/cachesaver/save/v1"
)

var ErrNotSnapshot = errors.New("not a result cache snapshot")

// Load feeds every entry of a snapshot into sink and returns how many were imported.
func Load(ctx context.Context, reader io.Reader, sink Sink, log *slog.Logger) (Metadata, int, error) {
	magic := make([]byte, len(MAGIC_BYTES))
	_, err := io.ReadFull(reader, magic)
	if err != nil {
		return Metadata{}, 0, fmt.Errorf("error reading magic bytes: %w", err)
	}
	if !bytes.Equal(magic, MAGIC_BYTES) {
		return Metadata{}, 0, ErrNotSnapshot
	}

	var compatibilityLevel uint32
	err = binary.Read(reader, binary.LittleEndian, &compatibilityLevel)
	if err != nil {
		return Metadata{}, 0, fmt.Errorf("error reading compatibility level: %w", err)
	}

	switch compatibilityLevel {
	case savev1.COMPATIBILITY_LEVEL:
		log.Info("Loading v1 snapshot format")
		return loadV1(ctx, reader, sink, log)
	}

	return Metadata{}, 0, fmt.Errorf("unsupported compatibility level: %d", compatibilityLevel)
}

func loadV1(ctx context.Context, reader io.Reader, sink Sink, log *slog.Logger) (Metadata, int, error) {
	r, m, err := savev1.NewReader(reader)
	if err != nil {
		return Metadata{}, 0, fmt.Errorf("error loading v1 snapshot: %w", err)
	}
	defer r.Close()

	meta := Metadata{Version: m.Version, Source: m.Source}
	if m.DateCreated != "" {
		meta.DateCreated, err = time.Parse(time.RFC3339, m.DateCreated)
		if err != nil {
			log.Warn("Invalid snapshot creation date", "date_created", m.DateCreated)
		}
	}
	log.Info("Loaded snapshot metadata", "version", meta.Version, "source", meta.Source, "date_created", meta.DateCreated)

	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return meta, count, err
		}
		key, res, err := r.Next()
		if errors.Is(err, io.EOF) {
			return meta, count, nil
		}
		if err != nil {
			return meta, count, fmt.Errorf("error reading entry %d: %w", count, err)
		}
		if err := sink.Put(ctx, key, res); err != nil {
			return meta, count, err
		}
		count++
	}
}

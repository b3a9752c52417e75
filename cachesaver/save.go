package cachesaver

import (
	"context"
	"encoding/binary"
	"io"
	"time"

	savev1 "github.com/royalcat/osmgaz/cachesaver/save/v1"
	"github.com/royalcat/osmgaz/geomodel"
)

type Metadata struct {
	Version     uint32
	Source      string
	DateCreated time.Time
}

// Save writes every entry of src as a snapshot and returns how many were written.
func Save(ctx context.Context, src Source, meta Metadata, w io.Writer) (int, error) {
	_, err := w.Write(MAGIC_BYTES)
	if err != nil {
		return 0, err
	}

	err = binary.Write(w, binary.LittleEndian, savev1.COMPATIBILITY_LEVEL)
	if err != nil {
		return 0, err
	}

	sw, err := savev1.NewWriter(w, savev1.Metadata{
		Version:     meta.Version,
		DateCreated: meta.DateCreated.Format(time.RFC3339),
		Source:      meta.Source,
	})
	if err != nil {
		return 0, err
	}

	count := 0
	var writeErr error
	err = src.Range(ctx, func(key string, res *geomodel.Result) bool {
		if writeErr = sw.Write(key, res); writeErr != nil {
			return false
		}
		count++
		return true
	})
	if err == nil {
		err = writeErr
	}
	if err != nil {
		sw.Close()
		return count, err
	}
	return count, sw.Close()
}

package savev1

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/royalcat/osmgaz/geomodel"
)

const COMPATIBILITY_LEVEL uint32 = 1

type Metadata struct {
	Version     uint32
	DateCreated string
	Source      string
}

// Writer streams a zstd compressed sequence of length delimited structs:
// the metadata first, then one struct per cache entry.
type Writer struct {
	zw *zstd.Encoder
}

func NewWriter(w io.Writer, meta Metadata) (*Writer, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, err
	}
	header, err := structpb.NewStruct(map[string]any{
		"version":      float64(meta.Version),
		"date_created": meta.DateCreated,
		"source":       meta.Source,
	})
	if err != nil {
		return nil, err
	}
	if _, err := protodelim.MarshalTo(zw, header); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}
	return &Writer{zw: zw}, nil
}

func (w *Writer) Write(key string, res *geomodel.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	entry, err := structpb.NewStruct(map[string]any{
		"key":    key,
		"result": fields,
	})
	if err != nil {
		return err
	}
	_, err = protodelim.MarshalTo(w.zw, entry)
	return err
}

func (w *Writer) Close() error {
	return w.zw.Close()
}

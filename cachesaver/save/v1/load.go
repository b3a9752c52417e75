package savev1

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/royalcat/osmgaz/geomodel"
)

type Reader struct {
	dec *zstd.Decoder
	br  *bufio.Reader
}

func NewReader(r io.Reader) (*Reader, Metadata, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, Metadata{}, err
	}
	br := bufio.NewReader(dec)

	var header structpb.Struct
	if err := protodelim.UnmarshalFrom(br, &header); err != nil {
		dec.Close()
		return nil, Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	fields := header.GetFields()
	meta := Metadata{
		Version:     uint32(fields["version"].GetNumberValue()),
		DateCreated: fields["date_created"].GetStringValue(),
		Source:      fields["source"].GetStringValue(),
	}
	return &Reader{dec: dec, br: br}, meta, nil
}

// Next returns io.EOF once every entry has been read.
func (r *Reader) Next() (string, *geomodel.Result, error) {
	var entry structpb.Struct
	if err := protodelim.UnmarshalFrom(r.br, &entry); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil, io.EOF
		}
		return "", nil, err
	}

	fields := entry.GetFields()
	key := fields["key"].GetStringValue()
	if key == "" {
		return "", nil, errors.New("entry without key")
	}
	raw, err := json.Marshal(fields["result"].GetStructValue().AsMap())
	if err != nil {
		return "", nil, err
	}
	var res geomodel.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", nil, fmt.Errorf("entry %s: %w", key, err)
	}
	return key, &res, nil
}

func (r *Reader) Close() {
	r.dec.Close()
}

package cachesaver

import (
	"context"

	"github.com/royalcat/osmgaz/geomodel"
)

var MAGIC_BYTES = []byte("OSMGAZRC")

// Source is anything holding keyed results, such as resultcache.Cache.
type Source interface {
	Range(ctx context.Context, fn func(key string, res *geomodel.Result) bool) error
}

// Sink receives imported entries, such as resultcache.Cache.
type Sink interface {
	Put(ctx context.Context, key string, res *geomodel.Result) error
}

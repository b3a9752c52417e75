package salience

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/kv"
	"github.com/royalcat/osmgaz/spatial"
)

// Distance around the innermost container within which namesakes and same typed features are counted.
const ContainerRadius = 400

var meter = otel.Meter("github.com/royalcat/osmgaz/salience")

// Counter is the part of spatial.Store the calculators need.
type Counter interface {
	Count(ctx context.Context, q spatial.CountQuery) (int, error)
}

func inverse(count int) float64 {
	if count <= 0 {
		return 0
	}
	return 1 / float64(count)
}

// memoGet treats a failing memo as a miss.
func memoGet(ctx context.Context, log *slog.Logger, memo kv.KVS[string, float64], key string) (float64, bool) {
	v, ok, err := memo.Get(ctx, key)
	if err != nil {
		log.WarnContext(ctx, "salience memo read failed", "key", key, "error", err)
		return 0, false
	}
	return v, ok
}

func memoSet(ctx context.Context, log *slog.Logger, memo kv.KVS[string, float64], key string, v float64) {
	if err := memo.Set(ctx, key, v); err != nil {
		log.WarnContext(ctx, "salience memo write failed", "key", key, "error", err)
	}
}

// Name scores how unique a name is around the innermost container.
type Name struct {
	store Counter
	memo  kv.KVS[string, float64]
	log   *slog.Logger
}

func NewName(store Counter, memo kv.KVS[string, float64], log *slog.Logger) *Name {
	if memo == nil {
		memo = kv.NewXMap[string, float64]()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Name{store: store, memo: memo, log: log.With("component", "name-salience")}
}

func NameKey(t geomodel.Toponym, container *geomodel.Feature) string {
	return fmt.Sprintf("%s:%d:%d", t.Kind(), t.Feature.ID, container.ID)
}

// Score returns nil when there is no container to compare against.
func (n *Name) Score(ctx context.Context, t geomodel.Toponym, containers []geomodel.Toponym) (*float64, error) {
	if len(containers) == 0 {
		return nil, nil
	}
	container := containers[0].Feature

	key := NameKey(t, container)
	if v, ok := memoGet(ctx, n.log, n.memo, key); ok {
		return &v, nil
	}

	q := spatial.CountQuery{
		Near:     container.Geometry,
		Distance: ContainerRadius,
		Name:     t.Name(),
	}
	// transit stops are only compared against everything when they are transit stops themselves
	if !t.Type.HasPrefix(geomodel.TypePublicTrans...) {
		q.ExcludeType = geomodel.TypePublicTrans
	}
	count, err := n.store.Count(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("name salience of %q: %w", t.Name(), err)
	}

	v := inverse(count)
	n.log.DebugContext(ctx, "name salience", "name", t.Name(), "container", container.Name, "count", count)
	memoSet(ctx, n.log, n.memo, key, v)
	return &v, nil
}

// Type scores how unique a type is around the innermost container.
type Type struct {
	store Counter
	memo  kv.KVS[string, float64]
	log   *slog.Logger
}

func NewType(store Counter, memo kv.KVS[string, float64], log *slog.Logger) *Type {
	if memo == nil {
		memo = kv.NewXMap[string, float64]()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Type{store: store, memo: memo, log: log.With("component", "type-salience")}
}

func TypeKey(path geomodel.TypePath, container *geomodel.Feature) string {
	return fmt.Sprintf("%s:%d", path.String(), container.ID)
}

func (s *Type) Score(ctx context.Context, path geomodel.TypePath, containers []geomodel.Toponym) (*float64, error) {
	if len(containers) == 0 || len(path) == 0 {
		return nil, nil
	}
	container := containers[0].Feature

	key := TypeKey(path, container)
	if v, ok := memoGet(ctx, s.log, s.memo, key); ok {
		return &v, nil
	}

	count, err := s.store.Count(ctx, spatial.CountQuery{
		Near:     container.Geometry,
		Distance: ContainerRadius,
		Type:     path,
	})
	if err != nil {
		return nil, fmt.Errorf("type salience of %s: %w", path, err)
	}

	v := inverse(count)
	s.log.DebugContext(ctx, "type salience", "type", path.String(), "container", container.Name, "count", count)
	memoSet(ctx, s.log, s.memo, key, v)
	return &v, nil
}

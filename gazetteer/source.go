package gazetteer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/royalcat/osmgaz/classifier"
	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/spatial"
)

// source turns store features into toponyms, persisting fresh classifications.
type source struct {
	store      spatial.Store
	classifier *classifier.Classifier
	log        *slog.Logger
}

func (s *source) toponyms(ctx context.Context, features []*geomodel.Feature) ([]geomodel.Toponym, error) {
	out := make([]geomodel.Toponym, 0, len(features))
	written := 0
	for _, f := range features {
		if len(f.Classification) > 0 {
			out = append(out, geomodel.Toponym{Feature: f, Type: f.Classification})
			continue
		}

		path, outcome := s.classifier.Classify(f)
		if outcome != classifier.Matched {
			continue
		}
		if err := s.store.SetClassification(ctx, f.Kind, f.ID, path); err != nil {
			return nil, fmt.Errorf("persist classification of %s %d: %w", f.Kind, f.ID, err)
		}
		f.Classification = path
		written++
		out = append(out, geomodel.Toponym{Feature: f, Type: path})
	}
	if written > 0 {
		s.log.DebugContext(ctx, "persisted classifications", "count", written)
	}
	return out, nil
}

package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/careercompass/internal/model"
)

// ExportExplorations builds the export document for all (or one stream's) explorations.
func (s *Store) ExportExplorations(stream string) (model.ExplorationExport, error) {
	explorations, err := s.ListExplorations(stream)
	if err != nil {
		return model.ExplorationExport{}, fmt.Errorf("list explorations: %w", err)
	}

	export := model.ExplorationExport{
		ExportedAt:   time.Now().UTC(),
		Stream:       stream,
		Count:        len(explorations),
		Explorations: explorations,
		ByStream:     make(map[string]int),
	}
	if export.Explorations == nil {
		export.Explorations = []model.Exploration{}
	}
	for _, e := range explorations {
		export.ByStream[e.Stream]++
		switch e.Feedback {
		case model.FeedbackPositive:
			export.Positive++
		case model.FeedbackNegative:
			export.Negative++
		}
	}
	return export, nil
}

package incentive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/pkg/geo"
	"github.com/transitlab/tsp-api/pkg/logger"
)

// ProfileStore holds the per-market service-area polygons. Profiles are
// loaded once at startup from WKT files named <market>.wkt.
type ProfileStore struct {
	polygons map[string]*geo.Polygon
}

// LoadProfiles reads every .wkt file in dir. A missing directory yields an
// empty store: markets without a profile never pass the geofence.
func LoadProfiles(dir string) (*ProfileStore, error) {
	store := &ProfileStore{polygons: make(map[string]*geo.Polygon)}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		logger.Get().Warn("service profile directory missing", zap.String("dir", dir))
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read service profiles: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".wkt") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read profile %s: %w", entry.Name(), err)
		}
		polygon, err := geo.ParseWKTPolygon(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("parse profile %s: %w", entry.Name(), err)
		}
		market := strings.TrimSuffix(entry.Name(), ".wkt")
		store.polygons[market] = polygon
	}

	logger.Get().Info("service profiles loaded", zap.Int("markets", len(store.polygons)))
	return store, nil
}

// Contains reports whether any of the given points falls inside the
// market's service area. Unknown markets contain nothing.
func (s *ProfileStore) Contains(market string, points []geo.Point) bool {
	polygon, ok := s.polygons[market]
	if !ok {
		return false
	}
	for _, p := range points {
		if polygon.Contains(p) {
			return true
		}
	}
	return false
}

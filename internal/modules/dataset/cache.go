package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/aristath/ratelens/internal/modules/series"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache stores built datasets on disk, keyed by a hash of the build spec
// and the input panel fingerprint. A hit means the analyze stage can skip
// re-alignment entirely.
type Cache struct {
	dir string
	log zerolog.Logger
}

// NewCache creates a dataset cache rooted at dir.
func NewCache(dir string, log zerolog.Logger) *Cache {
	return &Cache{
		dir: dir,
		log: log.With().Str("component", "dataset_cache").Logger(),
	}
}

// Key derives a deterministic cache key from the spec and panel.
// Input order does not matter; any change to the spec or to any
// series' dates or values changes the key, so a revised observation
// on an existing date invalidates the cached dataset.
func Key(spec Spec, panel map[string]series.Series) string {
	parts := make([]string, 0, len(spec.Inputs)+4)
	for _, in := range spec.Inputs {
		parts = append(parts, fmt.Sprintf("in:%s:%s:%s", in.Name, in.Kind, in.Transform))
	}
	sort.Strings(parts)

	lags := normalizeLags(spec.Lags)
	lagStrs := make([]string, len(lags))
	for i, k := range lags {
		lagStrs[i] = fmt.Sprintf("%d", k)
	}
	parts = append(parts,
		fmt.Sprintf("fill:%s|min:%d|vol:%d|range:%s..%s",
			spec.FillPolicy, spec.MinOverlap, spec.VolWindow, spec.StartDate, spec.EndDate),
		"lags:"+strings.Join(lagStrs, ","),
	)

	fingerprints := make([]string, 0, len(panel))
	for name, s := range panel {
		oh := sha256.New()
		for _, o := range s.Obs {
			oh.Write([]byte(o.Date))
			oh.Write([]byte{'='})
			oh.Write([]byte(strconv.FormatFloat(o.Value, 'g', -1, 64)))
			oh.Write([]byte{';'})
		}
		fingerprints = append(fingerprints, fmt.Sprintf("s:%s:%d:%x", name, len(s.Obs), oh.Sum(nil)))
	}
	sort.Strings(fingerprints)
	parts = append(parts, fingerprints...)

	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:16])
}

// Get loads a cached dataset, returning false on any miss or decode error.
func (c *Cache) Get(key string) (*Dataset, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}

	var ds Dataset
	if err := msgpack.Unmarshal(data, &ds); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to decode cached dataset, rebuilding")
		return nil, false
	}

	c.log.Debug().Str("key", key).Int("rows", ds.Len()).Msg("Dataset cache hit")
	return &ds, true
}

// Put stores a dataset under the given key.
func (c *Cache) Put(key string, ds *Dataset) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := msgpack.Marshal(ds)
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := os.WriteFile(c.path(key), data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	c.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("Cached dataset")
	return nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".msgpack")
}

// Package scorecard is the append-only store for test screening scorecards.
//
// Records are kept in a Lode dataset with a Hive layout partitioned by
// vacancy_id and day, encoded as JSONL. Every Append is one snapshot.
// Scorecards are never updated in place; a correction is a new record.
package scorecard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/screener/log"
	"github.com/justapithecus/screener/metrics"
	"github.com/justapithecus/screener/types"
)

// DefaultDataset is the Lode dataset ID.
const DefaultDataset = "screener_scorecards"

// Partition keys, outermost first.
var partitionKeys = []string{"vacancy_id", "day"}

// Filter narrows List results.
type Filter struct {
	// VacancyID limits results to one vacancy when set.
	VacancyID string
	// Limit caps the number of results (0 = no limit).
	Limit int
}

// Store appends and lists scorecards.
type Store struct {
	ds        lode.Dataset
	logger    *log.Logger
	collector *metrics.Collector

	mu    sync.Mutex // serializes appends
	now   func() time.Time
	newID func() string
}

// NewDataset creates the scorecard dataset over a store factory.
// Use lode.NewMemoryFactory() for testing.
func NewDataset(factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(DefaultDataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// NewStore wraps an existing dataset.
func NewStore(ds lode.Dataset, logger *log.Logger, collector *metrics.Collector) *Store {
	return &Store{
		ds:        ds,
		logger:    logger,
		collector: collector,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Validate checks a scorecard before it is appended.
func Validate(sc types.Scorecard) error {
	if strings.TrimSpace(sc.VacancyID) == "" {
		return fmt.Errorf("%w: vacancy_id is required", ErrInvalid)
	}
	if sc.Rating < 0 || sc.Rating > types.MaxRating {
		return fmt.Errorf("%w: rating must be between 0 and %d", ErrInvalid, types.MaxRating)
	}
	if sc.Turns < 0 {
		return fmt.Errorf("%w: turns must not be negative", ErrInvalid)
	}
	return nil
}

// Append validates sc, assigns its ID and creation time, and stores it.
// Any ID or CreatedAt set by the caller is replaced.
func (s *Store) Append(ctx context.Context, sc types.Scorecard) (*types.Scorecard, error) {
	if err := Validate(sc); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	sc.ID = s.newID()
	sc.CreatedAt = now.Format(time.RFC3339Nano)

	record := toRecordMap(sc, now)
	if _, err := s.ds.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		s.collector.IncScorecardWriteFailure()
		s.logger.Error("scorecard append failed", map[string]any{
			"vacancy_id": sc.VacancyID,
			"error":      err.Error(),
		})
		return nil, wrapError("append", err)
	}

	s.collector.IncScorecardWriteSuccess()
	s.logger.Info("scorecard appended", map[string]any{
		"id":         sc.ID,
		"vacancy_id": sc.VacancyID,
		"rating":     sc.Rating,
	})
	return &sc, nil
}

// List returns scorecards newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]types.Scorecard, error) {
	snapshots, err := s.ds.Snapshots(ctx)
	if err != nil {
		return nil, wrapError("list", err)
	}

	seen := make(map[string]struct{})
	var out []types.Scorecard
	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, "vacancy_id", f.VacancyID) {
			continue
		}

		data, err := s.ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, wrapError("list", err)
		}

		// Snapshots may repeat earlier records; IDs are authoritative.
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			sc, err := fromRecordMap(record)
			if err != nil {
				s.logger.Warn("skipping undecodable scorecard record", map[string]any{
					"snapshot": fmt.Sprint(snap.ID),
					"error":    err.Error(),
				})
				continue
			}
			if f.VacancyID != "" && sc.VacancyID != f.VacancyID {
				continue
			}
			if _, dup := seen[sc.ID]; dup {
				continue
			}
			seen[sc.ID] = struct{}{}
			out = append(out, sc)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Close satisfies io.Closer for callers that release the store on exit.
// Records are flushed by Append, so there is nothing left to release.
func (s *Store) Close() error {
	return nil
}

// newer reports whether timestamp a is later than b. RFC3339Nano trims
// trailing zeros, so the strings are compared as times; unparseable values
// fall back to string order.
func newer(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA != nil || errB != nil {
		return a > b
	}
	return ta.After(tb)
}

// toRecordMap converts a scorecard to a Lode record carrying the partition keys.
func toRecordMap(sc types.Scorecard, now time.Time) map[string]any {
	return map[string]any{
		"id":             sc.ID,
		"vacancy_id":     sc.VacancyID,
		"day":            now.Format("2006-01-02"),
		"session_id":     sc.SessionID,
		"persona":        sc.Persona,
		"candidate_name": sc.CandidateName,
		"outcome":        string(sc.Outcome),
		"rating":         sc.Rating,
		"notes":          sc.Notes,
		"turns":          sc.Turns,
		"created_at":     sc.CreatedAt,
	}
}

// fromRecordMap decodes a record read back through the JSONL codec.
func fromRecordMap(record map[string]any) (types.Scorecard, error) {
	var sc types.Scorecard
	data, err := json.Marshal(record)
	if err != nil {
		return sc, err
	}
	if err := json.Unmarshal(data, &sc); err != nil {
		return sc, err
	}
	if sc.ID == "" {
		return sc, fmt.Errorf("record has no id")
	}
	return sc, nil
}

// snapshotMatchesFilter checks if a snapshot's file paths match the given
// partition key=value filter. An empty value matches everything, as does a
// value the layout may have escaped; record fields are checked afterwards.
func snapshotMatchesFilter(snap *lode.Snapshot, key, value string) bool {
	if value == "" || !isPlainSegment(value) {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks if a Hive-partitioned path contains an exact
// key=value segment, so vacancy_id=v-1 does not match vacancy_id=v-10.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

func isPlainSegment(v string) bool {
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

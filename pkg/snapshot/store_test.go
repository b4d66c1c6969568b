// ABOUTME: Tests for the configuration snapshot store
// ABOUTME: Verifies latest selection, history order and partition resolution

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/nainya/typecatalog/pkg/apperr"
	"github.com/nainya/typecatalog/pkg/cache"
	"github.com/nainya/typecatalog/pkg/graph"
	"github.com/nainya/typecatalog/pkg/graph/memstore"
)

const (
	testConfigGraph = "http://ex.org/graphs/configuration"
	testBase        = "http://ex.org/snapshots/"
	g1              = "http://ex.org/graphs/g1"
	g2              = "http://ex.org/graphs/g2"
)

type spyInvalidator struct {
	calls int
}

func (s *spyInvalidator) ClearAll() { s.calls++ }

type fakeClock struct {
	times []time.Time
}

func (c *fakeClock) now() time.Time {
	t := c.times[0]
	c.times = c.times[1:]
	return t
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("s%03d", n)
	}
}

func setupTestStore(t *testing.T, opts ...Option) (*Store, *cache.LRU) {
	t.Helper()
	mem := memstore.New()
	lru, err := cache.NewLRU(64, nil)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	store, err := NewStore(graph.NewEngine(mem), mem, lru, Config{
		ConfigurationGraph: testConfigGraph,
		SnapshotBase:       testBase,
	}, opts...)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store, lru
}

func TestGetLatestSnapshotWithoutSnapshots(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.GetLatestSnapshot(context.Background())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}

	_, err = store.GetHistoryOverview(context.Background())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Expected not found for history, got %v", err)
	}
}

func TestLatestAndHistory(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	clock := &fakeClock{times: []time.Time{t1, t2}}
	store, _ := setupTestStore(t, WithClock(clock.now))
	ctx := context.Background()

	idA, err := store.CreateSnapshot(ctx, map[string][]string{RoleMetadata: {g1}}, "first")
	if err != nil {
		t.Fatalf("Failed to create A: %v", err)
	}
	idB, err := store.CreateSnapshot(ctx, map[string][]string{RoleMetadata: {g2}}, "second")
	if err != nil {
		t.Fatalf("Failed to create B: %v", err)
	}

	latest, err := store.GetLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if latest.ID != idB {
		t.Errorf("Expected latest %s, got %s", idB, latest.ID)
	}
	if !latest.StartTime.Equal(t2) {
		t.Errorf("Expected start %v, got %v", t2, latest.StartTime)
	}
	if latest.EditorialNote != "second" {
		t.Errorf("Expected note 'second', got %q", latest.EditorialNote)
	}

	history, err := store.GetHistoryOverview(ctx)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(history))
	}
	if history[0].ID != idB || history[1].ID != idA {
		t.Errorf("Expected [B, A], got [%s, %s]", history[0].ID, history[1].ID)
	}
	if !reflect.DeepEqual(history[1].Partitions, []string{g1}) {
		t.Errorf("Expected partitions [g1], got %v", history[1].Partitions)
	}

	parts, err := store.ResolvePartitions(ctx, RoleMetadata, "")
	if err != nil {
		t.Fatalf("Failed to resolve partitions: %v", err)
	}
	if !reflect.DeepEqual(parts, []string{g2}) {
		t.Errorf("Expected [g2], got %v", parts)
	}
}

func TestLatestIndependentOfCreationOrder(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{times: []time.Time{
		base.Add(2 * time.Hour),
		base,
		base.Add(time.Hour),
	}}
	store, _ := setupTestStore(t, WithClock(clock.now))
	ctx := context.Background()

	var ids []string
	for _, g := range []string{g1, g2, g1} {
		id, err := store.CreateSnapshot(ctx, map[string][]string{RoleMetadata: {g}}, "")
		if err != nil {
			t.Fatalf("Failed to create snapshot: %v", err)
		}
		ids = append(ids, id)
	}

	latest, err := store.GetLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if latest.ID != ids[0] {
		t.Errorf("Expected %s (max start time), got %s", ids[0], latest.ID)
	}

	history, err := store.GetHistoryOverview(ctx)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		if !history[i-1].StartTime.After(history[i].StartTime) {
			t.Errorf("History not strictly descending at %d", i)
		}
	}
}

func TestCreateSnapshotInvalidatesCache(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{times: []time.Time{t1, t1.Add(time.Minute)}}
	store, _ := setupTestStore(t, WithClock(clock.now))
	ctx := context.Background()

	if _, err := store.CreateSnapshot(ctx, map[string][]string{RoleMetadata: {g1}}, ""); err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	before, err := store.ResolvePartitions(ctx, RoleMetadata, "")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}

	if _, err := store.CreateSnapshot(ctx, map[string][]string{RoleMetadata: {g2}}, ""); err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	after, err := store.ResolvePartitions(ctx, RoleMetadata, "")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}

	if before[0] != g1 || after[0] != g2 {
		t.Errorf("Expected g1 then g2, got %v then %v", before, after)
	}
}

func TestCreateSnapshotUsesInjectedInvalidator(t *testing.T) {
	spy := &spyInvalidator{}
	store, lru := setupTestStore(t, WithInvalidator(spy))
	lru.Set("sentinel", 1)

	if _, err := store.CreateSnapshot(context.Background(), map[string][]string{RoleMetadata: {g1}}, ""); err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	if spy.calls != 1 {
		t.Errorf("Expected 1 invalidation, got %d", spy.calls)
	}
	if _, ok := lru.Get("sentinel"); !ok {
		t.Errorf("Expected shared cache untouched when an invalidator is injected")
	}
}

func TestCreateSnapshotValidation(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	cases := map[string]map[string][]string{
		"empty":           {},
		"unknown role":    {"colour": {g1}},
		"no partitions":   {RoleMetadata: {}},
		"relative graph":  {RoleMetadata: {"graphs/g1"}},
		"blank partition": {RoleMetadata: {""}},
		"nil map":         nil,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := store.CreateSnapshot(ctx, payload, "")
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}

	_, err := store.GetLatestSnapshot(ctx)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Invalid payloads must not append snapshots, got %v", err)
	}
}

func TestGetSnapshotByID(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	id, err := store.CreateSnapshot(ctx, map[string][]string{
		RoleMetadata:      {g2, g1, g1},
		RoleConsumerGroup: {g2},
	}, "note")
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}

	snap, err := store.GetSnapshotByID(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if !reflect.DeepEqual(snap.PartitionsByRole[RoleMetadata], []string{g1, g2}) {
		t.Errorf("Expected deduplicated sorted partitions, got %v", snap.PartitionsByRole[RoleMetadata])
	}
	if !reflect.DeepEqual(snap.PartitionsByRole[RoleConsumerGroup], []string{g2}) {
		t.Errorf("Expected consumer group [g2], got %v", snap.PartitionsByRole[RoleConsumerGroup])
	}

	if _, err := store.GetSnapshotByID(ctx, testBase+"missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
	if _, err := store.GetSnapshotByID(ctx, "not an iri"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestResolvePartitionsExplicitEqualsLatest(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{times: []time.Time{t1, t1.Add(time.Second)}}
	store, _ := setupTestStore(t, WithClock(clock.now))
	ctx := context.Background()

	old, err := store.CreateSnapshot(ctx, map[string][]string{RoleMetadata: {g1}}, "")
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	if _, err := store.CreateSnapshot(ctx, map[string][]string{RoleMetadata: {g1, g2}}, ""); err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	latest, err := store.GetLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}

	implicit, err := store.ResolvePartitions(ctx, RoleMetadata, "")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	explicit, err := store.ResolvePartitions(ctx, RoleMetadata, latest.ID)
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if !reflect.DeepEqual(implicit, explicit) {
		t.Errorf("Expected %v, got %v", implicit, explicit)
	}

	historic, err := store.ResolvePartitions(ctx, RoleMetadata, old)
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if !reflect.DeepEqual(historic, []string{g1}) {
		t.Errorf("Expected [g1] for old snapshot, got %v", historic)
	}

	blank, err := store.ResolvePartitions(ctx, "  ", "")
	if err != nil || blank != nil {
		t.Errorf("Expected nil, nil for blank role, got %v, %v", blank, err)
	}
}

func TestResolveSinglePartition(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateSnapshot(ctx, map[string][]string{
		RoleMetadata:       {g1},
		RoleCategoryFilter: {g1, g2},
	}, ""); err != nil {
		t.Fatalf("Failed to create: %v", err)
	}

	got, err := store.ResolveSinglePartition(ctx, RoleMetadata)
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if got != g1 {
		t.Errorf("Expected g1, got %s", got)
	}

	_, err = store.ResolveSinglePartition(ctx, RoleCategoryFilter)
	if !errors.Is(err, apperr.ErrBusinessRule) {
		t.Fatalf("Expected business rule error, got %v", err)
	}

	_, err = store.ResolveSinglePartition(ctx, RoleInstance)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found for empty role, got %v", err)
	}
}

func TestResolvePartitionsForRoles(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateSnapshot(ctx, map[string][]string{
		RoleMetadata:      {g1},
		RoleConsumerGroup: {g2, g1},
	}, ""); err != nil {
		t.Fatalf("Failed to create: %v", err)
	}

	parts, err := store.ResolvePartitionsForRoles(ctx, []string{RoleMetadata, RoleConsumerGroup})
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if !reflect.DeepEqual(parts, []string{g1, g2}) {
		t.Errorf("Expected union [g1 g2], got %v", parts)
	}

	_, err = store.ResolvePartitionsForRoles(ctx, []string{RoleMetadata, RoleInstance})
	if !errors.Is(err, apperr.ErrTechnical) {
		t.Errorf("Expected technical error, got %v", err)
	}
}

func TestGetSnapshotAsOf(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	clock := &fakeClock{times: []time.Time{t1, t2}}
	store, _ := setupTestStore(t, WithClock(clock.now))
	ctx := context.Background()

	idA, _ := store.CreateSnapshot(ctx, map[string][]string{RoleMetadata: {g1}}, "")
	idB, _ := store.CreateSnapshot(ctx, map[string][]string{RoleMetadata: {g2}}, "")

	tests := []struct {
		at   time.Time
		want string
	}{
		{t1, idA},
		{t1.Add(time.Hour), idA},
		{t2, idB},
		{t2.Add(time.Hour), idB},
	}
	for _, tc := range tests {
		snap, err := store.GetSnapshotAsOf(ctx, tc.at)
		if err != nil {
			t.Fatalf("Failed as-of %v: %v", tc.at, err)
		}
		if snap.ID != tc.want {
			t.Errorf("As of %v: expected %s, got %s", tc.at, tc.want, snap.ID)
		}
	}

	if _, err := store.GetSnapshotAsOf(ctx, t1.Add(-time.Second)); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found before first snapshot, got %v", err)
	}
}

func TestUpdateAndDeleteUnsupported(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	if err := store.UpdateSnapshot(ctx, testBase+"s001", nil, ""); !errors.Is(err, apperr.ErrUnsupportedOperation) {
		t.Errorf("Expected unsupported, got %v", err)
	}
	if err := store.DeleteSnapshot(ctx, testBase+"s001"); !errors.Is(err, apperr.ErrUnsupportedOperation) {
		t.Errorf("Expected unsupported, got %v", err)
	}
}

func TestLatestTieBrokenByGreaterID(t *testing.T) {
	same := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{times: []time.Time{same, same}}
	store, _ := setupTestStore(t, WithClock(clock.now))
	ctx := context.Background()

	if _, err := store.CreateSnapshot(ctx, map[string][]string{RoleMetadata: {g1}}, ""); err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	second, err := store.CreateSnapshot(ctx, map[string][]string{RoleMetadata: {g2}}, "")
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}

	latest, err := store.GetLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if latest.ID != second {
		t.Errorf("Expected %s, got %s", second, latest.ID)
	}
}

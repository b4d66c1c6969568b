// Package server implements the gRPC catalog service
package server

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/typecatalog/internal/logger"
	"github.com/nainya/typecatalog/pkg/apperr"
	"github.com/nainya/typecatalog/pkg/cache"
	"github.com/nainya/typecatalog/pkg/schema"
	"github.com/nainya/typecatalog/pkg/snapshot"
)

// Snapshots is the snapshot store API exposed over gRPC
type Snapshots interface {
	CreateSnapshot(ctx context.Context, partitionsByRole map[string][]string, editorialNote string) (string, error)
	UpdateSnapshot(ctx context.Context, id string, partitionsByRole map[string][]string, editorialNote string) error
	DeleteSnapshot(ctx context.Context, id string) error
	GetLatestSnapshot(ctx context.Context) (*snapshot.ConfigurationSnapshot, error)
	GetSnapshotByID(ctx context.Context, id string) (*snapshot.ConfigurationSnapshot, error)
	GetSnapshotAsOf(ctx context.Context, t time.Time) (*snapshot.ConfigurationSnapshot, error)
	GetHistoryOverview(ctx context.Context) ([]snapshot.SnapshotOverview, error)
	ResolvePartitions(ctx context.Context, role, snapshotID string) ([]string, error)
	ResolvePartitionsForRoles(ctx context.Context, roles []string) ([]string, error)
	ResolveSinglePartition(ctx context.Context, role string) (string, error)
}

// Types is the type and schema resolver API exposed over gRPC
type Types interface {
	GetType(ctx context.Context, typeID string) (*schema.TypeNode, error)
	GetHierarchy(ctx context.Context, rootID string) (*schema.TypeNode, error)
	GetAncestors(ctx context.Context, typeID string) ([]string, error)
	GetLeafTypes(ctx context.Context, rootID string) ([]string, error)
	GetInstantiableTypes(ctx context.Context, rootID string) ([]schema.TypeNode, error)
	ResolveSchema(ctx context.Context, typeID, snapshotID string) (map[string]*schema.MetadataProperty, error)
}

// Server implements CatalogServer
type Server struct {
	snapshots Snapshots
	types     Types
	cache     cache.Cache
	log       *logger.Logger
	startTime time.Time
}

var _ CatalogServer = (*Server)(nil)

// NewServer creates a catalog server. Resolved schemas are memoized in c,
// which must be the cache the snapshot store clears on creation.
func NewServer(snapshots Snapshots, types Types, c cache.Cache, log *logger.Logger) *Server {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		snapshots: snapshots,
		types:     types,
		cache:     c,
		log:       log.Component("catalog"),
		startTime: time.Now(),
	}
}

// Uptime reports how long the server has been running
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

func reply(payload map[string]any, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := encode(payload)
	if err != nil {
		return nil, toStatus(apperr.Technical("failed to encode response: %v", err))
	}
	return out, nil
}

// ========== Snapshot Operations ==========

func (s *Server) CreateSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req snapshotRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	id, err := s.snapshots.CreateSnapshot(ctx, req.PartitionsByRole, req.EditorialNote)
	return reply(map[string]any{"id": id}, err)
}

func (s *Server) UpdateSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req snapshotRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	err := s.snapshots.UpdateSnapshot(ctx, req.ID, req.PartitionsByRole, req.EditorialNote)
	return reply(map[string]any{}, err)
}

func (s *Server) DeleteSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req snapshotRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	err := s.snapshots.DeleteSnapshot(ctx, req.ID)
	return reply(map[string]any{}, err)
}

func (s *Server) GetLatestSnapshot(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	snap, err := s.snapshots.GetLatestSnapshot(ctx)
	return reply(map[string]any{"snapshot": snap}, err)
}

func (s *Server) GetSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req snapshotRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	snap, err := s.snapshots.GetSnapshotByID(ctx, req.ID)
	return reply(map[string]any{"snapshot": snap}, err)
}

func (s *Server) GetSnapshotAsOf(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req asOfRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	if req.Time.IsZero() {
		return nil, toStatus(apperr.Validation("time is required"))
	}
	snap, err := s.snapshots.GetSnapshotAsOf(ctx, req.Time)
	return reply(map[string]any{"snapshot": snap}, err)
}

func (s *Server) GetHistory(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	history, err := s.snapshots.GetHistoryOverview(ctx)
	return reply(map[string]any{"snapshots": history}, err)
}

// ========== Partition Operations ==========

func (s *Server) ResolvePartitions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req partitionsRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	parts, err := s.snapshots.ResolvePartitions(ctx, req.Role, req.SnapshotID)
	return reply(map[string]any{"partitions": nonNil(parts)}, err)
}

func (s *Server) ResolvePartitionsForRoles(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req partitionsRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	parts, err := s.snapshots.ResolvePartitionsForRoles(ctx, req.Roles)
	return reply(map[string]any{"partitions": nonNil(parts)}, err)
}

func (s *Server) ResolveSinglePartition(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req partitionsRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	part, err := s.snapshots.ResolveSinglePartition(ctx, req.Role)
	return reply(map[string]any{"partition": part}, err)
}

// ========== Type Operations ==========

func (s *Server) GetType(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req typeRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	node, err := s.types.GetType(ctx, req.TypeID)
	return reply(map[string]any{"type": node}, err)
}

func (s *Server) GetHierarchy(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req typeRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	root, err := s.types.GetHierarchy(ctx, req.TypeID)
	return reply(map[string]any{"type": root}, err)
}

func (s *Server) GetAncestors(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req typeRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	ids, err := s.types.GetAncestors(ctx, req.TypeID)
	return reply(map[string]any{"types": nonNil(ids)}, err)
}

func (s *Server) GetLeafTypes(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req typeRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	ids, err := s.types.GetLeafTypes(ctx, req.TypeID)
	return reply(map[string]any{"types": nonNil(ids)}, err)
}

func (s *Server) GetInstantiableTypes(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req typeRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	nodes, err := s.types.GetInstantiableTypes(ctx, req.TypeID)
	if nodes == nil {
		nodes = []schema.TypeNode{}
	}
	return reply(map[string]any{"types": nodes}, err)
}

// ResolveSchema memoizes per type and snapshot until the next snapshot is created
func (s *Server) ResolveSchema(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req typeRequest
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	key := "schema|" + req.TypeID + "|" + req.SnapshotID
	props, err := cache.GetOrAdd(s.cache, key, func() (map[string]*schema.MetadataProperty, error) {
		return s.types.ResolveSchema(ctx, req.TypeID, req.SnapshotID)
	})
	if err == nil {
		s.log.Debug("Schema resolved").Str("type_id", req.TypeID).Int("properties", len(props)).Send()
	}
	return reply(map[string]any{"properties": props}, err)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

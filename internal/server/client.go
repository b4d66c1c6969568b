// ABOUTME: Typed client for the catalog gRPC service
// ABOUTME: Wraps Invoke over Struct payloads and decodes domain types

package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/typecatalog/pkg/schema"
	"github.com/nainya/typecatalog/pkg/snapshot"
)

// Client calls a remote catalog service
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := encode(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, method string, req map[string]any, key string, out any) error {
	resp, err := c.invoke(ctx, method, req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, key, out)
}

// CreateSnapshot appends a snapshot and returns its id
func (c *Client) CreateSnapshot(ctx context.Context, partitionsByRole map[string][]string, editorialNote string) (string, error) {
	var id string
	err := c.call(ctx, MethodCreateSnapshot, map[string]any{
		"partitionsByRole": partitionsByRole,
		"editorialNote":    editorialNote,
	}, "id", &id)
	return id, err
}

// UpdateSnapshot is always rejected by the server
func (c *Client) UpdateSnapshot(ctx context.Context, id string, partitionsByRole map[string][]string, editorialNote string) error {
	_, err := c.invoke(ctx, MethodUpdateSnapshot, map[string]any{
		"id":               id,
		"partitionsByRole": partitionsByRole,
		"editorialNote":    editorialNote,
	})
	return err
}

// DeleteSnapshot is always rejected by the server
func (c *Client) DeleteSnapshot(ctx context.Context, id string) error {
	_, err := c.invoke(ctx, MethodDeleteSnapshot, map[string]any{"id": id})
	return err
}

func (c *Client) GetLatestSnapshot(ctx context.Context) (*snapshot.ConfigurationSnapshot, error) {
	var snap *snapshot.ConfigurationSnapshot
	err := c.call(ctx, MethodGetLatestSnapshot, map[string]any{}, "snapshot", &snap)
	return snap, err
}

func (c *Client) GetSnapshotByID(ctx context.Context, id string) (*snapshot.ConfigurationSnapshot, error) {
	var snap *snapshot.ConfigurationSnapshot
	err := c.call(ctx, MethodGetSnapshot, map[string]any{"id": id}, "snapshot", &snap)
	return snap, err
}

func (c *Client) GetSnapshotAsOf(ctx context.Context, t time.Time) (*snapshot.ConfigurationSnapshot, error) {
	var snap *snapshot.ConfigurationSnapshot
	err := c.call(ctx, MethodGetSnapshotAsOf, map[string]any{"time": t.UTC().Format(time.RFC3339Nano)}, "snapshot", &snap)
	return snap, err
}

func (c *Client) GetHistoryOverview(ctx context.Context) ([]snapshot.SnapshotOverview, error) {
	var history []snapshot.SnapshotOverview
	err := c.call(ctx, MethodGetHistory, map[string]any{}, "snapshots", &history)
	return history, err
}

func (c *Client) ResolvePartitions(ctx context.Context, role, snapshotID string) ([]string, error) {
	var parts []string
	err := c.call(ctx, MethodResolvePartitions, map[string]any{"role": role, "snapshotId": snapshotID}, "partitions", &parts)
	return parts, err
}

func (c *Client) ResolvePartitionsForRoles(ctx context.Context, roles []string) ([]string, error) {
	var parts []string
	err := c.call(ctx, MethodResolvePartitionsForRoles, map[string]any{"roles": roles}, "partitions", &parts)
	return parts, err
}

func (c *Client) ResolveSinglePartition(ctx context.Context, role string) (string, error) {
	var part string
	err := c.call(ctx, MethodResolveSinglePartition, map[string]any{"role": role}, "partition", &part)
	return part, err
}

func (c *Client) GetType(ctx context.Context, typeID string) (*schema.TypeNode, error) {
	var node *schema.TypeNode
	err := c.call(ctx, MethodGetType, map[string]any{"typeId": typeID}, "type", &node)
	return node, err
}

func (c *Client) GetHierarchy(ctx context.Context, rootID string) (*schema.TypeNode, error) {
	var node *schema.TypeNode
	err := c.call(ctx, MethodGetHierarchy, map[string]any{"typeId": rootID}, "type", &node)
	return node, err
}

func (c *Client) GetAncestors(ctx context.Context, typeID string) ([]string, error) {
	var ids []string
	err := c.call(ctx, MethodGetAncestors, map[string]any{"typeId": typeID}, "types", &ids)
	return ids, err
}

func (c *Client) GetLeafTypes(ctx context.Context, rootID string) ([]string, error) {
	var ids []string
	err := c.call(ctx, MethodGetLeafTypes, map[string]any{"typeId": rootID}, "types", &ids)
	return ids, err
}

func (c *Client) GetInstantiableTypes(ctx context.Context, rootID string) ([]schema.TypeNode, error) {
	var nodes []schema.TypeNode
	err := c.call(ctx, MethodGetInstantiableTypes, map[string]any{"typeId": rootID}, "types", &nodes)
	return nodes, err
}

func (c *Client) ResolveSchema(ctx context.Context, typeID, snapshotID string) (map[string]*schema.MetadataProperty, error) {
	var props map[string]*schema.MetadataProperty
	err := c.call(ctx, MethodResolveSchema, map[string]any{"typeId": typeID, "snapshotId": snapshotID}, "properties", &props)
	return props, err
}

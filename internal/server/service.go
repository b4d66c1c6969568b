// ABOUTME: Hand-declared gRPC service descriptor for the catalog
// ABOUTME: Every method exchanges google.protobuf.Struct payloads

package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "typecatalog.v1.CatalogService"

// Method names
const (
	MethodCreateSnapshot            = "CreateSnapshot"
	MethodUpdateSnapshot            = "UpdateSnapshot"
	MethodDeleteSnapshot            = "DeleteSnapshot"
	MethodGetLatestSnapshot         = "GetLatestSnapshot"
	MethodGetSnapshot               = "GetSnapshot"
	MethodGetSnapshotAsOf           = "GetSnapshotAsOf"
	MethodGetHistory                = "GetHistory"
	MethodResolvePartitions         = "ResolvePartitions"
	MethodResolvePartitionsForRoles = "ResolvePartitionsForRoles"
	MethodResolveSinglePartition    = "ResolveSinglePartition"
	MethodGetType                   = "GetType"
	MethodGetHierarchy              = "GetHierarchy"
	MethodGetAncestors              = "GetAncestors"
	MethodGetLeafTypes              = "GetLeafTypes"
	MethodGetInstantiableTypes      = "GetInstantiableTypes"
	MethodResolveSchema             = "ResolveSchema"
)

// CatalogServer is the server API for the catalog service
type CatalogServer interface {
	CreateSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLatestSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSnapshotAsOf(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolvePartitions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolvePartitionsForRoles(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveSinglePartition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetType(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHierarchy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAncestors(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLeafTypes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetInstantiableTypes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveSchema(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(CatalogServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CatalogServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CatalogServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// CatalogServiceDesc describes the catalog service for grpc.Server
var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodCreateSnapshot, CatalogServer.CreateSnapshot),
		unary(MethodUpdateSnapshot, CatalogServer.UpdateSnapshot),
		unary(MethodDeleteSnapshot, CatalogServer.DeleteSnapshot),
		unary(MethodGetLatestSnapshot, CatalogServer.GetLatestSnapshot),
		unary(MethodGetSnapshot, CatalogServer.GetSnapshot),
		unary(MethodGetSnapshotAsOf, CatalogServer.GetSnapshotAsOf),
		unary(MethodGetHistory, CatalogServer.GetHistory),
		unary(MethodResolvePartitions, CatalogServer.ResolvePartitions),
		unary(MethodResolvePartitionsForRoles, CatalogServer.ResolvePartitionsForRoles),
		unary(MethodResolveSinglePartition, CatalogServer.ResolveSinglePartition),
		unary(MethodGetType, CatalogServer.GetType),
		unary(MethodGetHierarchy, CatalogServer.GetHierarchy),
		unary(MethodGetAncestors, CatalogServer.GetAncestors),
		unary(MethodGetLeafTypes, CatalogServer.GetLeafTypes),
		unary(MethodGetInstantiableTypes, CatalogServer.GetInstantiableTypes),
		unary(MethodResolveSchema, CatalogServer.ResolveSchema),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "typecatalog/v1/catalog.proto",
}

// RegisterCatalogServer registers srv with a gRPC server
func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&CatalogServiceDesc, srv)
}

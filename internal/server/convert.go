package server

import (
	"encoding/json"
	"time"

	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/typecatalog/pkg/apperr"
)

// Request payloads, decoded from the incoming Struct

type snapshotRequest struct {
	ID               string              `json:"id"`
	PartitionsByRole map[string][]string `json:"partitionsByRole"`
	EditorialNote    string              `json:"editorialNote"`
}

type asOfRequest struct {
	Time time.Time `json:"time"`
}

type partitionsRequest struct {
	Role       string   `json:"role"`
	Roles      []string `json:"roles"`
	SnapshotID string   `json:"snapshotId"`
}

type typeRequest struct {
	TypeID     string `json:"typeId"`
	SnapshotID string `json:"snapshotId"`
}

// decode copies a Struct into a request type through its JSON form
func decode(in *structpb.Struct, out any) error {
	if in == nil {
		return nil
	}
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return apperr.Validation("malformed request: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Validation("malformed request: %v", err)
	}
	return nil
}

// encode converts a response value into a Struct through its JSON form
func encode(v map[string]any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return structpb.NewStruct(generic)
}

// decodeResponse is the client-side inverse of encode
func decodeResponse(in *structpb.Struct, key string, out any) error {
	value, ok := in.GetFields()[key]
	if !ok {
		return nil
	}
	raw, err := json.Marshal(value.AsInterface())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// toStatus maps domain errors onto gRPC status errors
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(apperr.GRPCCode(err), err.Error())
}

package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// optional は JSON の項目が指定されたかどうかを保持します。null は Set=true, Value=nil です。
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// decodeRequest は Struct ペイロードを camelCase JSON として dst に読み込みます。
func decodeRequest(req *structpb.Struct, dst any) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request is required")
	}
	raw, err := req.MarshalJSON()
	if err != nil {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("request: %v", err))
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("request: %v", err))
	}
	return nil
}

func encodeResponse(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "response encoding failed")
	}
	return out, nil
}

type sortRequest struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

type idRequest struct {
	ID string `json:"id"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func optionalString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func pageResult(items []any, total, page, pageSize int) map[string]any {
	return map[string]any{
		"items":    items,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	}
}

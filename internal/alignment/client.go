package alignment

import (
	"context"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/process-compliance/internal/deviation"
	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/incident"
	"github.com/danielpatrickdp/process-compliance/internal/process"
	"github.com/danielpatrickdp/process-compliance/internal/variant"
)

// AlignMethod is the full RPC name of the conformance check.
const AlignMethod = "/conformance.v1.ConformanceService/Align"

// #region service
// ConformanceService is the RPC surface of the external conformance checker.
// Payloads are structpb.Struct so no generated stubs are needed.
type ConformanceService interface {
	Align(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type conformanceServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewConformanceServiceClient binds the service to a connection.
func NewConformanceServiceClient(cc grpc.ClientConnInterface) ConformanceService {
	return &conformanceServiceClient{cc: cc}
}

func (c *conformanceServiceClient) Align(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AlignMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
// #endregion service

// #region types
// Request identifies the incident and its recorded event sequence.
type Request struct {
	IncidentID string
	Events     []string
}

// Result is the conformance data returned for one incident.
type Result struct {
	IncidentID string
	Fitness    float64
	Cost       float64
	Alignment  string
	Trace      []string
	Deviations deviation.Record
}

// ApplyTo returns inc with its conformance fields replaced by r.
func (r Result) ApplyTo(inc incident.Incident) incident.Incident {
	inc.Fitness = r.Fitness
	inc.Cost = r.Cost
	inc.Alignment = r.Alignment
	inc.Trace = append([]string(nil), r.Trace...)
	inc.Deviations = r.Deviations
	return inc
}
// #endregion types

// #region client-struct
// Client wraps the gRPC connection to the conformance service.
type Client struct {
	conn *grpc.ClientConn
	svc  ConformanceService
}
// #endregion client-struct

// #region constructor
// NewClient connects to the conformance gRPC server.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn: conn,
		svc:  NewConformanceServiceClient(conn),
	}, nil
}

// NewClientWithService creates a Client with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewClientWithService(svc ConformanceService) *Client {
	return &Client{svc: svc}
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region align
// Align runs the conformance check for one incident.
func (c *Client) Align(ctx context.Context, req Request) (Result, error) {
	events := make([]any, len(req.Events))
	for i, e := range req.Events {
		events[i] = e
	}
	in, err := structpb.NewStruct(map[string]any{
		"incident_id": req.IncidentID,
		"events":      events,
	})
	if err != nil {
		return Result{}, fmt.Errorf("build align request: %w", err)
	}

	out, err := c.svc.Align(ctx, in)
	if err != nil {
		return Result{}, fmt.Errorf("align rpc: %w", err)
	}
	res, err := decodeResult(out)
	if err != nil {
		return Result{}, fmt.Errorf("align %s: %w", req.IncidentID, err)
	}
	if res.IncidentID == "" {
		res.IncidentID = req.IncidentID
	}
	return res, nil
}

// Refresh aligns each incident in order and returns updated copies.
// It stops at the first failure or when ctx is done.
func (c *Client) Refresh(ctx context.Context, incs []incident.Incident) ([]incident.Incident, error) {
	out := make([]incident.Incident, 0, len(incs))
	for _, inc := range incs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := c.Align(ctx, Request{IncidentID: inc.ID, Events: inc.Trace})
		if err != nil {
			return out, err
		}
		out = append(out, res.ApplyTo(inc))
	}
	return out, nil
}
// #endregion align

// #region decode
func decodeResult(s *structpb.Struct) (Result, error) {
	f := s.GetFields()
	var r Result
	r.IncidentID = f["incident_id"].GetStringValue()

	r.Fitness = f["fitness"].GetNumberValue()
	if math.IsNaN(r.Fitness) || r.Fitness < 0 || r.Fitness > 1 {
		return Result{}, faults.DataFormat("align", fmt.Sprint(r.Fitness), "fitness must be in [0,1]")
	}
	r.Cost = f["cost"].GetNumberValue()
	if math.IsNaN(r.Cost) || math.IsInf(r.Cost, 0) || r.Cost < 0 {
		return Result{}, faults.DataFormat("align", fmt.Sprint(r.Cost), "cost must be finite and non-negative")
	}

	r.Alignment = f["alignment"].GetStringValue()
	trace, err := variant.Extract(r.Alignment)
	if err != nil {
		return Result{}, err
	}
	r.Trace = trace

	var maps [process.NumKinds]map[string]int
	for _, k := range process.Kinds() {
		m, err := countMap(f[k.String()].GetStructValue())
		if err != nil {
			return Result{}, fmt.Errorf("%s deviations: %w", k, err)
		}
		maps[k] = m
	}
	rec, err := deviation.FromMaps(maps[process.KindMissing], maps[process.KindRepetition], maps[process.KindMismatch])
	if err != nil {
		return Result{}, err
	}
	r.Deviations = rec
	return r, nil
}

// countMap converts a state → number struct into integer counts.
func countMap(s *structpb.Struct) (map[string]int, error) {
	out := make(map[string]int, len(s.GetFields()))
	for code, v := range s.GetFields() {
		n := v.GetNumberValue()
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return nil, faults.DataFormat("align", fmt.Sprintf("%s=%v", code, n), "count is not an integer")
		}
		out[code] = int(n)
	}
	return out, nil
}
// #endregion decode

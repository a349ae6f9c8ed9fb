package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/auction-ledger/internal/adapter/storage"
	"github.com/rl1809/auction-ledger/internal/core/domain"
	"github.com/rl1809/auction-ledger/internal/core/service"
)

const (
	ServiceName = "auction.v1.AuctionService"

	// PrincipalMetadataKey identifies the caller of SubmitBid.
	PrincipalMetadataKey = "x-principal"
)

// AuctionServiceServer is the gRPC surface of the auction ledger. There is
// no CloseAuction method: auctions end only through their timer.
type AuctionServiceServer interface {
	CreateAuction(context.Context, *CreateAuctionRequest) (*CreateAuctionResponse, error)
	GetAuction(context.Context, *AuctionRequest) (*AuctionResponse, error)
	GetAuctionDetails(context.Context, *AuctionRequest) (*AuctionDetailsResponse, error)
	GetRemainingTime(context.Context, *AuctionRequest) (*RemainingTimeResponse, error)
	ListOverview(context.Context, *ListRequest) (*ListResponse, error)
	ListAll(context.Context, *ListRequest) (*ListResponse, error)
	ListActive(context.Context, *ListRequest) (*ListResponse, error)
	ListEnded(context.Context, *ListRequest) (*ListResponse, error)
	SubmitBid(context.Context, *SubmitBidRequest) (*SubmitBidResponse, error)
	GetHighestBid(context.Context, *AuctionRequest) (*HighestBidResponse, error)
	GetAllBids(context.Context, *AuctionRequest) (*BidsResponse, error)
}

type GRPCHandler struct {
	auctionService *service.AuctionService
}

var _ AuctionServiceServer = (*GRPCHandler)(nil)

func NewGRPCHandler(auctionService *service.AuctionService) *GRPCHandler {
	return &GRPCHandler{auctionService: auctionService}
}

// Register attaches the handler to a gRPC server. Messages are JSON encoded,
// so clients must call with the "json" content-subtype.
func (h *GRPCHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&auctionServiceDesc, h)
}

var auctionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuctionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateAuction", AuctionServiceServer.CreateAuction),
		unary("GetAuction", AuctionServiceServer.GetAuction),
		unary("GetAuctionDetails", AuctionServiceServer.GetAuctionDetails),
		unary("GetRemainingTime", AuctionServiceServer.GetRemainingTime),
		unary("ListOverview", AuctionServiceServer.ListOverview),
		unary("ListAll", AuctionServiceServer.ListAll),
		unary("ListActive", AuctionServiceServer.ListActive),
		unary("ListEnded", AuctionServiceServer.ListEnded),
		unary("SubmitBid", AuctionServiceServer.SubmitBid),
		unary("GetHighestBid", AuctionServiceServer.GetHighestBid),
		unary("GetAllBids", AuctionServiceServer.GetAllBids),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auction/v1/auction.json",
}

func unary[Req, Resp any](name string, call func(AuctionServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(AuctionServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req))
			})
		},
	}
}

func (h *GRPCHandler) CreateAuction(ctx context.Context, req *CreateAuctionRequest) (*CreateAuctionResponse, error) {
	if req.DurationSeconds > maxDurationSeconds {
		return nil, status.Error(codes.InvalidArgument, "duration too long")
	}
	id, err := h.auctionService.CreateAuction(ctx, req.Item, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CreateAuctionResponse{ID: id}, nil
}

func (h *GRPCHandler) GetAuction(ctx context.Context, req *AuctionRequest) (*AuctionResponse, error) {
	a, err := h.auctionService.GetAuction(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AuctionResponse{Auction: a}, nil
}

func (h *GRPCHandler) GetAuctionDetails(ctx context.Context, req *AuctionRequest) (*AuctionDetailsResponse, error) {
	details, err := h.auctionService.GetAuctionDetails(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AuctionDetailsResponse{Details: details}, nil
}

func (h *GRPCHandler) GetRemainingTime(ctx context.Context, req *AuctionRequest) (*RemainingTimeResponse, error) {
	remaining, err := h.auctionService.GetRemainingTime(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &RemainingTimeResponse{RemainingNanos: remaining.Nanoseconds()}, nil
}

func (h *GRPCHandler) ListOverview(ctx context.Context, _ *ListRequest) (*ListResponse, error) {
	return listResponse(h.auctionService.ListOverview(ctx))
}

func (h *GRPCHandler) ListAll(ctx context.Context, _ *ListRequest) (*ListResponse, error) {
	return listResponse(h.auctionService.ListAll(ctx))
}

func (h *GRPCHandler) ListActive(ctx context.Context, _ *ListRequest) (*ListResponse, error) {
	return listResponse(h.auctionService.ListActive(ctx))
}

func (h *GRPCHandler) ListEnded(ctx context.Context, _ *ListRequest) (*ListResponse, error) {
	return listResponse(h.auctionService.ListEnded(ctx))
}

func (h *GRPCHandler) SubmitBid(ctx context.Context, req *SubmitBidRequest) (*SubmitBidResponse, error) {
	if err := h.auctionService.SubmitBid(ctx, req.ID, req.Price, principalFromMetadata(ctx)); err != nil {
		return nil, toStatus(err)
	}
	return &SubmitBidResponse{Accepted: true}, nil
}

func (h *GRPCHandler) GetHighestBid(ctx context.Context, req *AuctionRequest) (*HighestBidResponse, error) {
	bid, err := h.auctionService.GetHighestBid(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &HighestBidResponse{Bid: bid}, nil
}

func (h *GRPCHandler) GetAllBids(ctx context.Context, req *AuctionRequest) (*BidsResponse, error) {
	bids, err := h.auctionService.GetAllBids(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &BidsResponse{Bids: bids}, nil
}

// UnaryLoggingInterceptor logs each call with its method, code and latency.
func UnaryLoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		level := slog.LevelInfo
		if code == codes.Internal || code == codes.Unknown {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "grpc request",
			slog.String("method", info.FullMethod),
			slog.String("code", code.String()),
			slog.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}

func listResponse(overviews []domain.AuctionOverview, err error) (*ListResponse, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListResponse{Auctions: overviews}, nil
}

func principalFromMetadata(ctx context.Context) domain.Principal {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(PrincipalMetadataKey); len(values) > 0 {
		return domain.Principal(values[0])
	}
	return ""
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrAuctionEnded):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrBidTooLow), errors.Is(err, domain.ErrInvalidDuration):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrRecordTooLarge):
		return status.Error(codes.ResourceExhausted, "auction record too large")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

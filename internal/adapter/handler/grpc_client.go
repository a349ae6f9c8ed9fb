package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/rl1809/auction-ledger/internal/core/domain"
)

// AuctionClient calls AuctionService over an existing connection.
type AuctionClient struct {
	conn grpc.ClientConnInterface
}

func NewAuctionClient(conn grpc.ClientConnInterface) *AuctionClient {
	return &AuctionClient{conn: conn}
}

func (c *AuctionClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype(JSONCodecName))
}

func (c *AuctionClient) CreateAuction(ctx context.Context, req *CreateAuctionRequest) (*CreateAuctionResponse, error) {
	out := new(CreateAuctionResponse)
	if err := c.invoke(ctx, "CreateAuction", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuctionClient) GetAuction(ctx context.Context, id domain.AuctionID) (*domain.Auction, error) {
	out := new(AuctionResponse)
	if err := c.invoke(ctx, "GetAuction", &AuctionRequest{ID: id}, out); err != nil {
		return nil, err
	}
	return &out.Auction, nil
}

func (c *AuctionClient) GetAuctionDetails(ctx context.Context, id domain.AuctionID) (*domain.AuctionDetails, error) {
	out := new(AuctionDetailsResponse)
	if err := c.invoke(ctx, "GetAuctionDetails", &AuctionRequest{ID: id}, out); err != nil {
		return nil, err
	}
	return &out.Details, nil
}

func (c *AuctionClient) GetRemainingTime(ctx context.Context, id domain.AuctionID) (*RemainingTimeResponse, error) {
	out := new(RemainingTimeResponse)
	if err := c.invoke(ctx, "GetRemainingTime", &AuctionRequest{ID: id}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// List calls one of ListOverview, ListAll, ListActive or ListEnded.
func (c *AuctionClient) List(ctx context.Context, method string) ([]domain.AuctionOverview, error) {
	out := new(ListResponse)
	if err := c.invoke(ctx, method, &ListRequest{}, out); err != nil {
		return nil, err
	}
	return out.Auctions, nil
}

// SubmitBid sends the bid on behalf of principal; an empty principal bids anonymously.
func (c *AuctionClient) SubmitBid(ctx context.Context, id domain.AuctionID, price uint64, principal domain.Principal) error {
	if principal != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, PrincipalMetadataKey, string(principal))
	}
	return c.invoke(ctx, "SubmitBid", &SubmitBidRequest{ID: id, Price: price}, new(SubmitBidResponse))
}

func (c *AuctionClient) GetHighestBid(ctx context.Context, id domain.AuctionID) (*domain.Bid, error) {
	out := new(HighestBidResponse)
	if err := c.invoke(ctx, "GetHighestBid", &AuctionRequest{ID: id}, out); err != nil {
		return nil, err
	}
	return out.Bid, nil
}

func (c *AuctionClient) GetAllBids(ctx context.Context, id domain.AuctionID) ([]domain.Bid, error) {
	out := new(BidsResponse)
	if err := c.invoke(ctx, "GetAllBids", &AuctionRequest{ID: id}, out); err != nil {
		return nil, err
	}
	return out.Bids, nil
}

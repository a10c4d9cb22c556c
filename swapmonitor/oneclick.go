package swapmonitor

import (
	"context"

	"github.com/ClipFinance/intents-solver/common/types"
	"github.com/ClipFinance/intents-solver/oneclick"
)

// OneClickProvider adapts the 1Click client to the StatusProvider
// interface.
type OneClickProvider struct {
	client *oneclick.Client
}

// NewOneClickProvider wraps a 1Click client for status polling.
func NewOneClickProvider(client *oneclick.Client) *OneClickProvider {
	return &OneClickProvider{client: client}
}

// FetchSwapStatus maps the bridge execution status onto the settlement
// record shape.
func (p *OneClickProvider) FetchSwapStatus(ctx context.Context, depositAddress string) (*StatusUpdate, error) {
	resp, err := p.client.GetSwapStatus(ctx, depositAddress)
	if err != nil {
		return nil, err
	}

	update := &StatusUpdate{Status: types.SwapStatus(resp.GetStatus())}

	details := resp.GetSwapDetails()
	if hashes := details.GetDestinationChainTxHashes(); len(hashes) > 0 {
		update.FinalTxHash = hashes[0].GetHash()
	}
	return update, nil
}

package docapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tdex-network/tdex-notary/pkg/explorer"
)

func (d *docapi) Register(
	ctx context.Context, fingerprint string,
) (*explorer.Registration, error) {
	endpoint := fmt.Sprintf("%s/registration", d.apiURL)
	resp, err := d.client.do(
		ctx, http.MethodPost, endpoint, registrationRequest{fingerprint},
	)
	if err != nil {
		return nil, err
	}

	reply := &registrationReply{}
	if err := resp.decode(reply); err != nil {
		return nil, err
	}
	if len(reply.Address) <= 0 {
		return nil, fmt.Errorf("%w: missing address", explorer.ErrInvalidResponse)
	}

	return &explorer.Registration{
		Address: reply.Address,
		Amount:  reply.Amount,
	}, nil
}

package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	constant "github.com/pixbridge/bridge-scheduler/pkg/const"
)

// Client reads public chain data over REST. Only heights are read here;
// confidential amounts come from the signer gateway.
type Client struct {
	base string
	cli  *resty.Client
}

func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		cli:  resty.New().SetTimeout(constant.ExplorerTimeout),
	}
}

func (c *Client) TipHeight(ctx context.Context) (uint64, error) {
	resp, err := c.cli.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%v/blocks/tip/height", c.base))
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("explorer tip height: %v", resp.Status())
	}

	height, err := strconv.ParseUint(strings.TrimSpace(string(resp.Body())), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("explorer tip height: %w", err)
	}
	return height, nil
}

type txStatus struct {
	Status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight uint64 `json:"block_height"`
	} `json:"status"`
}

// TxHeight returns the inclusion height of txid and whether it is confirmed.
func (c *Client) TxHeight(ctx context.Context, txid string) (uint64, bool, error) {
	resp, err := c.cli.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%v/tx/%v", c.base, txid))
	if err != nil {
		return 0, false, err
	}
	if resp.IsError() {
		return 0, false, fmt.Errorf("explorer tx %v: %v", txid, resp.Status())
	}

	tx := &txStatus{}
	if err := json.Unmarshal(resp.Body(), tx); err != nil {
		return 0, false, fmt.Errorf("explorer tx %v: %w", txid, err)
	}
	return tx.Status.BlockHeight, tx.Status.Confirmed, nil
}

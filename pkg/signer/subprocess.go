package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	constant "github.com/pixbridge/bridge-scheduler/pkg/const"
)

type response struct {
	Success     bool     `json:"success"`
	Error       string   `json:"error"`
	Address     string   `json:"address"`
	Addresses   []string `json:"addresses"`
	Found       bool     `json:"found"`
	TotalAmount string   `json:"total_amount"`
	TxID        string   `json:"txid"`
	UTXOs       []UTXO   `json:"utxos"`
	Index       uint64   `json:"index"`
}

type subprocessSigner struct {
	command   string
	serialize bool
	mutex     sync.Mutex
}

// NewSubprocessSigner shells out to the gateway binary per invocation. With
// serialize set, invocations are funneled through a single mutex for gateways
// that are unsafe under concurrent calls.
func NewSubprocessSigner(command string, serialize bool) Signer {
	return &subprocessSigner{
		command:   command,
		serialize: serialize,
	}
}

func (s *subprocessSigner) invoke(ctx context.Context, args ...string) (*response, error) {
	if s.serialize {
		s.mutex.Lock()
		defer s.mutex.Unlock()
	}

	ctx, cancel := context.WithTimeout(ctx, constant.SignerTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("signer %v: %w (%v)", args[0], err, stderr.String())
	}

	resp, err := parseResponse(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("signer %v: %w", args[0], err)
	}
	return resp, nil
}

func parseResponse(body []byte) (*response, error) {
	resp := &response{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, fmt.Errorf("malformed output: %w", err)
	}
	if !resp.Success {
		if resp.Error == "" {
			resp.Error = "unknown error"
		}
		return nil, fmt.Errorf("gateway error: %v", resp.Error)
	}
	return resp, nil
}

func (s *subprocessSigner) Derive(ctx context.Context, index uint64) (string, error) {
	resp, err := s.invoke(ctx, "derive", strconv.FormatUint(index, 10))
	if err != nil {
		return "", err
	}
	if resp.Address == "" {
		return "", fmt.Errorf("signer derive: empty address")
	}
	return resp.Address, nil
}

func (s *subprocessSigner) DeriveRange(ctx context.Context, start, end uint64) ([]string, error) {
	resp, err := s.invoke(ctx, "derive_range", strconv.FormatUint(start, 10), strconv.FormatUint(end, 10))
	if err != nil {
		return nil, err
	}
	return resp.Addresses, nil
}

func (s *subprocessSigner) CheckPayment(ctx context.Context, index uint64, asset string) (*PaymentInfo, error) {
	resp, err := s.invoke(ctx, "check_payment", strconv.FormatUint(index, 10), asset)
	if err != nil {
		return nil, err
	}
	if !resp.Found {
		return &PaymentInfo{}, nil
	}

	amount, err := decimal.NewFromString(resp.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("signer check_payment: invalid amount %q: %w", resp.TotalAmount, err)
	}
	return &PaymentInfo{
		Found:       true,
		TotalAmount: amount,
		TxID:        resp.TxID,
		UTXOs:       resp.UTXOs,
	}, nil
}

func (s *subprocessSigner) CheckAddress(ctx context.Context, address string) (bool, uint64, error) {
	resp, err := s.invoke(ctx, "check_address", address)
	if err != nil {
		return false, 0, err
	}
	return resp.Found, resp.Index, nil
}

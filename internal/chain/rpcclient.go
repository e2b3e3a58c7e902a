package chain

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type rpcClient struct {
	endpoints      []string
	timeout        time.Duration
	jwtSecretBytes []byte
	curIdx         atomic.Int32
	httpClient     *http.Client
}

func newRPCClient(urls []string, timeout time.Duration, jwtSecret []byte) *rpcClient {
	if len(urls) == 0 {
		urls = []string{"http://localhost:8547"}
	}
	return &rpcClient{
		endpoints:      urls,
		timeout:        timeout,
		jwtSecretBytes: jwtSecret,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

type rpcReq struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResp struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// txArgs mirrors the eth_sendTransaction / eth_call parameter object.
type txArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
}

// txReceipt carries the receipt fields the lifecycle protocol reads.
type txReceipt struct {
	Status          hexutil.Uint64  `json:"status"`
	ContractAddress *common.Address `json:"contractAddress"`
	BlockNumber     hexutil.Uint64  `json:"blockNumber"`
	TransactionHash common.Hash     `json:"transactionHash"`
}

func (c *rpcClient) nextEndpoint() string {
	idx := int(c.curIdx.Add(1)) % len(c.endpoints)
	return c.endpoints[idx]
}

func (c *rpcClient) do(ctx context.Context, method string, params interface{}, out interface{}) error {
	reqBody := rpcReq{
		JSONRPC: "2.0",
		ID:      uint64(time.Now().UnixNano()),
		Method:  method,
		Params:  params,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCallFailed, err)
	}

	url := c.nextEndpoint()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCallFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if len(c.jwtSecretBytes) > 0 {
		token, err := jwtForNow(c.jwtSecretBytes)
		if err != nil {
			return fmt.Errorf("%w: jwt signing failed: %v", ErrCallFailed, err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCallFailed, err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCallFailed, err)
	}
	var r rpcResp
	if err := json.Unmarshal(respData, &r); err != nil {
		return fmt.Errorf("%w: %v", ErrCallFailed, err)
	}
	if r.Error != nil {
		return classifyRPCError(r.Error)
	}
	if out != nil {
		if err := json.Unmarshal(r.Result, out); err != nil {
			return fmt.Errorf("%w: %v", ErrCallFailed, err)
		}
	}
	return nil
}

// classifyRPCError separates reverts (which carry protocol meaning) from
// transport and node failures (which are retryable at the caller's
// discretion).
func classifyRPCError(rerr *rpcError) error {
	if !strings.Contains(strings.ToLower(rerr.Message), "revert") {
		return fmt.Errorf("%w: rpc error %d: %s", ErrCallFailed, rerr.Code, rerr.Message)
	}
	if reason, ok := revertReasonFromData(rerr.Data); ok {
		return classifyRevert(reason)
	}
	// Nodes disagree on where the reason lives; fall back to the message.
	return classifyRevert(strings.TrimSpace(strings.TrimPrefix(rerr.Message, "execution reverted:")))
}

func revertReasonFromData(data json.RawMessage) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	var hexData string
	if err := json.Unmarshal(data, &hexData); err != nil {
		return "", false
	}
	raw, err := hexutil.Decode(hexData)
	if err != nil {
		return "", false
	}
	return UnpackRevert(raw)
}

func jwtForNow(secret []byte) (string, error) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	now := time.Now().Unix()
	payload := fmt.Sprintf(`{"iat":%d}`, now)
	payloadEnc := base64.RawURLEncoding.EncodeToString([]byte(payload))
	toSign := header + "." + payloadEnc
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(toSign))
	sig := mac.Sum(nil)
	sigEnc := base64.RawURLEncoding.EncodeToString(sig)
	return toSign + "." + sigEnc, nil
}

// client.go - HTTP client for the mint. *Client satisfies ecash.Issuer.
package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ecash/internal/ecash"
	"ecash/internal/group"
)

var (
	// ErrNoteRejected is what the mint reports for forged, spent or repeated notes.
	ErrNoteRejected = errors.New("note rejected")
	// ErrRateLimited means the mint throttled this client.
	ErrRateLimited = errors.New("rate limited")
	// ErrIssueDisabled means the mint does not serve issuance.
	ErrIssueDisabled = errors.New("issuance disabled")
)

// Error is a non-2xx answer from the mint.
type Error struct {
	Status int
	Code   int
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("mint returned %d (code %d): %s", e.Status, e.Code, e.Detail)
}

// Unwrap maps the error code back to a sentinel so callers can use errors.Is.
func (e *Error) Unwrap() error {
	switch e.Code {
	case CodeNoteRejected:
		return ErrNoteRejected
	case CodeValueMismatch:
		return ecash.ErrValueMismatch
	case CodeUnknownDenomination:
		return ecash.ErrUnknownDenomination
	case CodeRateLimited:
		return ErrRateLimited
	case CodeIssueDisabled:
		return ErrIssueDisabled
	}
	return nil
}

// Client talks to one mint.
type Client struct {
	baseURL string
	group   group.Group
	http    *http.Client
}

// NewClient creates a client for the mint at baseURL using group g.
func NewClient(baseURL string, g group.Group) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		group:   g,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Keys fetches the mint's public keys. A mint on another curve is refused.
func (c *Client) Keys() (map[uint64]group.Point, error) {
	var resp KeysResponse
	if err := c.do(http.MethodGet, "/v1/keys", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Curve != c.group.Name() {
		return nil, fmt.Errorf("mint uses %s, client uses %s", resp.Curve, c.group.Name())
	}
	keys := make(map[uint64]group.Point, len(resp.Keys))
	for d, h := range resp.Keys {
		raw, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("key for %d: %w", d, err)
		}
		p, err := c.group.DecodePoint(raw)
		if err != nil {
			return nil, fmt.Errorf("key for %d: %w", d, err)
		}
		keys[d] = p
	}
	return keys, nil
}

func (c *Client) Issue(outputs []ecash.BlindedOutput) ([]ecash.BlindSignature, error) {
	var resp SignaturesResponse
	if err := c.do(http.MethodPost, "/v1/issue", IssueRequest{Outputs: fromOutputs(outputs)}, &resp); err != nil {
		return nil, err
	}
	return toSignatures(c.group, resp.Signatures)
}

func (c *Client) Swap(inputs []ecash.Note, outputs []ecash.BlindedOutput) ([]ecash.BlindSignature, error) {
	req := SwapRequest{Inputs: fromNotes(inputs), Outputs: fromOutputs(outputs)}
	var resp SignaturesResponse
	if err := c.do(http.MethodPost, "/v1/swap", req, &resp); err != nil {
		return nil, err
	}
	return toSignatures(c.group, resp.Signatures)
}

func (c *Client) Redeem(notes []ecash.Note) error {
	var resp RedeemResponse
	if err := c.do(http.MethodPost, "/v1/redeem", RedeemRequest{Inputs: fromNotes(notes)}, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("redeem not acknowledged: %w", ecash.ErrMalformedResponse)
	}
	return nil
}

// Check reports, per secret, whether the mint has seen it spent.
func (c *Client) Check(secrets [][]byte) ([]bool, error) {
	req := CheckRequest{Secrets: make([]HexBytes, len(secrets))}
	for i, s := range secrets {
		req.Secrets[i] = s
	}
	var resp CheckResponse
	if err := c.do(http.MethodPost, "/v1/check", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Spent) != len(secrets) {
		return nil, ecash.ErrMalformedResponse
	}
	return resp.Spent, nil
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, &payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach mint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			return &Error{Status: resp.StatusCode, Detail: resp.Status}
		}
		return &Error{Status: resp.StatusCode, Code: e.Code, Detail: e.Detail}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

package conditions

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/duplexpay/duplexd/internal/core/domain"
	"github.com/duplexpay/duplexd/internal/core/ports"
)

// httpClient queries condition contracts exposed behind an HTTP gateway:
// GET {base}/conditions/{addr}/{query}?args={hex}.
type httpClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(url string) ports.ConditionClient {
	return &httpClient{
		baseURL: url,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *httpClient) Finalized(ctx context.Context, addr domain.Address, args []byte) (bool, error) {
	var out struct {
		Finalized bool `json:"finalized"`
	}
	if err := s.query(ctx, addr, "finalized", args, &out); err != nil {
		return false, err
	}
	return out.Finalized, nil
}

func (s *httpClient) BooleanOutcome(ctx context.Context, addr domain.Address, args []byte) (bool, error) {
	var out struct {
		Outcome bool `json:"outcome"`
	}
	if err := s.query(ctx, addr, "outcome", args, &out); err != nil {
		return false, err
	}
	return out.Outcome, nil
}

func (s *httpClient) NumericOutcome(ctx context.Context, addr domain.Address, args []byte) (uint64, error) {
	var out struct {
		Outcome uint64 `json:"outcome"`
	}
	if err := s.query(ctx, addr, "numeric-outcome", args, &out); err != nil {
		return 0, err
	}
	return out.Outcome, nil
}

func (s *httpClient) query(ctx context.Context, addr domain.Address, kind string, args []byte, out any) error {
	url := fmt.Sprintf(
		"%s/conditions/%s/%s?args=%s",
		strings.TrimRight(s.baseURL, "/"), addr, kind, hex.EncodeToString(args),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("query condition: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"momentkey/internal/domain"
	"momentkey/internal/privacy"
)

// HTTPClient talks to a ledger server.
type HTTPClient struct {
	Base   string
	HTTP   *http.Client
	Policy privacy.Policy
}

// NewHTTP returns a client for the server at base.
func NewHTTP(base string, p privacy.Policy) *HTTPClient {
	return &HTTPClient{Base: strings.TrimRight(base, "/"), HTTP: http.DefaultClient, Policy: p}
}

// Commit validates c locally, then posts it. Nothing is sent when the
// local check fails.
func (c *HTTPClient) Commit(ctx context.Context, lc domain.LedgerCommitment) (domain.Receipt, error) {
	if err := c.Policy.Check(lc); err != nil {
		return domain.Receipt{}, err
	}
	var rc domain.Receipt
	if err := c.do(ctx, http.MethodPost, "/commitments", lc, &rc); err != nil {
		return domain.Receipt{}, err
	}
	return rc, nil
}

// Commitments fetches the commitments for id.
func (c *HTTPClient) Commitments(ctx context.Context, id domain.MomentID) ([]domain.LedgerCommitment, error) {
	var out []domain.LedgerCommitment
	if err := c.do(ctx, http.MethodGet, "/commitments/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("ledger %s %s: %w: %s", method, path, domain.ErrPolicyViolation, readError(resp.Body))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("ledger %s %s: %w", method, path, domain.ErrNotFound)
	case resp.StatusCode/100 != 2:
		return fmt.Errorf("ledger %s %s: %s", method, path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func readError(r io.Reader) string {
	var e errorBody
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&e); err != nil {
		return "rejected"
	}
	return e.Error
}

var _ domain.Ledger = (*HTTPClient)(nil)

package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPRail is a reference PaymentRail client speaking JSON over HTTP:
// POST {base}/collect and POST {base}/pay. Any transport error or non-2xx
// response is a decline.
type HTTPRail struct {
	base   string
	client *http.Client
}

func NewHTTPRail(baseURL string, timeout time.Duration) *HTTPRail {
	return &HTTPRail{
		base:   baseURL,
		client: &http.Client{Timeout: timeout},
	}
}

type transferRequest struct {
	Participant uuid.UUID `json:"participant"`
	Amount      int64     `json:"amount"`
}

func (r *HTTPRail) Collect(ctx context.Context, from uuid.UUID, amount int64) error {
	return r.post(ctx, "/collect", transferRequest{Participant: from, Amount: amount})
}

func (r *HTTPRail) Pay(ctx context.Context, to uuid.UUID, amount int64) error {
	return r.post(ctx, "/pay", transferRequest{Participant: to, Amount: amount})
}

func (r *HTTPRail) post(ctx context.Context, path string, body transferRequest) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal transfer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build rail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("rail %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Include a short response excerpt for operator diagnosis
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("rail %s declined: status=%d body=%q", path, resp.StatusCode, excerpt)
	}
	return nil
}

package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"golang.org/x/time/rate"
)

const defaultOmniModel = "omni-moderation-latest"

// OmniClient talks to the multi-input moderation endpoint. One request
// carries the full text plus every extracted image URL; the response holds
// one result per input item.
type OmniClient struct {
	Client   *http.Client
	Endpoint string
	Token    string
	Model    string
	Limiter  *rate.Limiter
	Logger   *slog.Logger
}

func NewOmniClient(client *http.Client, endpoint, token string, rps int) *OmniClient {
	return &OmniClient{
		Client:   client,
		Endpoint: endpoint,
		Token:    token,
		Model:    defaultOmniModel,
		Limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		Logger:   slog.Default().With("system", "classify-omni"),
	}
}

type omniRequest struct {
	Model string  `json:"model"`
	Input []Input `json:"input"`
}

// Moderate submits the inputs for classification. Never returns an error:
// every failure mode yields an Err-tagged empty response instead, so a
// provider outage can only ever withdraw this provider's vote.
func (c *OmniClient) Moderate(ctx context.Context, inputs []Input) ModerationResponse {
	if len(inputs) == 0 {
		return ModerationResponse{}
	}
	if c.Token == "" {
		return ModerationResponse{Err: true}
	}

	body, err := json.Marshal(omniRequest{Model: c.Model, Input: inputs})
	if err != nil {
		c.Logger.Warn("encoding moderation request failed", "err", err)
		return ModerationResponse{Err: true}
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return ModerationResponse{Err: true}
		}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.Endpoint, bytes.NewReader(body))
	if err != nil {
		c.Logger.Warn("building moderation request failed", "err", err)
		return ModerationResponse{Err: true}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "watchtower/"+versioninfo.Short())

	start := time.Now()
	defer func() {
		omniAPIDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := c.Client.Do(req)
	if err != nil {
		omniAPICount.WithLabelValues("network-error").Inc()
		c.Logger.Warn("moderation request failed", "err", err)
		return ModerationResponse{Err: true}
	}
	defer res.Body.Close()

	omniAPICount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != 200 {
		c.Logger.Warn("moderation request failed", "statusCode", res.StatusCode)
		return ModerationResponse{Err: true}
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		c.Logger.Warn("reading moderation response failed", "err", err)
		return ModerationResponse{Err: true}
	}

	var respObj struct {
		Results []ModerationResult `json:"results"`
	}
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		c.Logger.Warn("parsing moderation response failed", "err", err)
		return ModerationResponse{Err: true}
	}
	if respObj.Results == nil {
		return ModerationResponse{Err: true}
	}
	return ModerationResponse{Results: respObj.Results}
}

package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"golang.org/x/time/rate"
)

// DefaultAttributes are the attributes requested from the scoring API.
var DefaultAttributes = []string{
	"TOXICITY",
	"SEVERE_TOXICITY",
	"IDENTITY_ATTACK",
	"INSULT",
	"PROFANITY",
	"THREAT",
	"SEXUALLY_EXPLICIT",
}

// PerspectiveClient talks to the per-attribute text scoring endpoint. The
// per-attribute threshold is applied here, producing an already-flagged
// AttributeResult; category keys are lower-cased, with SEXUALLY_EXPLICIT
// renamed to "sexual" to line up with the other provider's taxonomy.
type PerspectiveClient struct {
	Client     *http.Client
	Endpoint   string
	Key        string
	Attributes []string
	Threshold  float64
	Limiter    *rate.Limiter
	Logger     *slog.Logger
}

func NewPerspectiveClient(client *http.Client, endpoint, key string, threshold float64, rps int) *PerspectiveClient {
	return &PerspectiveClient{
		Client:     client,
		Endpoint:   endpoint,
		Key:        key,
		Attributes: DefaultAttributes,
		Threshold:  threshold,
		Limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		Logger:     slog.Default().With("system", "classify-perspective"),
	}
}

type perspectiveRequest struct {
	Comment             perspectiveComment        `json:"comment"`
	RequestedAttributes map[string]map[string]any `json:"requestedAttributes"`
	Languages           []string                  `json:"languages"`
	DoNotStore          bool                      `json:"doNotStore"`
}

type perspectiveComment struct {
	Text string `json:"text"`
}

type perspectiveResponse struct {
	AttributeScores map[string]struct {
		SummaryScore struct {
			Value float64 `json:"value"`
		} `json:"summaryScore"`
	} `json:"attributeScores"`
}

func categoryKey(attr string) string {
	if attr == "SEXUALLY_EXPLICIT" {
		return "sexual"
	}
	return strings.ToLower(attr)
}

// Analyze scores the text against the configured attributes. Never returns
// an error; failures yield an Err-tagged non-flagged result.
func (c *PerspectiveClient) Analyze(ctx context.Context, text string) AttributeResult {
	if strings.TrimSpace(text) == "" {
		return AttributeResult{Categories: map[string]bool{}, Scores: map[string]float64{}}
	}
	if c.Key == "" {
		return errAttributeResult()
	}

	attrs := make(map[string]map[string]any, len(c.Attributes))
	for _, a := range c.Attributes {
		attrs[a] = map[string]any{}
	}
	body, err := json.Marshal(perspectiveRequest{
		Comment:             perspectiveComment{Text: text},
		RequestedAttributes: attrs,
		Languages:           []string{"en"},
		DoNotStore:          true,
	})
	if err != nil {
		c.Logger.Warn("encoding scoring request failed", "err", err)
		return errAttributeResult()
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return errAttributeResult()
		}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.Endpoint+"?key="+c.Key, bytes.NewReader(body))
	if err != nil {
		c.Logger.Warn("building scoring request failed", "err", err)
		return errAttributeResult()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "watchtower/"+versioninfo.Short())

	start := time.Now()
	defer func() {
		perspectiveAPIDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := c.Client.Do(req)
	if err != nil {
		perspectiveAPICount.WithLabelValues("network-error").Inc()
		c.Logger.Warn("scoring request failed", "err", err)
		return errAttributeResult()
	}
	defer res.Body.Close()

	perspectiveAPICount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != 200 {
		c.Logger.Warn("scoring request failed", "statusCode", res.StatusCode)
		return errAttributeResult()
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		c.Logger.Warn("reading scoring response failed", "err", err)
		return errAttributeResult()
	}

	var respObj perspectiveResponse
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		c.Logger.Warn("parsing scoring response failed", "err", err)
		return errAttributeResult()
	}

	requested := make(map[string]bool, len(c.Attributes))
	for _, a := range c.Attributes {
		requested[a] = true
	}

	out := AttributeResult{Categories: map[string]bool{}, Scores: map[string]float64{}}
	for attr, scores := range respObj.AttributeScores {
		if !requested[attr] {
			continue
		}
		score := scores.SummaryScore.Value
		if score > c.Threshold {
			out.Flagged = true
			key := categoryKey(attr)
			out.Categories[key] = true
			out.Scores[key] = max(out.Scores[key], score)
		}
	}
	return out
}

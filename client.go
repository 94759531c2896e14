package sossml2gpkg

import (
	"context"
	"errors"
	"fmt"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	SensorMLOutputFormat = `text/xml; subtype="sensorML/1.0.1/profiles/ioos_sos/1.0"`
	DefaultTimeout       = 200 * time.Second
)

// HTTPClient is the subset of *http.Client the SOS client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one SOS 1.0.0 endpoint.
type Client struct {
	Endpoint   string
	HTTPClient HTTPClient
	Vocabulary Vocabulary

	// Timeout bounds each request.
	Timeout time.Duration
	// Concurrency is the number of DescribeSensor requests in flight during Metadata.
	Concurrency int
	// Retries is how many times a failed DescribeSensor is retried with backoff.
	Retries int

	describeEndpoint string
}

func NewClient(endpoint string) *Client {
	return &Client{
		Endpoint:    endpoint,
		HTTPClient:  http.DefaultClient,
		Vocabulary:  NewVocabulary(),
		Timeout:     DefaultTimeout,
		Concurrency: 1,
	}
}

func (c *Client) GetCapabilities(ctx context.Context) (*Capabilities, error) {
	params := url.Values{}
	params.Set("service", "SOS")
	params.Set("request", "GetCapabilities")
	params.Set("acceptVersions", "1.0.0")

	var caps *Capabilities
	err := c.get(ctx, c.Endpoint, params, func(body io.Reader) error {
		var err error
		caps, err = ParseCapabilities(body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetCapabilities: %w", unwrapPermanent(err))
	}

	if href, ok := caps.Operations["DescribeSensor"]; ok {
		c.describeEndpoint = href
	}
	slog.Info(fmt.Sprintf("%s lists %d offerings", c.Endpoint, len(caps.Offerings)))
	return caps, nil
}

// DescribeSensor fetches the IOOS SensorML document for one procedure.
func (c *Client) DescribeSensor(ctx context.Context, urn string) (*SensorML, error) {
	endpoint := c.describeEndpoint
	if endpoint == "" {
		endpoint = c.Endpoint
	}

	params := url.Values{}
	params.Set("service", "SOS")
	params.Set("version", "1.0.0")
	params.Set("request", "DescribeSensor")
	params.Set("procedure", urn)
	params.Set("outputFormat", SensorMLOutputFormat)

	var doc *SensorML
	operation := func() error {
		return c.get(ctx, endpoint, params, func(body io.Reader) error {
			var err error
			doc, err = ParseSensorML(body, c.Vocabulary)
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil
		})
	}

	var err error
	if c.Retries > 0 {
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.Retries)), ctx)
		err = backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
			slog.Warn(fmt.Sprintf("DescribeSensor %s failed, retrying in %s: %s", urn, wait, err))
		})
	} else {
		err = operation()
	}
	if err != nil {
		return nil, fmt.Errorf("DescribeSensor %s: %w", urn, unwrapPermanent(err))
	}
	return doc, nil
}

// MetadataResult is the outcome of fetching one station in a bulk Metadata call.
type MetadataResult struct {
	URN string
	Doc *SensorML
	Err error
}

// Metadata describes every urn. Results are index-matched to urns regardless of
// Concurrency. The returned error is only set if ctx is done.
func (c *Client) Metadata(ctx context.Context, urns []string) ([]MetadataResult, error) {
	return c.metadata(ctx, urns, false)
}

// metadata is Metadata with an optional fail fast mode: the first station that
// fails cancels the remaining requests and its error is returned. Stations not
// fetched because of it carry the cancellation error.
func (c *Client) metadata(ctx context.Context, urns []string, failFast bool) ([]MetadataResult, error) {
	results := make([]MetadataResult, len(urns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.Concurrency, 1))
	for i, urn := range urns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = MetadataResult{URN: urn, Err: err}
				return nil
			}
			doc, err := c.DescribeSensor(gctx, urn)
			results[i] = MetadataResult{URN: urn, Doc: doc, Err: err}
			if err != nil && failFast && gctx.Err() == nil {
				return fmt.Errorf("station %s: %w", urn, err)
			}
			return nil
		})
	}
	stationErr := g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if stationErr != nil {
		return nil, stationErr
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, parse func(io.Reader) error) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	requestURL := endpoint
	if strings.Contains(endpoint, "?") {
		requestURL += "&" + params.Encode()
	} else {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return backoff.Permanent(err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}
	return parse(resp.Body)
}

func unwrapPermanent(err error) error {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

func httpError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("HTTP %d: failed to read error response", resp.StatusCode)
	}
	var reported error
	if serviceErr := parseServiceError(body); serviceErr != nil {
		reported = serviceErr
	} else if len(body) > 0 {
		reported = fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	} else {
		reported = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return reported
	}
	return backoff.Permanent(reported)
}

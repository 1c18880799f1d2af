package wikidata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"escolas-wikidata/metrics"
	"escolas-wikidata/models"
	"escolas-wikidata/utils"
)

const editSummary = "Creating school item from Censo Escolar (INEP)"

// ErrUncertainWrite is returned when a write request failed in a way that
// leaves open whether the server applied it. Such writes are never resent.
var ErrUncertainWrite = errors.New("wikidata: write outcome unknown")

// ClientOptions configures a Client.
type ClientOptions struct {
	Endpoint     string
	UserAgent    string
	Timeout      time.Duration
	EditInterval time.Duration
	MaxLag       int
}

// Client writes to Wikibase through the MediaWiki Action API with a bot
// password session.
type Client struct {
	endpoint  string
	userAgent string
	maxLag    int
	http      *http.Client
	limiter   *rate.Limiter
	retry     *utils.RetryConfig
	logger    *utils.Logger
	metrics   *metrics.Metrics

	csrfToken string
}

// NewClient creates a Client with its own cookie jar.
func NewClient(opts ClientOptions, retry *utils.RetryConfig, logger *utils.Logger, m *metrics.Metrics) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("wikidata: cookie jar: %w", err)
	}

	limit := rate.Inf
	if opts.EditInterval > 0 {
		limit = rate.Every(opts.EditInterval)
	}

	return &Client{
		endpoint:  opts.Endpoint,
		userAgent: opts.UserAgent,
		maxLag:    opts.MaxLag,
		http:      &http.Client{Timeout: opts.Timeout, Jar: jar},
		limiter:   rate.NewLimiter(limit, 1),
		retry:     retry,
		logger:    logger,
		metrics:   m,
	}, nil
}

type tokensResponse struct {
	Query struct {
		Tokens struct {
			LoginToken string `json:"logintoken"`
			CSRFToken  string `json:"csrftoken"`
		} `json:"tokens"`
	} `json:"query"`
}

// Login opens a bot-password session and fetches the edit token.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var tokens tokensResponse
	if err := c.call(ctx, http.MethodGet, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {"login"},
	}, &tokens, false); err != nil {
		return fmt.Errorf("wikidata: login token: %w", err)
	}

	var login struct {
		Login struct {
			Result   string `json:"result"`
			Reason   string `json:"reason"`
			Username string `json:"lgusername"`
		} `json:"login"`
	}
	if err := c.call(ctx, http.MethodPost, url.Values{
		"action":     {"login"},
		"lgname":     {username},
		"lgpassword": {password},
		"lgtoken":    {tokens.Query.Tokens.LoginToken},
	}, &login, false); err != nil {
		return fmt.Errorf("wikidata: login: %w", err)
	}
	if login.Login.Result != "Success" {
		return fmt.Errorf("wikidata: login as %q: %s %s", username, login.Login.Result, login.Login.Reason)
	}

	c.logger.Info("[wikidata] Logged in as %s", login.Login.Username)
	return c.refreshToken(ctx)
}

func (c *Client) refreshToken(ctx context.Context) error {
	var tokens tokensResponse
	if err := c.call(ctx, http.MethodGet, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
	}, &tokens, false); err != nil {
		return fmt.Errorf("wikidata: csrf token: %w", err)
	}
	if tokens.Query.Tokens.CSRFToken == "" || tokens.Query.Tokens.CSRFToken == "+\\" {
		return errors.New("wikidata: csrf token: session is not logged in")
	}
	c.csrfToken = tokens.Query.Tokens.CSRFToken
	return nil
}

// CreateItem creates an empty item with labels and descriptions and returns its QID.
func (c *Client) CreateItem(ctx context.Context, labels, descriptions map[string]string) (string, error) {
	data, err := json.Marshal(struct {
		Labels       map[string]languageValue `json:"labels"`
		Descriptions map[string]languageValue `json:"descriptions"`
	}{languageValues(labels), languageValues(descriptions)})
	if err != nil {
		return "", fmt.Errorf("wikidata: encode item: %w", err)
	}

	var resp struct {
		Entity struct {
			ID string `json:"id"`
		} `json:"entity"`
	}
	if err := c.edit(ctx, url.Values{
		"action":  {"wbeditentity"},
		"new":     {"item"},
		"data":    {string(data)},
		"summary": {editSummary},
	}, &resp); err != nil {
		return "", err
	}
	if resp.Entity.ID == "" {
		return "", errors.New("wikidata: wbeditentity returned no entity id")
	}
	return resp.Entity.ID, nil
}

// AddStatement adds one statement with its qualifiers and the reference.
func (c *Client) AddStatement(ctx context.Context, qid string, st models.Statement, ref models.Reference) error {
	mainValue, err := encodeValue(st.Value)
	if err != nil {
		return fmt.Errorf("wikidata: %s: %w", st.Property, err)
	}
	value, err := json.Marshal(mainValue.Value)
	if err != nil {
		return fmt.Errorf("wikidata: encode %s: %w", st.Property, err)
	}

	var created struct {
		Claim struct {
			ID string `json:"id"`
		} `json:"claim"`
	}
	if err := c.edit(ctx, url.Values{
		"action":   {"wbcreateclaim"},
		"entity":   {qid},
		"property": {st.Property},
		"snaktype": {"value"},
		"value":    {string(value)},
		"summary":  {editSummary},
	}, &created); err != nil {
		return fmt.Errorf("wikidata: create claim %s on %s: %w", st.Property, qid, err)
	}
	guid := created.Claim.ID

	for _, q := range st.Qualifiers {
		qs, err := encodeSnak(q)
		if err != nil {
			return fmt.Errorf("wikidata: qualifier on %s: %w", guid, err)
		}
		qv, err := json.Marshal(qs.DataValue.Value)
		if err != nil {
			return fmt.Errorf("wikidata: encode qualifier %s: %w", q.Property, err)
		}
		if err := c.edit(ctx, url.Values{
			"action":   {"wbsetqualifier"},
			"claim":    {guid},
			"property": {q.Property},
			"snaktype": {"value"},
			"value":    {string(qv)},
			"summary":  {editSummary},
		}, nil); err != nil {
			return fmt.Errorf("wikidata: set qualifier %s on %s: %w", q.Property, guid, err)
		}
	}

	snaks, order, err := encodeReference(ref)
	if err != nil {
		return fmt.Errorf("wikidata: reference on %s: %w", guid, err)
	}
	if err := c.edit(ctx, url.Values{
		"action":      {"wbsetreference"},
		"statement":   {guid},
		"snaks":       {snaks},
		"snaks-order": {order},
		"summary":     {editSummary},
	}, nil); err != nil {
		return fmt.Errorf("wikidata: set reference on %s: %w", guid, err)
	}
	return nil
}

func encodeReference(ref models.Reference) (snaks, order string, err error) {
	byProp := make(map[string][]snak, 2)
	props := make([]string, 0, 2)
	for _, part := range []models.Snak{ref.Source, ref.AccessDate} {
		s, err := encodeSnak(part)
		if err != nil {
			return "", "", err
		}
		if _, seen := byProp[s.Property]; !seen {
			props = append(props, s.Property)
		}
		byProp[s.Property] = append(byProp[s.Property], s)
	}

	sb, err := json.Marshal(byProp)
	if err != nil {
		return "", "", err
	}
	ob, err := json.Marshal(props)
	if err != nil {
		return "", "", err
	}
	return string(sb), string(ob), nil
}

type languageValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

func languageValues(m map[string]string) map[string]languageValue {
	out := make(map[string]languageValue, len(m))
	for lang, v := range m {
		out[lang] = languageValue{Language: lang, Value: v}
	}
	return out
}

// edit performs a throttled write call carrying the CSRF token. A rejected
// token is refreshed once per attempt.
func (c *Client) edit(ctx context.Context, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wikidata: rate limiter: %w", err)
	}
	if c.csrfToken == "" {
		return errors.New("wikidata: not logged in")
	}

	params.Set("bot", "1")
	params.Set("maxlag", strconv.Itoa(c.maxLag))

	err := c.call(ctx, http.MethodPost, withToken(params, c.csrfToken), out, true)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == "badtoken" {
		c.logger.Warn("[wikidata] Edit token rejected, refreshing")
		if rerr := c.refreshToken(ctx); rerr != nil {
			return rerr
		}
		err = c.call(ctx, http.MethodPost, withToken(params, c.csrfToken), out, true)
	}
	return err
}

func withToken(params url.Values, token string) url.Values {
	p := make(url.Values, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	p.Set("token", token)
	return p
}

// call sends one Action API request with retries for transient failures
// and decodes the JSON body into out. A write is only resent when the
// server refused it (maxlag, ratelimited, readonly, HTTP 429); transport
// errors and 5xx answers on writes fail with ErrUncertainWrite.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any, write bool) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	action := params.Get("action")

	return c.retry.Do(ctx, "wikidata "+action, func() error {
		body, err := c.do(ctx, method, params)
		c.metrics.ObserveAPICall(action, err)
		if err != nil {
			if write && !answered(err) {
				return utils.Permanent(fmt.Errorf("%w: %s: %w", ErrUncertainWrite, action, err))
			}
			return err
		}

		var envelope struct {
			Error *APIError `json:"error"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return utils.Permanent(fmt.Errorf("wikidata: decode %s response: %w", action, err))
		}
		if envelope.Error != nil {
			if envelope.Error.Temporary() && envelope.Error.Code != "badtoken" {
				return envelope.Error
			}
			return utils.Permanent(envelope.Error)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return utils.Permanent(fmt.Errorf("wikidata: decode %s response: %w", action, err))
		}
		return nil
	})
}

func (c *Client) do(ctx context.Context, method string, params url.Values) ([]byte, error) {
	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, c.endpoint+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.endpoint, strings.NewReader(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, utils.Permanent(fmt.Errorf("wikidata: build request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, utils.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("wikidata: %s request: %w", params.Get("action"), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("wikidata: read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &statusError{code: resp.StatusCode}
	case resp.StatusCode >= 400:
		return nil, utils.Permanent(&statusError{code: resp.StatusCode})
	}
	return body, nil
}

// statusError is an HTTP error status.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("wikidata: http %d", e.code)
}

// answered reports whether the server rejected the request with a 4xx
// status, so a write was definitely not applied.
func answered(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code >= 400 && se.code < 500
}

// client.go contains the http side of the vpktc scraper: logging in and
// fetching the raw sensor payloads.

package vpktc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"sensorlog/internal/components/assert"
	"sensorlog/internal/components/chrono"
	"sensorlog/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("sensorlog/scrapers/vpktc")

const (
	report_client_login         = "client.login"
	report_client_fetch         = "client.fetch"
	report_client_fetch_retries = "client.fetch-retries"
	report_client_decode_body   = "client.decode-body"
)

const (
	DefaultBaseUrl    = "http://vpktc.eu"
	DefaultRetryDelay = 3 * time.Second

	maxReasonLength = 200

	loginPath = "/index.php"
	dataPath  = "/obec.php"
)

var (
	// ErrAuth is returned when the login request could not be sent, was not
	// answered with a redirect or did not carry a session cookie.
	ErrAuth = errors.New("vpktc: login failed")
	// ErrTransport is returned when a data request could not be sent.
	ErrTransport = errors.New("vpktc: request not sent")
	// ErrServer is returned when a data request was not answered with 200.
	ErrServer = errors.New("vpktc: server error")
	// ErrMaxRetries is returned when a dataset stayed empty through every retry.
	ErrMaxRetries = errors.New("vpktc: max retries reached")
)

// IsRequestFailure reports whether err is one of the request level failures
// a caller may retry a whole poll cycle on.
func IsRequestFailure(err error) bool {
	return errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrServer) ||
		errors.Is(err, ErrMaxRetries)
}

type ClientOptions struct {
	// BaseUrl defaults to DefaultBaseUrl.
	BaseUrl string
	// RetryDelay is the wait before re-requesting an empty dataset,
	// defaults to DefaultRetryDelay.
	RetryDelay time.Duration
	// RequestsPerSecond caps outgoing requests, zero means no cap.
	RequestsPerSecond float64
	// Timeout bounds a single request, defaults to 30 seconds.
	Timeout time.Duration
	// BrowserHeaders fills in the headers a desktop browser would send.
	BrowserHeaders bool
	// HttpDump, if set, receives every request/response pair.
	HttpDump *telemetry.HttpDump
}

// SensitiveFields are the form fields and headers that carry credentials or
// the session token.
var SensitiveFields = []string{"hsl", "Cookie", "Set-Cookie"}

// Client talks to the vpktc sensor portal. It keeps no session state, the
// token returned by Login is handed back explicitly to Fetch.
type Client struct {
	http       *resty.Client
	tel        telemetry.API
	time       chrono.TimeAPI
	retryDelay time.Duration
}

func NewClient(opts ClientOptions, tel telemetry.API, clock chrono.TimeAPI) *Client {
	assert.NotNil(tel)
	assert.NotNil(clock)

	tel = telemetry.NewScopedAPI("vpktc_scraper", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	httpClient.SetTimeout(opts.Timeout)
	// the session cookie is passed around by hand, a jar would leak it into
	// the next cycle
	httpClient.SetCookieJar(nil)
	// the session cookie lives on the redirect response itself
	httpClient.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	if opts.BrowserHeaders {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	if opts.RequestsPerSecond > 0 {
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel, "sensorlog/scrapers/vpktc/http")
	if opts.HttpDump != nil {
		opts.HttpDump.Attach(httpClient)
	}

	return &Client{
		http:       httpClient,
		tel:        tel,
		time:       clock,
		retryDelay: opts.RetryDelay,
	}
}

// Login exchanges the credentials for a session token, the first attribute
// of the Set-Cookie header on the login redirect. It does not retry.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	ctx, span := tracer.Start(ctx, "Client:Login")
	defer span.End()

	fail := func(err error) (string, error) {
		c.tel.ReportBroken(report_client_login, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"csl": creds.AccountId,
			"hsl": creds.Password,
			"rok": creds.Period,
		}).
		Post(loginPath)
	if err != nil {
		return fail(fmt.Errorf("%w: request unsuccessful: %w", ErrAuth, err))
	}

	if res.StatusCode() != http.StatusFound {
		err := fmt.Errorf("%w: %s", ErrAuth, res.Status())
		if reason := loginFailureReason(res.Body()); reason != "" {
			err = fmt.Errorf("%w (%s)", err, reason)
		}
		return fail(err)
	}

	cookie := res.Header().Get("Set-Cookie")
	if cookie == "" {
		return fail(fmt.Errorf("%w: Set-Cookie header not present", ErrAuth))
	}
	token, _, _ := strings.Cut(cookie, ";")
	return strings.TrimSpace(token), nil
}

// loginFailureReason pulls a human readable reason out of the page the
// portal renders instead of redirecting.
func loginFailureReason(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	for _, selector := range []string{".error", ".alert", "title"} {
		text := strings.Join(strings.Fields(doc.Find(selector).First().Text()), " ")
		if text != "" {
			if runes := []rune(text); len(runes) > maxReasonLength {
				text = string(runes[:maxReasonLength])
			}
			return text
		}
	}
	return ""
}

// Fetch requests one dataset with the session token. An empty body is
// retried up to maxRetries times with RetryDelay in between, any other
// failure is returned immediately.
func (c *Client) Fetch(ctx context.Context, token string, code DatasetCode, maxRetries uint8) (string, error) {
	ctx, span := tracer.Start(ctx, "Client:Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("dataset", string(code)))

	fail := func(err error) (string, error) {
		c.tel.ReportBroken(report_client_fetch, err, string(code))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var retries uint8
	for {
		body, err := c.fetchOnce(ctx, token, code)
		if err != nil {
			return fail(err)
		}
		if body != "" {
			span.SetAttributes(attribute.Int("retries", int(retries)))
			c.tel.ReportDebug(
				report_client_fetch,
				"sensor data",
				string(code),
				fmt.Sprintf("retries: %d/%d", retries, maxRetries),
			)
			c.tel.ReportCount(report_client_fetch_retries, int64(retries))
			return body, nil
		}

		if retries >= maxRetries {
			return fail(fmt.Errorf(
				"%w: dataset %s empty after %d retries",
				ErrMaxRetries, code, retries,
			))
		}
		retries++
		c.tel.ReportDebug(report_client_fetch, "empty body", string(code), retries)

		err = c.time.Sleep(ctx, c.retryDelay)
		if err != nil {
			return "", err
		}
	}
}

func (c *Client) fetchOnce(ctx context.Context, token string, code DatasetCode) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Cookie", token).
		SetMultipartFormData(map[string]string{
			"kod": string(code),
		}).
		Post(dataPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if res.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: %s", ErrServer, res.Status())
	}
	return c.decodeBody(res.Body(), res.Header().Get("Content-Type")), nil
}

// decodeBody converts the payload to utf-8 when the response declares another
// charset. Without a declared charset the body is taken as utf-8.
func (c *Client) decodeBody(body []byte, contentType string) string {
	if len(body) == 0 {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil || params["charset"] == "" {
		return string(body)
	}

	encoding, name := charset.Lookup(params["charset"])
	if encoding == nil {
		c.tel.ReportWarning(report_client_decode_body, "unknown charset", contentType)
		return string(body)
	}
	if name == "utf-8" {
		return string(body)
	}
	decoded, err := encoding.NewDecoder().Bytes(body)
	if err != nil {
		c.tel.ReportWarning(report_client_decode_body, err, contentType)
		return string(body)
	}
	return string(decoded)
}

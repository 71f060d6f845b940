package telemetry

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

const report_http_dump = "http-dump.write"

const redacted = "<redacted>"

// 1: request method
// 2: request url
// 3: request headers in ("Key: Value" format)
// 4: request body
// 5: response status
// 6: response headers in ("Key: Value" format)
// 7: response body
const httpMessageTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%s

%s

%s
`

// HttpDump writes every request/response pair a resty client makes into its
// own file in a directory, for inspecting what the remote side actually sent.
type HttpDump struct {
	directory string
	// form fields and headers whose values are never written out
	redact  map[string]bool
	counter *uint64
	tel     API
}

// NewHttpDump creates directory if needed. Values of the form fields or
// headers named in redact are replaced before writing.
func NewHttpDump(directory string, tel API, redact ...string) (HttpDump, error) {
	err := os.MkdirAll(directory, 0755)
	if err != nil {
		return HttpDump{}, err
	}
	redactSet := make(map[string]bool, len(redact))
	for _, name := range redact {
		redactSet[strings.ToLower(name)] = true
	}
	var counter uint64
	return HttpDump{
		directory: directory,
		redact:    redactSet,
		counter:   &counter,
		tel:       tel,
	}, nil
}

// Attach registers the dump on client, files are named `<n>-<method>.txt`.
func (d HttpDump) Attach(client *resty.Client) {
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		d.write(res)
		return nil
	})
}

func (d HttpDump) write(res *resty.Response) {
	id := atomic.AddUint64(d.counter, 1)
	name := fmt.Sprintf("%04d-%s.txt", id, strings.ToLower(res.Request.Method))
	err := os.WriteFile(filepath.Join(d.directory, name), []byte(d.format(res)), 0600)
	if err != nil {
		d.tel.ReportWarning(report_http_dump, err, name)
	}
}

func (d HttpDump) format(res *resty.Response) string {
	var requestHeaders http.Header
	requestBody := ""
	if res.Request.RawRequest != nil {
		requestHeaders = res.Request.RawRequest.Header
		requestBody = d.requestBody(res.Request.RawRequest)
	}

	return fmt.Sprintf(
		httpMessageTemplate,
		res.Request.Method, res.Request.URL,
		d.headers(requestHeaders),
		requestBody,
		res.Status(),
		d.headers(res.Header()),
		res.String(),
	)
}

func (d HttpDump) headers(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := []string{}
	for _, k := range keys {
		for _, v := range headers[k] {
			if d.redact[strings.ToLower(k)] {
				v = redacted
			}
			lines = append(lines, fmt.Sprintf("%s: %s", k, v))
		}
	}
	return strings.Join(lines, "\n")
}

func (d HttpDump) requestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}

	if strings.HasPrefix(req.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(raw))
		if err == nil {
			for k := range values {
				if d.redact[strings.ToLower(k)] {
					values.Set(k, redacted)
				}
			}
			return values.Encode()
		}
	}
	return string(raw)
}

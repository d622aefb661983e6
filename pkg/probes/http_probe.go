package probes

import (
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rzbill/herd/pkg/log"
)

// HTTPProber GETs the check path and succeeds on a 2xx or 3xx status.
type HTTPProber struct{}

func (p *HTTPProber) Execute(ctx *ProbeContext) ProbeResult {
	start := time.Now()
	url := "http://" + net.JoinHostPort(ctx.host(), strconv.Itoa(ctx.Port)) + ctx.Path
	ctx.logger().Debug("Probing endpoint", log.Str("url", url))

	req, err := http.NewRequestWithContext(ctx.Ctx, http.MethodGet, url, nil)
	if err != nil {
		return failed(start, "bad probe url %s: %v", url, err)
	}

	client := ctx.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: ctx.timeout()}
	}
	resp, err := client.Do(req)
	if err != nil {
		return failed(start, "GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return failed(start, "GET %s returned %s", url, resp.Status)
	}
	return succeeded(start, "GET %s returned %s", url, resp.Status)
}

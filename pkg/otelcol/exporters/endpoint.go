package exporters

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
)

type endpoint struct {
	host   string
	path   string
	secure bool
}

// parseEndpoint accepts OTEL.ADDR as host:port or as an http(s) URL. Only
// https turns on TLS.
func parseEndpoint(addr string) (endpoint, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return endpoint{}, errutil.Configuration("OTEL.ADDR is empty", nil)
	}
	if !strings.Contains(addr, "://") {
		return endpoint{host: addr}, nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return endpoint{}, errutil.Configuration(fmt.Sprintf("invalid OTEL.ADDR %q", addr), err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return endpoint{}, errutil.Configuration(fmt.Sprintf("unsupported OTEL.ADDR scheme %q", u.Scheme), nil)
	}
	if u.Host == "" {
		return endpoint{}, errutil.Configuration(fmt.Sprintf("OTEL.ADDR %q has no host", addr), nil)
	}
	return endpoint{
		host:   u.Host,
		path:   strings.TrimSuffix(u.Path, "/"),
		secure: u.Scheme == "https",
	}, nil
}

package exporters

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juancristobaldev/lanovena-api/pkg/config"
	"github.com/juancristobaldev/lanovena-api/pkg/errutil"
)

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		addr string
		want endpoint
	}{
		{"otel-collector:4317", endpoint{host: "otel-collector:4317"}},
		{"http://otel-collector:4318", endpoint{host: "otel-collector:4318"}},
		{"https://otlp.example.com/otlp/v1/traces/", endpoint{host: "otlp.example.com", path: "/otlp/v1/traces", secure: true}},
	}
	for _, tc := range cases {
		got, err := parseEndpoint(tc.addr)
		require.NoError(t, err, tc.addr)
		require.Equal(t, tc.want, got, tc.addr)
	}

	for _, addr := range []string{"", "ftp://collector:21", "http://"} {
		_, err := parseEndpoint(addr)
		require.ErrorIs(t, err, errutil.ErrConfiguration, addr)
	}
}

func TestProvideRejectsBadAddr(t *testing.T) {
	cfg := &config.Config{}
	cfg.Otel.Addr = "ftp://collector:21"

	_, err := ProvideGrpc(cfg)
	require.ErrorIs(t, err, errutil.ErrConfiguration)
	_, err = ProvideHttp(cfg)
	require.ErrorIs(t, err, errutil.ErrConfiguration)
}

package otel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEndpointScheme(t *testing.T) {
	cases := []struct {
		in       string
		host     string
		insecure bool
	}{
		{"localhost:4317", "localhost:4317", true},
		{"http://collector:4317", "collector:4317", true},
		{"https://otlp.example.com:443", "otlp.example.com:443", false},
	}
	for _, tc := range cases {
		host, insecure := Config{OTLPEndpoint: tc.in}.endpoint()
		require.Equal(t, tc.host, host)
		require.Equal(t, tc.insecure, insecure)
	}
}

package tls

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/azure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/clustermap/internal/config"
)

func TestIssuerTemplate(t *testing.T) {
	cfg := config.TLSConfig{Enabled: true, Domains: []string{"map.example.com"}, Email: "ops@example.com"}

	issuer := issuerTemplate(cfg)
	assert.Equal(t, certmagic.LetsEncryptProductionCA, issuer.CA)
	assert.Equal(t, "ops@example.com", issuer.Email)
	assert.True(t, issuer.Agreed)
	assert.Nil(t, issuer.DNS01Solver, "no DNS provider without a subscription")

	cfg.Staging = true
	cfg.DNS = config.DNSConfig{SubscriptionID: "sub", ResourceGroupName: "dns-rg", ClientID: "client"}
	issuer = issuerTemplate(cfg)
	assert.Equal(t, certmagic.LetsEncryptStagingCA, issuer.CA)

	solver, ok := issuer.DNS01Solver.(*certmagic.DNS01Solver)
	require.True(t, ok)
	provider, ok := solver.DNSProvider.(*azure.Provider)
	require.True(t, ok)
	assert.Equal(t, "sub", provider.SubscriptionId)
	assert.Equal(t, "dns-rg", provider.ResourceGroupName)
	assert.Equal(t, "client", provider.ClientId)
}

func TestNewServerValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := http.NotFoundHandler()

	s, err := NewServer(config.TLSConfig{}, handler, logger)
	require.NoError(t, err)
	assert.Nil(t, s.TLSConfig())

	_, err = NewServer(config.TLSConfig{Enabled: true, Email: "ops@example.com"}, handler, logger)
	assert.Error(t, err)

	_, err = NewServer(config.TLSConfig{Enabled: true, Domains: []string{"map.example.com"}}, handler, logger)
	assert.Error(t, err)
}

func TestShutdownBeforeStart(t *testing.T) {
	s, err := NewServer(config.TLSConfig{}, http.NotFoundHandler(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.NoError(t, s.Shutdown(t.Context()))
}

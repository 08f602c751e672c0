// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"testing"

	"codeberg.org/inw/serpback/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTLSMode(t *testing.T) {
	free := func(int) bool { return true }
	busy := func(int) bool { return false }

	tests := []struct {
		name      string
		tls       config.TLSConfig
		host      string
		available func(int) bool
		want      TLSMode
	}{
		{"explicit off", config.TLSConfig{Mode: "off"}, "api.example.com", free, TLSModeOff},
		{"explicit acme", config.TLSConfig{Mode: "ACME"}, "localhost", busy, TLSModeACME},
		{"explicit selfsigned", config.TLSConfig{Mode: "selfsigned"}, "localhost", free, TLSModeSelfSigned},
		{"explicit manual", config.TLSConfig{Mode: "manual"}, "localhost", free, TLSModeManual},
		{"auto localhost", config.TLSConfig{}, "localhost", free, TLSModeOff},
		{"auto with files", config.TLSConfig{CertFile: "c.pem", KeyFile: "k.pem"}, "api.example.com", free, TLSModeManual},
		{"auto acme", config.TLSConfig{Email: "ops@example.com"}, "api.example.com", free, TLSModeACME},
		{"auto ports busy", config.TLSConfig{Email: "ops@example.com"}, "api.example.com", busy, TLSModeSelfSigned},
		{"auto ip", config.TLSConfig{Email: "ops@example.com"}, "10.0.0.1", free, TLSModeSelfSigned},
		{"auto no email", config.TLSConfig{}, "api.example.com", free, TLSModeSelfSigned},
		{"unknown falls back to auto", config.TLSConfig{Mode: "bogus"}, "localhost", free, TLSModeOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{TLS: tt.tls, Server: config.ServerConfig{Host: tt.host}}
			assert.Equal(t, tt.want, resolveTLSMode(cfg, tt.available))
		})
	}
}

func TestSetupTLSOff(t *testing.T) {
	res, err := SetupTLS(&config.Config{TLS: config.TLSConfig{Mode: "off"}})

	require.NoError(t, err)
	assert.Equal(t, TLSModeOff, res.Mode)
	assert.Nil(t, res.TLSConfig)
}

func TestSetupTLSSelfSigned(t *testing.T) {
	cfg := &config.Config{
		TLS:    config.TLSConfig{Mode: "selfsigned", CertDir: t.TempDir()},
		Server: config.ServerConfig{Host: "api.internal"},
	}

	first, err := SetupTLS(cfg)
	require.NoError(t, err)
	require.Len(t, first.TLSConfig.Certificates, 1)

	second, err := SetupTLS(cfg)
	require.NoError(t, err)
	assert.Equal(t, first.TLSConfig.Certificates[0].Certificate[0], second.TLSConfig.Certificates[0].Certificate[0])
}

func TestSetupTLSManualMissingFiles(t *testing.T) {
	_, err := SetupTLS(&config.Config{TLS: config.TLSConfig{Mode: "manual"}})
	require.Error(t, err)

	_, err = SetupTLS(&config.Config{TLS: config.TLSConfig{Mode: "manual", CertFile: "/nope/c.pem", KeyFile: "/nope/k.pem"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load certificate")
}

func TestSetupTLSACMERequiresEmail(t *testing.T) {
	_, err := SetupTLS(&config.Config{TLS: config.TLSConfig{Mode: "acme"}, Server: config.ServerConfig{Host: "api.example.com"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "tls-email")
}

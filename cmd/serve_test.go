package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/pkg/rankstore"
)

func serveDeps(opened *rankstore.Options) *Deps {
	cfg := mockConfig()
	cfg.Feedgen.ListenAddress = "127.0.0.1:0"
	cfg.Feedgen.Hostname = "feedgen.theblue.report"
	deps := mockDeps(cfg, rankstore.NewMemoryStore())
	deps.OpenStore = func(_ context.Context, _ config.StoreConfig, opts rankstore.Options) (*rankstore.Conn, error) {
		*opened = opts
		return &rankstore.Conn{Store: rankstore.NewMemoryStore()}, nil
	}
	return deps
}

func TestServeCommand_StopsOnCancel(t *testing.T) {
	var opts rankstore.Options
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	missing := filepath.Join(t.TempDir(), "absent", "config.yaml")
	_, err := executeCommandContext(t, ctx, NewServeCommand(serveDeps(&opts)), nil, "serve", "--config", missing)
	require.NoError(t, err)

	assert.NotNil(t, opts.Metrics)
	assert.NotNil(t, opts.Tracer)
	assert.NotNil(t, opts.Registry)
}

func TestServeCommand_NoWatch(t *testing.T) {
	var opts rankstore.Options
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := executeCommandContext(t, ctx, NewServeCommand(serveDeps(&opts)), nil, "serve", "--no-watch")
	require.NoError(t, err)
}

func TestServeCommand_StoreError(t *testing.T) {
	deps := mockDeps(mockConfig(), rankstore.NewMemoryStore())
	deps.OpenStore = func(context.Context, config.StoreConfig, rankstore.Options) (*rankstore.Conn, error) {
		return nil, errors.New("connection refused")
	}

	_, err := executeCommand(t, NewServeCommand(deps), nil, "serve", "--no-watch")
	require.Error(t, err)
	assert.Equal(t, "opening memory store: connection refused", err.Error())
}

func TestServeCommand_ListenError(t *testing.T) {
	var opts rankstore.Options
	deps := serveDeps(&opts)
	cfg := mockConfig()
	cfg.Feedgen.ListenAddress = "256.0.0.1:0"
	deps.LoadConfig = func(string) (*config.Config, error) { return cfg, nil }

	_, err := executeCommand(t, NewServeCommand(deps), nil, "serve", "--no-watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on 256.0.0.1:0")
}

func TestConfigPathForWatch(t *testing.T) {
	t.Setenv("SKYFEED_CONFIG_DIR", "/srv/skyfeed")

	var got []string
	probe := &cobra.Command{
		Use: "probe",
		Run: func(cmd *cobra.Command, args []string) {
			got = append(got, configPathForWatch(cmd))
		},
	}

	_, err := executeCommand(t, probe, nil, "probe")
	require.NoError(t, err)
	_, err = executeCommand(t, probe, nil, "probe", "--config", "/etc/skyfeed.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv/skyfeed/config.yaml", "/etc/skyfeed.yaml"}, got)
}

package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/crmbot/core/config"
	coretelegram "github.com/m3rciful/crmbot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct{ opts coretelegram.RunOptions }

func (a app) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, nil }

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("CRMBOT_TEST_CONFIG", "/etc/env.yaml")

	p, err := ResolveConfigPath(Options{ConfigPath: "flag.yaml", ConfigEnvVar: "CRMBOT_TEST_CONFIG"})
	require.NoError(t, err)
	assert.Equal(t, "flag.yaml", p)

	p, err = ResolveConfigPath(Options{ConfigEnvVar: "CRMBOT_TEST_CONFIG", DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "/etc/env.yaml", p)

	t.Setenv("CRMBOT_TEST_CONFIG", "")
	p, err = ResolveConfigPath(Options{ConfigEnvVar: "CRMBOT_TEST_CONFIG", DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", p)

	_, err = ResolveConfigPath(Options{ConfigEnvVar: "CRMBOT_TEST_CONFIG"})
	assert.Error(t, err)
}

func TestRunWiresLifecycleHooks(t *testing.T) {
	var loaded string
	started := false
	err := Run(Options{
		ConfigPath: "bot.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loaded = path
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			return app{opts: coretelegram.RunOptions{
				OnStart: func(context.Context, coretelegram.Runtime) error {
					started = true
					return nil
				},
			}}, nil
		},
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			return opts.OnStart(ctx, coretelegram.Runtime{})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "bot.yaml", loaded)
	assert.True(t, started)
}

func TestRunPropagatesBootstrapError(t *testing.T) {
	err := Run(Options{
		ConfigPath: "bot.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			return nil, errors.New("no crm")
		},
	})
	require.ErrorContains(t, err, "no crm")
}

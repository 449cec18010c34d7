package main

import (
	"connectcore/internal/config"
	"connectcore/internal/core"
	"connectcore/internal/infra/settings/redis"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// settingsUser keys preferences by the configured user email.
func (a *app) settingsUser() (string, error) {
	if a.cfg.UserEmail == "" {
		return "", errors.New("no user configured: pass --user or set CONNECTCORE_USER_EMAIL")
	}
	return strings.ToLower(a.cfg.UserEmail), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (a *app) settingsBackend(ctx context.Context, s *session) (core.SettingsBackend, io.Closer, error) {
	if a.cfg.Settings.Backend == config.SettingsRedis {
		store, err := redis.New(ctx, a.cfg.Settings.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
	return core.NewDocumentSettings(s.store), nopCloser{}, nil
}

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change per-user view preferences",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored column widths of the configured user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.settingsUser()
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				backend, closer, err := a.settingsBackend(ctx, s)
				if err != nil {
					return err
				}
				defer closer.Close()
				settings, ok, err := backend.LoadSettings(ctx, user)
				if err != nil {
					return err
				}
				if !ok {
					settings = core.UserSettings{ID: user, ColumnWidths: map[string][]float64{}}
				}
				if a.jsonOutput {
					return a.printJSON(settings)
				}
				for view, widths := range settings.ColumnWidths {
					parts := make([]string, len(widths))
					for i, w := range widths {
						parts[i] = strconv.FormatFloat(w, 'f', -1, 64)
					}
					a.printf("%s: %s\n", view, strings.Join(parts, " "))
				}
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "widths <view> <width>...",
		Short: "Store the column widths of a view for the configured user",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.settingsUser()
			if err != nil {
				return err
			}
			v, err := parseView(args[0])
			if err != nil {
				return err
			}
			widths := make([]float64, 0, len(args)-1)
			for _, raw := range args[1:] {
				w, err := strconv.ParseFloat(raw, 64)
				if err != nil || w <= 0 {
					return errors.New("column widths must be positive numbers")
				}
				widths = append(widths, w)
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				backend, closer, err := a.settingsBackend(ctx, s)
				if err != nil {
					return err
				}
				defer closer.Close()
				saver := core.NewSettingsSaver(backend, a.cfg.Settings.Debounce, core.NewZapLogger(a.logger.Named("settings")))
				saver.SaveColumnWidths(user, v, widths)
				return saver.Close(ctx)
			})
		},
	})
	return cmd
}

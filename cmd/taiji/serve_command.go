package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/taiji/internal/app"
	"github.com/ayusman/taiji/internal/calibration"
	"github.com/ayusman/taiji/internal/server"
	"github.com/ayusman/taiji/internal/session"
	"github.com/ayusman/taiji/internal/tray"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var withTray bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coaching UI server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			hub := server.NewStreamHub(cfg.Server.CanvasWidth, cfg.Server.CanvasHeight, logger)
			a, err := app.New(app.Config{Settings: cfg, Surface: hub, Logger: logger})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Init(); err != nil {
				// The catalog and coaching endpoints still work without a camera.
				logger.Warn("live capture unavailable", "error", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Config{
				StaticDir: cfg.Server.StaticDir,
				App:       a,
				Stream:    hub,
				Logger:    logger,
			})

			if !withTray {
				return srv.Run(runCtx, cfg.Server.Bind)
			}

			errCh := make(chan error, 1)
			t := newTray(runCtx, a, browserURL(cfg.Server.Bind), stop, logger)
			go func() {
				errCh <- srv.Run(runCtx, cfg.Server.Bind)
				t.Quit()
			}()
			t.Run()
			stop()
			return <-errCh
		},
	}

	cmd.Flags().BoolVar(&withTray, "tray", false, "Show a system tray menu")
	return cmd
}

// newTray wires the tray menu to the app. Quitting cancels the server.
func newTray(ctx context.Context, a *app.App, url string, quit func(), logger *slog.Logger) *tray.Tray {
	t := tray.New()
	t.SetCalibrated(calibration.IsCalibrated(a.Session()))

	t.OnToggle(func() {
		if _, err := a.Practice().Toggle(); err != nil {
			logger.Info("toggle ignored", "error", err)
		}
	})
	t.OnRecalibrate(func() {
		go func() {
			if _, err := a.Calibrate(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("recalibration failed", "error", err)
			}
		}()
	})
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			logger.Warn("open browser failed", "url", url, "error", err)
		}
	})
	t.OnQuit(quit)

	a.Session().Subscribe(session.TopicCalibrationUpdated, func(session.Event) {
		t.SetCalibrated(calibration.IsCalibrated(a.Session()))
	})
	playback := func(session.Event) {
		st := a.Practice().State()
		t.SetPlayback(st.PoseName, st.Playing)
	}
	a.Session().Subscribe(session.TopicPracticeUpdated, playback)
	a.Session().Subscribe(session.TopicPlaybackToggled, playback)
	return t
}

func browserURL(bind string) string {
	host := strings.TrimPrefix(bind, "0.0.0.0")
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return fmt.Sprintf("http://%s/", host)
}

func openBrowser(url string) error {
	var name string
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		name = "xdg-open"
	}
	return exec.Command(name, url).Start()
}

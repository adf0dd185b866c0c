package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/taiji/internal/app"
	"github.com/ayusman/taiji/internal/calibration"
)

func newCalibrateCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Capture a T-pose from the webcam and print the body profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			a, err := app.New(app.Config{Settings: cfg, Logger: logger})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Init(); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Stand back and hold a T-pose facing the camera.")
			last := -1
			profile, err := a.Calibrate(runCtx, func(secondsLeft int) {
				if secondsLeft != last {
					last = secondsLeft
					fmt.Fprintf(out, "  hold... %d\n", secondsLeft)
				}
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(out, renderProfile(profile))
			if outPath != "" {
				if err := writeProfile(outPath, profile); err != nil {
					return err
				}
				fmt.Fprintf(out, "Saved profile to %s\n", outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the profile as JSON to this file")
	return cmd
}

func renderProfile(p *calibration.Profile) string {
	m := func(v float64) string { return fmt.Sprintf("%.3f m", v) }
	px := func(v float64) string { return fmt.Sprintf("%.1f px", v) }
	props := p.Proportions
	rows := [][]string{
		{"Shoulder width", m(props.ShoulderWidth)},
		{"Hip width", m(props.HipWidth)},
		{"Upper arm (L/R)", m(props.LeftUpperArm) + " / " + m(props.RightUpperArm)},
		{"Forearm (L/R)", m(props.LeftForearm) + " / " + m(props.RightForearm)},
		{"Thigh (L/R)", m(props.LeftThigh) + " / " + m(props.RightThigh)},
		{"Shank (L/R)", m(props.LeftShank) + " / " + m(props.RightShank)},
		{"Focal length", px(p.Camera.FX)},
		{"Principal point", px(p.Camera.CX) + ", " + px(p.Camera.CY)},
		{"Subject distance", m(p.Camera.EstimatedDepthM)},
		{"Video", fmt.Sprintf("%dx%d", p.VideoWidth, p.VideoHeight)},
	}
	return renderTable("Calibration profile", []string{"Measure", "Value"}, rows,
		[]columnAlignment{alignLeft, alignRight})
}

func writeProfile(path string, p *calibration.Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

func readProfile(r io.Reader) (*calibration.Profile, error) {
	var p calibration.Profile
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if p.Proportions.ShoulderWidth <= 0 || p.Camera.FX <= 0 {
		return nil, errors.New("profile is missing body proportions or camera intrinsics")
	}
	return &p, nil
}

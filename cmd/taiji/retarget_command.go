package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/taiji/internal/app"
	"github.com/ayusman/taiji/internal/calibration"
	"github.com/ayusman/taiji/internal/sequence"
)

func newRetargetCommand(ctx *commandContext) *cobra.Command {
	var profilePath string
	var videosDir string

	cmd := &cobra.Command{
		Use:   "retarget <sequence-id> <pose-index>",
		Short: "Extract and retarget one expert segment onto a saved profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			seq, err := sequence.Get(args[0], true)
			if err != nil {
				return err
			}
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("pose index %q: %w", args[1], err)
			}
			pose, err := seq.Pose(idx)
			if err != nil {
				return err
			}
			if profilePath == "" {
				return errors.New("--profile is required (see `taiji calibrate --out`)")
			}
			f, err := os.Open(profilePath)
			if err != nil {
				return fmt.Errorf("open profile: %w", err)
			}
			profile, err := readProfile(f)
			f.Close()
			if err != nil {
				return err
			}
			if videosDir == "" {
				videosDir = cfg.Retarget.VideosDir
			}

			a, err := app.New(app.Config{Settings: cfg, Logger: logger})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := calibration.Save(a.Session(), profile); err != nil {
				return err
			}
			if err := a.StartDetector(); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			segment := sequence.SegmentKey(seq.ID, idx)
			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription(segment),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			result, err := a.Retarget().Retarget(runCtx, segment, sequence.VideoPath(videosDir, pose, idx), func(done, total int) {
				bar.ChangeMax(total)
				bar.Set(done)
			})
			bar.Finish()
			if err != nil {
				return err
			}

			st := result.Stats
			rows := [][]string{{
				segment,
				pose.Name,
				strconv.Itoa(result.Len()),
				strconv.Itoa(st.Samples),
				strconv.Itoa(st.Detected),
				strconv.Itoa(st.NoPose),
				strconv.Itoa(st.SeekFailed),
			}}
			fmt.Fprintln(out, renderTable("", []string{"Segment", "Pose", "Frames", "Samples", "Detected", "No pose", "Seek failed"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&profilePath, "profile", "p", "", "Calibration profile JSON written by `taiji calibrate --out`")
	cmd.Flags().StringVar(&videosDir, "videos", "", "Directory holding the expert clips (default from config)")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"faceattend/internal/attendanceclient"
	"faceattend/internal/capture"
	"faceattend/internal/config"
	"faceattend/internal/device"
)

type rootOptions struct {
	cfg     config.App
	server  string
	timeout time.Duration
	asJSON  bool
	verbose bool
}

func (o *rootOptions) logger() *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	l, err := o.cfg.NewLogger()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func (o *rootOptions) client(log *zap.Logger) *attendanceclient.Client {
	return attendanceclient.New(o.server, o.timeout, o.cfg.SubmitSkip).WithLogger(log.Named("attendanceclient"))
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{cfg: config.Load()}

	root := &cobra.Command{
		Use:           "faceattend",
		Short:         "Register employees and mark attendance against a face-recognition backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			for _, w := range opts.cfg.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.server, "server", opts.cfg.APIBaseURL, "attendance service base URL (API_BASE_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", opts.cfg.RequestTimeout, "request timeout")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of text")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		newSubmitCmd(opts, capture.ModeRegister),
		newSubmitCmd(opts, capture.ModeCheckIn),
		newEmployeesCmd(opts),
		newHistoryCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

// errNotAccepted makes the process exit non-zero after the notice was printed.
var errNotAccepted = errors.New("submission not accepted")

func newSubmitCmd(opts *rootOptions, mode capture.Mode) *cobra.Command {
	var (
		name      string
		image     string
		useCamera bool
	)
	cmd := &cobra.Command{
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if image == "" && !useCamera {
				return errors.New("one of --image or --camera is required")
			}
			log := opts.logger()
			defer func() { _ = log.Sync() }()

			copts := []capture.Option{
				capture.WithLogger(log.Named("capture")),
				capture.WithInitialMode(mode),
			}
			if useCamera {
				if opts.cfg.CameraCommand == "" {
					return errors.New("--camera needs CAMERA_COMMAND")
				}
				copts = append(copts,
					capture.WithCamera(device.NewCommandCamera(opts.cfg.CameraCommand, opts.cfg.SpoolDir)),
					capture.WithPermission(device.DevicePermission{Device: opts.cfg.CameraDevice, Skip: opts.cfg.CameraPermSkip}),
				)
			}
			ctrl := capture.New(opts.client(log), copts...)
			ctrl.SetEmployeeName(name)

			var out capture.Outcome
			if useCamera {
				out = ctrl.CaptureFromCamera(cmd.Context())
			} else {
				out = ctrl.PickFromGallery(cmd.Context(), device.FilePick(image))
			}
			if err := printOutcome(cmd.OutOrStdout(), opts.asJSON, out); err != nil {
				return err
			}
			if out.Kind != capture.OutcomeSuccess {
				return errNotAccepted
			}
			return nil
		},
	}

	switch mode {
	case capture.ModeRegister:
		cmd.Use = "register --name NAME (--image FILE | --camera)"
		cmd.Short = "Enroll an employee's face under a name"
		cmd.Flags().StringVar(&name, "name", "", "employee name")
	case capture.ModeCheckIn:
		cmd.Use = "checkin (--image FILE | --camera)"
		cmd.Aliases = []string{"check-in", "attendance"}
		cmd.Short = "Mark attendance for whoever is in the photo"
	}
	cmd.Flags().StringVar(&image, "image", "", "photo file to submit")
	cmd.Flags().BoolVar(&useCamera, "camera", false, "capture with CAMERA_COMMAND instead of a file")
	return cmd
}

func newEmployeesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "employees",
		Short: "List registered employees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			employees, err := opts.client(opts.logger()).Employees(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(w, employees)
			}
			for _, e := range employees {
				fmt.Fprintf(w, "%d\t%s\n", e.ID, e.Name)
			}
			fmt.Fprintf(w, "%d employee(s)\n", len(employees))
			return nil
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history NAME",
		Short: "Show attendance records for an employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := opts.client(opts.logger()).AttendanceHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(w, hist)
			}
			fmt.Fprintf(w, "%s: %d record(s)\n", hist.EmployeeName, hist.Count)
			for _, r := range hist.Records {
				fmt.Fprintln(w, r.Timestamp)
			}
			return nil
		},
	}
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the attendance service is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			if err := opts.client(opts.logger()).Health(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", opts.server)
			return nil
		},
	}
}

func printOutcome(w io.Writer, asJSON bool, out capture.Outcome) error {
	if asJSON {
		return writeJSON(w, map[string]string{
			"kind":       string(out.Kind),
			"title":      out.Title,
			"message":    out.Message,
			"request_id": out.RequestID,
		})
	}
	switch {
	case out.Kind == capture.OutcomeCanceled:
		_, err := fmt.Fprintln(w, "canceled")
		return err
	case out.Title == "":
		_, err := fmt.Fprintln(w, out.Message)
		return err
	default:
		_, err := fmt.Fprintf(w, "%s: %s\n", out.Title, out.Message)
		return err
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

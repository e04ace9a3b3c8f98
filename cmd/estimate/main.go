package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kdimtricp/paintestimator/internal/config"
	"github.com/kdimtricp/paintestimator/internal/database"
	"github.com/kdimtricp/paintestimator/internal/models"
	"github.com/kdimtricp/paintestimator/internal/present"
	"github.com/kdimtricp/paintestimator/internal/preview"
	"github.com/kdimtricp/paintestimator/internal/transport"
	"github.com/kdimtricp/paintestimator/internal/view"
)

type options struct {
	cfg     config.Config
	baseURL string
	timeout time.Duration
	asJSON  bool
	record  bool
	verbose bool
	logger  *zap.Logger
	fields  fieldFlags
	mode    string
	limit   int
}

type fieldFlags struct {
	length, width, height     float64
	doors, windows            int
	doorHeight, doorWidth     float64
	windowHeight, windowWidth float64
	roomType, paintType       string
	coats                     int
	includeCeiling            bool
	ceilingHeight             float64
	rooms                     []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "estimate",
		Short:         "Submit paint estimates to the estimation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.verbose {
				cfg.LogLevel = "debug"
			}
			cfg.LogFormat = "console"
			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("base-url") {
				opts.baseURL = cfg.BaseURL
			}
			if !cmd.Flags().Changed("timeout") {
				opts.timeout = cfg.Timeout
			}
			opts.cfg = cfg
			opts.logger = logger
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.baseURL, "base-url", config.DefaultBaseURL, "estimation API base URL")
	pf.DurationVar(&opts.timeout, "timeout", config.DefaultTimeout, "request timeout")
	pf.BoolVar(&opts.asJSON, "json", false, "print the normalized result as JSON")
	pf.BoolVar(&opts.record, "record", false, "store the result in the history database")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newModeCmd(opts, models.ModeManual, "manual", cobra.NoArgs),
		newModeCmd(opts, models.ModeManualRooms, "rooms", cobra.NoArgs),
		newModeCmd(opts, models.ModeSingleImage, "image FILE", cobra.ExactArgs(1)),
		newModeCmd(opts, models.ModeMultiImage, "multi FILE...", cobra.RangeArgs(2, 4)),
		newModeCmd(opts, models.ModeVideo, "video FILE", cobra.ExactArgs(1)),
		newModeCmd(opts, models.ModeBlueprint, "blueprint FILE", cobra.ExactArgs(1)),
		newHealthCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

func newModeCmd(opts *options, mode models.Mode, use string, args cobra.PositionalArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: mode.Label() + " estimate",
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEstimate(cmd, opts, mode, args)
		},
	}

	f := cmd.Flags()
	ff := &opts.fields
	switch mode {
	case models.ModeManual:
		f.Float64Var(&ff.length, "length", 0, "room length in feet")
		f.Float64Var(&ff.width, "width", 0, "room width in feet")
		f.Float64Var(&ff.height, "height", 0, "wall height in feet")
		f.IntVar(&ff.doors, "doors", 0, "number of doors")
		f.IntVar(&ff.windows, "windows", 0, "number of windows")
		f.Float64Var(&ff.doorHeight, "door-height", 0, "door height in feet")
		f.Float64Var(&ff.doorWidth, "door-width", 0, "door width in feet")
		f.Float64Var(&ff.windowHeight, "window-height", 0, "window height in feet")
		f.Float64Var(&ff.windowWidth, "window-width", 0, "window width in feet")
	case models.ModeManualRooms:
		f.StringArrayVar(&ff.rooms, "room", nil, "room as LENGTHxWIDTHxHEIGHT[:DOORS[:WINDOWS]] in feet, repeatable")
	case models.ModeBlueprint:
		f.Float64Var(&ff.ceilingHeight, "ceiling-height", 10, "ceiling height in feet")
	default:
		f.StringVar(&ff.roomType, "room-type", "bedroom", "room type")
		// The multi-room image endpoint measures every wall itself.
		if mode != models.ModeMultiImage {
			f.Float64Var(&ff.length, "length", 0, "override the detected room length in feet")
			f.Float64Var(&ff.width, "width", 0, "override the detected room width in feet")
			f.Float64Var(&ff.height, "height", 0, "override the detected wall height in feet")
		}
	}
	f.StringVar(&ff.paintType, "paint-type", "interior", "interior or exterior")
	f.IntVar(&ff.coats, "coats", 2, "number of coats")
	f.BoolVar(&ff.includeCeiling, "include-ceiling", false, "paint the ceilings too")

	return cmd
}

// fieldsFor applies only the flags the user set, so optional measurements
// stay unset and the backend defaults apply.
func fieldsFor(cmd *cobra.Command, mode models.Mode, ff fieldFlags) (models.Fields, error) {
	fields := models.DefaultFields(mode)
	changed := cmd.Flags().Changed

	optional := func(name string, v float64) *float64 {
		if !changed(name) {
			return nil
		}
		return &v
	}

	fields.Length = optional("length", ff.length)
	fields.Width = optional("width", ff.width)
	fields.Height = optional("height", ff.height)
	fields.DoorHeight = optional("door-height", ff.doorHeight)
	fields.DoorWidth = optional("door-width", ff.doorWidth)
	fields.WindowHeight = optional("window-height", ff.windowHeight)
	fields.WindowWidth = optional("window-width", ff.windowWidth)
	fields.NumDoors = ff.doors
	fields.NumWindows = ff.windows
	fields.PaintType = ff.paintType
	fields.NumCoats = ff.coats
	fields.IncludeCeiling = ff.includeCeiling

	switch mode {
	case models.ModeManualRooms:
		for _, value := range ff.rooms {
			room, err := parseRoom(value)
			if err != nil {
				return models.Fields{}, err
			}
			fields.Rooms = append(fields.Rooms, room)
		}
	case models.ModeBlueprint:
		fields.CeilingHeight = ff.ceilingHeight
	case models.ModeSingleImage, models.ModeMultiImage, models.ModeVideo:
		fields.RoomType = ff.roomType
	}
	return fields, nil
}

// parseRoom reads LENGTHxWIDTHxHEIGHT[:DOORS[:WINDOWS]], e.g. 12x10x9:1:2.
// Range checks are left to validation so messages match the other modes.
func parseRoom(value string) (models.RoomFields, error) {
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return models.RoomFields{}, fmt.Errorf("invalid room %q", value)
	}

	dims := strings.Split(strings.ToLower(parts[0]), "x")
	if len(dims) != 3 {
		return models.RoomFields{}, fmt.Errorf("invalid room %q: want LENGTHxWIDTHxHEIGHT", value)
	}
	values := make([]float64, 3)
	for i, d := range dims {
		v, err := strconv.ParseFloat(strings.TrimSpace(d), 64)
		if err != nil {
			return models.RoomFields{}, fmt.Errorf("invalid room %q: %w", value, err)
		}
		values[i] = v
	}
	room := models.RoomFields{Length: &values[0], Width: &values[1], Height: &values[2]}

	counts := []*int{&room.NumDoors, &room.NumWindows}
	for i, c := range parts[1:] {
		n, err := strconv.Atoi(strings.TrimSpace(c))
		if err != nil {
			return models.RoomFields{}, fmt.Errorf("invalid room %q: %w", value, err)
		}
		*counts[i] = n
	}
	return room, nil
}

func runEstimate(cmd *cobra.Command, opts *options, mode models.Mode, paths []string) error {
	logger := opts.logger
	defer logger.Sync()

	deps := view.Deps{
		Transport: transport.NewClient(transport.Config{BaseURL: opts.baseURL, Timeout: opts.timeout}, logger),
		Logger:    logger,
	}

	if mode == models.ModeVideo {
		inspector, err := preview.NewInspector(logger)
		if err != nil {
			logger.Warn("video duration will not be checked locally", zap.Error(err))
		} else {
			defer inspector.Cleanup()
			deps.Previews = preview.NewLoader(opts.cfg.PreviewSize, inspector, logger)
		}
	}

	if opts.record {
		db, err := database.NewDB(database.Config{SQLitePath: opts.cfg.DBPath, Logger: logger})
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		deps.History = database.NewEstimateRepository(db)
	}

	v := view.New(mode, deps)
	defer v.Close()

	files := make([]models.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		files = append(files, models.NewFile(filepath.Base(p), data, ""))
	}
	if err := v.AddFiles(files...); err != nil {
		return err
	}
	v.WaitForPreviews()
	fields, err := fieldsFor(cmd, mode, opts.fields)
	if err != nil {
		return err
	}
	v.SetFields(fields)

	if snap := v.Snapshot(); snap.Notice != nil {
		return errors.New(snap.Notice.Message)
	}

	res, err := v.Submit(cmd.Context())
	if err != nil {
		return errors.New(view.NoticeFor(err).Message)
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return present.Text(out, present.Summarize(res))
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the estimation service is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := transport.NewClient(transport.Config{BaseURL: opts.baseURL, Timeout: opts.timeout}, opts.logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			status, err := client.Health(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (version %s)\n", status.Status, status.Version)
			for name, loaded := range status.ModelsLoaded {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %t\n", name, loaded)
			}
			return nil
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded estimates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var mode models.Mode
			if opts.mode != "" {
				m, err := models.ParseMode(opts.mode)
				if err != nil {
					return err
				}
				mode = m
			}

			db, err := database.NewDB(database.Config{SQLitePath: opts.cfg.DBPath, Logger: opts.logger})
			if err != nil {
				return err
			}
			defer db.Close()

			estimates, err := database.NewEstimateRepository(db).ListRecent(cmd.Context(), mode, opts.limit)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(estimates)
			}
			for _, e := range estimates {
				s := present.Summarize(e.Result)
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s %14s %12s\n",
					e.CreatedAt.Local().Format("Jan 2 15:04"), s.Mode, s.PaintableArea, s.Cost)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", "", "only show this mode")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "number of estimates")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moonback/photoboot/internal/booth"
	"github.com/moonback/photoboot/internal/capture"
)

var (
	shootModeFlag      string
	shootShotsFlag     int
	shootCountdownFlag int
	shootFilterFlag    string
	shootTemplateFlag  string
	shootTextFlag      string
	shootNoFrameFlag   bool
	shootPrintFlag     int
	shootEmailFlag     string
)

var shootCmd = &cobra.Command{
	Use:   "shoot",
	Short: "Run one capture session from the terminal",
	Long: `Shoot runs a countdown, takes the shots, applies the filter and the
active frame, composes the print and stores it. Press Ctrl+C to cancel.

Examples:
  photobooth shoot
  photobooth shoot --mode multi --shots 4 --template grid_2x2
  photobooth shoot --filter vintage --text "Summer Party" --print 2
  photobooth shoot --email guest@example.com`,
	Args: cobra.NoArgs,
	RunE: runShoot,
}

func init() {
	f := shootCmd.Flags()
	f.StringVar(&shootModeFlag, "mode", "single", "Capture mode: single or multi")
	f.IntVar(&shootShotsFlag, "shots", 0, "Shots in multi mode (0 = template slots)")
	f.IntVar(&shootCountdownFlag, "countdown", 0, "Countdown seconds before each shot, 0 for none (default from config)")
	f.StringVar(&shootFilterFlag, "filter", "", "Filter: none, vintage, bw, warm")
	f.StringVarP(&shootTemplateFlag, "template", "t", "", "Print template (default from config)")
	f.StringVar(&shootTextFlag, "text", "", "Caption drawn on the print")
	f.BoolVar(&shootNoFrameFlag, "no-frame", false, "Skip the active frame")
	f.IntVar(&shootPrintFlag, "print", 0, "Print this many copies when done")
	f.StringVar(&shootEmailFlag, "email", "", "Email the print to this address when done")
}

func runShoot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.sequencer.OnTick(func(remaining int) {
		fmt.Printf("   %d...\n", remaining)
	})
	a.sequencer.OnShutter(func(s capture.Shot) {
		fmt.Printf("   Click! (shot %d)\n", s.Index+1)
	})

	req := booth.SessionRequest{
		Mode:        shootModeFlag,
		ShotCount:   shootShotsFlag,
		Filter:      shootFilterFlag,
		Template:    shootTemplateFlag,
		TextOverlay: shootTextFlag,
		NoFrame:     shootNoFrameFlag,
	}
	if cmd.Flags().Changed("countdown") {
		req.Countdown = &shootCountdownFlag
	}
	res, err := a.controller.Shoot(ctx, req)
	if errors.Is(err, capture.ErrCaptureCancelled) {
		fmt.Println("Cancelled. Nothing was saved.")
		return nil
	}
	if err != nil {
		return err
	}

	printResult(res)

	if shootPrintFlag > 0 {
		jobID, err := a.controller.Print(ctx, res.Filename, shootPrintFlag)
		if err != nil {
			return fmt.Errorf("print: %w", err)
		}
		fmt.Printf("Sent %d cop%s to %s (job %s)\n", shootPrintFlag, plural(shootPrintFlag, "y", "ies"), cfg.Printer.Queue, jobID)
	}
	if shootEmailFlag != "" {
		if err := a.controller.Email(ctx, shootEmailFlag, res.Filename); err != nil {
			return fmt.Errorf("email: %w", err)
		}
		fmt.Printf("Emailed %s to %s\n", res.Filename, shootEmailFlag)
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// printResult summarises a stored print.
func printResult(res *booth.Result) {
	rows := [][]string{
		{"Print", res.PrintKey},
		{"Thumbnail", res.ThumbnailKey},
		{"Template", res.Template},
		{"Photos", fmt.Sprintf("%d", res.PhotosUsed)},
		{"Framed", fmt.Sprintf("%t", res.Framed)},
	}
	if res.PhotosDropped > 0 {
		rows = append(rows, []string{"Dropped", fmt.Sprintf("%d (template has fewer slots)", res.PhotosDropped)})
	}
	if res.FrameFallback {
		rows = append(rows, []string{"Frame", "unavailable, printed without it"})
	}
	for i, key := range res.ShotKeys {
		rows = append(rows, []string{fmt.Sprintf("Shot %d", i+1), key})
	}
	if res.Duration > 0 {
		rows = append(rows, []string{"Took", res.Duration.Round(time.Millisecond).String()})
	}
	fmt.Println(renderTable([]column{textCol("Field"), textCol("Value")}, rows))
}

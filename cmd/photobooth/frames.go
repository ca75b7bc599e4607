package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ncruces/zenity"
	"github.com/spf13/cobra"

	"github.com/moonback/photoboot/internal/frames"
	"github.com/moonback/photoboot/internal/geometry"
)

var (
	frameNameFlag        string
	frameDescriptionFlag string
	framePositionFlag    string
	frameSizeFlag        int
	frameXFlag           float64
	frameYFlag           float64
	frameActivateFlag    bool
	framePickFlag        bool
)

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Manage decorative frames",
	Long: `Frames manages the local frame registry: PNG overlays with a placement
that are drawn over every photo while active. At most one frame is active.`,
}

var framesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered frames",
	Args:  cobra.NoArgs,
	RunE:  runFramesList,
}

var framesAddCmd = &cobra.Command{
	Use:   "add [file.png]",
	Short: "Register a PNG frame",
	Long: `Add copies a PNG into the frame asset directory and registers it.

Examples:
  photobooth frames add gold.png --name Gold
  photobooth frames add corner.png --position bottom-right --size 30 --activate
  photobooth frames add logo.png --position custom --x 90 --y 10 --size 15
  photobooth frames add --pick`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFramesAdd,
}

var framesActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Make a frame the active one",
	Args:  cobra.ExactArgs(1),
	RunE:  runFramesActivate,
}

var framesDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Stop applying a frame",
	Args:  cobra.ExactArgs(1),
	RunE:  runFramesDeactivate,
}

var framesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a frame and its asset",
	Args:  cobra.ExactArgs(1),
	RunE:  runFramesDelete,
}

var framesActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the active frame",
	Args:  cobra.NoArgs,
	RunE:  runFramesActive,
}

func init() {
	f := framesAddCmd.Flags()
	f.StringVarP(&frameNameFlag, "name", "n", "", "Display name (default: file name)")
	f.StringVar(&frameDescriptionFlag, "description", "", "Description")
	f.StringVar(&framePositionFlag, "position", string(geometry.Center), "center, top-left, top-right, bottom-left, bottom-right, custom")
	f.IntVar(&frameSizeFlag, "size", geometry.EdgeToEdge, "Frame width as a percentage of the photo (100 = edge to edge)")
	f.Float64Var(&frameXFlag, "x", 0, "Custom horizontal offset in percent")
	f.Float64Var(&frameYFlag, "y", 0, "Custom vertical offset in percent")
	f.BoolVar(&frameActivateFlag, "activate", false, "Make the new frame active")
	f.BoolVar(&framePickFlag, "pick", false, "Choose the PNG with a file dialog")

	framesCmd.AddCommand(framesListCmd, framesAddCmd, framesActivateCmd, framesDeactivateCmd, framesDeleteCmd, framesActiveCmd)
}

// withLibrary opens the local registry for the duration of fn.
func withLibrary(fn func(lib *frames.Library) error) error {
	if cfg.Frames.RemoteURL != "" {
		return fmt.Errorf("frames are managed by the booth at %s", cfg.Frames.RemoteURL)
	}
	lib, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	defer lib.Registry.Close()
	return fn(lib)
}

func frameRow(d *frames.Descriptor) []string {
	active := ""
	if d.Active {
		active = "yes"
	}
	placement := string(d.Position)
	if d.Position == geometry.Custom {
		placement = fmt.Sprintf("custom (%g%%, %g%%)", d.X, d.Y)
	}
	return []string{
		d.ID,
		d.Name,
		placement,
		fmt.Sprintf("%d%%", d.Size),
		fmt.Sprintf("%dx%d", d.Width, d.Height),
		active,
		d.CreatedAt.Local().Format("2006-01-02 15:04"),
	}
}

var frameColumns = []column{
	textCol("ID"), textCol("Name"), textCol("Position"), numCol("Size"),
	numCol("Pixels"), textCol("Active"), textCol("Created"),
}

func runFramesList(cmd *cobra.Command, args []string) error {
	return withLibrary(func(lib *frames.Library) error {
		list, err := lib.Registry.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No frames registered.")
			return nil
		}
		rows := make([][]string, 0, len(list))
		for _, d := range list {
			rows = append(rows, frameRow(d))
		}
		fmt.Println(renderTable(frameColumns, rows))
		return nil
	})
}

// pickFrameFile asks for a PNG with the native file dialog. An empty path
// means the dialog was cancelled.
func pickFrameFile() (string, error) {
	path, err := zenity.SelectFile(
		zenity.Title("Select frame PNG"),
		zenity.FileFilters{
			{Name: "PNG images", Patterns: []string{"*.png"}},
		},
	)
	if errors.Is(err, zenity.ErrCanceled) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("file picker failed: %w", err)
	}
	return path, nil
}

func runFramesAdd(cmd *cobra.Command, args []string) error {
	var path string
	switch {
	case len(args) == 1:
		path = args[0]
	case framePickFlag:
		picked, err := pickFrameFile()
		if err != nil {
			return err
		}
		if picked == "" {
			fmt.Println("Cancelled. No frame added.")
			return nil
		}
		path = picked
	default:
		return errors.New("a PNG file or --pick is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	name := frameNameFlag
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return withLibrary(func(lib *frames.Library) error {
		d, err := lib.Add(cmd.Context(), frames.NewFrame{
			Name:        name,
			Description: frameDescriptionFlag,
			Descriptor: frames.Descriptor{
				Position: geometry.Position(framePositionFlag),
				X:        frameXFlag,
				Y:        frameYFlag,
				Size:     frameSizeFlag,
				Active:   frameActivateFlag,
			},
			CreatedBy: "cli",
		}, data)
		if err != nil {
			return err
		}
		fmt.Println(renderTable(frameColumns, [][]string{frameRow(d)}))
		return nil
	})
}

func runFramesActivate(cmd *cobra.Command, args []string) error {
	return withLibrary(func(lib *frames.Library) error {
		if err := lib.Registry.Activate(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Frame %s is now active.\n", args[0])
		return nil
	})
}

func runFramesDeactivate(cmd *cobra.Command, args []string) error {
	return withLibrary(func(lib *frames.Library) error {
		if err := lib.Registry.Deactivate(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Frame %s deactivated.\n", args[0])
		return nil
	})
}

func runFramesDelete(cmd *cobra.Command, args []string) error {
	return withLibrary(func(lib *frames.Library) error {
		if err := lib.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Frame %s deleted.\n", args[0])
		return nil
	})
}

// runFramesActive also works on a capture station that reads frames from
// another booth.
func runFramesActive(cmd *cobra.Command, args []string) error {
	show := func(d *frames.Descriptor) error {
		if d == nil {
			fmt.Println("No active frame.")
			return nil
		}
		fmt.Println(renderTable(frameColumns, [][]string{frameRow(d)}))
		return nil
	}
	if cfg.Frames.RemoteURL != "" {
		d, err := frames.NewClient(cfg.Frames.RemoteURL).Active(cmd.Context())
		if err != nil {
			return err
		}
		return show(d)
	}
	return withLibrary(func(lib *frames.Library) error {
		d, err := lib.Registry.Active(cmd.Context())
		if err != nil {
			return err
		}
		return show(d)
	})
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moonback/photoboot/internal/booth"
)

var (
	composeTemplateFlag string
	composeTextFlag     string
	composeFilterFlag   string
	composeFrameFlag    bool
)

var composeCmd = &cobra.Command{
	Use:   "compose <image>...",
	Short: "Lay existing photos out on a print template",
	Long: `Compose places the given images, in order, into the template's slots and
stores the print under prints/. Extra images beyond the template's slots are
dropped with a warning.

Examples:
  photobooth compose a.jpg b.jpg
  photobooth compose a.jpg b.jpg c.jpg d.jpg --template grid_2x2 --frame
  photobooth compose portrait.png --template postcard_4x6 --filter bw --text "Paris 2024"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompose,
}

func init() {
	f := composeCmd.Flags()
	f.StringVarP(&composeTemplateFlag, "template", "t", "", "Print template (default from config)")
	f.StringVar(&composeTextFlag, "text", "", "Caption drawn on the print")
	f.StringVar(&composeFilterFlag, "filter", "", "Filter applied to every photo")
	f.BoolVar(&composeFrameFlag, "frame", false, "Apply the active frame to every cell")
}

func runCompose(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	uploads := make([][]byte, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		uploads = append(uploads, data)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.controller.ComposeUploaded(ctx, uploads, booth.ComposeRequest{
		Template:       composeTemplateFlag,
		TextOverlay:    composeTextFlag,
		Filter:         composeFilterFlag,
		UseActiveFrame: composeFrameFlag,
	})
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

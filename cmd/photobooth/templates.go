package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect print templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and configured templates",
	Args:  cobra.NoArgs,
	RunE:  runTemplatesList,
}

func init() {
	templatesCmd.AddCommand(templatesListCmd)
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	lib, err := openTemplates(cfg)
	if err != nil {
		return err
	}

	rows := [][]string{}
	for _, t := range lib.List() {
		w, h := t.PixelSize()
		name := t.Name
		if name == cfg.Templates.Default {
			name += " *"
		}
		rows = append(rows, []string{
			name,
			t.Title,
			string(t.Kind),
			strconv.Itoa(t.Slots()),
			fmt.Sprintf("%dx%d", w, h),
			strconv.Itoa(t.Dimensions.DPI),
		})
	}
	fmt.Println(renderTable([]column{
		textCol("Name"), textCol("Title"), textCol("Kind"),
		numCol("Slots"), numCol("Pixels"), numCol("DPI"),
	}, rows))
	return nil
}

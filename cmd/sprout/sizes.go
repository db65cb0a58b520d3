package main

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sprout/internal/sizes"
)

func newSizesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sizes",
		Short: "List every size that gets generated",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := sizes.NewNormalizer(opts.cfg.RawImageSizes).All()

			data := pterm.TableData{{"Name", "Width", "Height", "Crop", "Post types"}}
			for _, r := range table.Registered() {
				data = append(data, []string{
					r.Name,
					dimension(r.Width),
					dimension(r.Height),
					fmt.Sprint(r.Crop),
					postTypes(table, r.Base),
				})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render(); err != nil {
				return err
			}

			pterm.Println()
			pterm.DefaultSection.Println("Picker labels")
			for _, l := range table.UILabels(nil) {
				fmt.Printf(" %-16s %s\n", l.Name, l.Label)
			}
			return nil
		},
	}
}

func dimension(v int) string {
	if v == 0 {
		return "auto"
	}
	return fmt.Sprint(v)
}

func postTypes(t *sizes.Table, base string) string {
	s, ok := t.Get(base)
	if !ok || !s.PostTypesSet {
		return "any"
	}
	if len(s.PostTypes) == 0 {
		return "none"
	}
	return strings.Join(s.PostTypes, ", ")
}

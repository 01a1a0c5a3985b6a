package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List known site descriptors",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}

		rows := pterm.TableData{{"Name", "Login URL", "Success indicator"}}
		for _, name := range registry.Names() {
			site, _ := registry.Get(name)
			rows = append(rows, []string{site.Name, site.LoginURL, site.SuccessIndicator})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

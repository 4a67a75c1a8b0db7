package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/atelier-studio/atelier/cmd/service"
)

func main() {
	root := &cobra.Command{
		Use:          "atelier",
		Short:        "creative production assistant",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(service.NewCommand(), service.NewProcessCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

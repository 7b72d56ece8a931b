package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "quester"}

	root.AddCommand(serveCMD(), migrateCMD(), chatCMD())
	_ = root.Execute()
}

package cmd

import "github.com/spf13/cobra"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "todos",
		Short: "A per-user todo list server",
		Long:  `Todos serves an authenticated todo list as HTML pages, a JSON API and a change stream of server sent events`,
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yml", "config file (default is configs/config.yml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

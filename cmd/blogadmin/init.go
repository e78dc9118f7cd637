package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eringen/blogadmin/scaffold"
)

var (
	initDir   string
	initName  string
	initURL   string
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml and .env.example",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVar(&initDir, "dir", ".", "directory to write into")
	initCmd.Flags().StringVar(&initName, "name", "Blog", "site name")
	initCmd.Flags().StringVar(&initURL, "url", "http://localhost:3000", "public site URL")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	data, err := scaffold.NewData(initName, initURL)
	if err != nil {
		return err
	}
	created, err := scaffold.Write(initDir, data, initForce)
	for _, path := range created {
		fmt.Fprintf(cmd.OutOrStdout(), "  created %s\n", path)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Done! Next steps:")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Set ADMIN_EMAIL and ADMIN_PASSWORD in .env (see .env.example)")
	fmt.Fprintln(out, "  blogadmin serve --config config.yaml")
	return nil
}

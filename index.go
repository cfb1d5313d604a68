package main

import (
	"os"

	"github.com/etnz/twackup/deb"
	"github.com/spf13/cobra"
)

func (a *app) indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Write a flat APT repository index for the archives of a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := a.v.GetString("dir")
			info := deb.ArchiveInfo{
				Origin:      a.v.GetString("origin"),
				Label:       a.v.GetString("label"),
				Suite:       a.v.GetString("suite"),
				Codename:    a.v.GetString("codename"),
				Description: a.v.GetString("description"),
			}
			key := os.Getenv(a.v.GetString("key-env"))
			if err := deb.WriteIndex(dir, info, key); err != nil {
				return err
			}
			a.logger.Info("index written", "dir", dir, "signed", key != "")
			return nil
		},
	}
	f := cmd.Flags()
	f.String("dir", ".", "directory holding the .deb files")
	f.String("origin", "twackup", "Origin field of the Release file")
	f.String("label", "", "Label field of the Release file")
	f.String("suite", "", "Suite field of the Release file")
	f.String("codename", "", "Codename field of the Release file")
	f.String("description", "Packages rebuilt by twackup", "Description field of the Release file")
	f.String("key-env", "TWACKUP_GPG_KEY", "environment variable holding an armored private key to sign InRelease")
	return cmd
}

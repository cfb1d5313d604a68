// Command debinspect prints the structure of .deb archives and bundles
// written by twackup.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/etnz/twackup/deb"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		asJSON      bool
		bundle      bool
		compression string
	)
	cmd := &cobra.Command{
		Use:           "debinspect FILE...",
		Short:         "Print the members, control file and payload of .deb archives",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				var err error
				if bundle {
					err = printBundle(cmd.OutOrStdout(), path, compression, asJSON)
				} else {
					err = printDeb(cmd.OutOrStdout(), path, asJSON)
				}
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().BoolVar(&bundle, "bundle", false, "files are bundles rather than packages")
	cmd.Flags().StringVar(&compression, "compression", "", "bundle compression, guessed from the extension when empty")
	return cmd
}

func printDeb(w io.Writer, path string, asJSON bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := deb.Inspect(f)
	if err != nil {
		return err
	}
	if asJSON {
		return json.NewEncoder(w).Encode(info)
	}

	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, " format %s", info.FormatVersion)
	fmt.Fprintf(w, " members %s\n", strings.Join(info.Members, " "))
	fmt.Fprintf(w, " control:\n")
	for _, line := range strings.Split(strings.TrimRight(info.Control, "\n"), "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintf(w, " control files:\n")
	printEntries(w, info.ControlFiles)
	fmt.Fprintf(w, " data files:\n")
	printEntries(w, info.DataFiles)
	return nil
}

func printBundle(w io.Writer, path, compression string, asJSON bool) error {
	c, err := bundleCompression(path, compression)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	entries, err := deb.ListTar(f, c)
	if err != nil {
		return err
	}
	if asJSON {
		return json.NewEncoder(w).Encode(entries)
	}
	fmt.Fprintf(w, "%s (%s, %d entries)\n", path, c, len(entries))
	printEntries(w, entries)
	return nil
}

// bundleCompression returns the named compression, or the one matching the
// extension of path.
func bundleCompression(path, name string) (deb.Compression, error) {
	if name != "" {
		return deb.ParseCompression(name)
	}
	for _, c := range []deb.Compression{deb.CompressionGzip, deb.CompressionXz, deb.CompressionZstd, deb.CompressionLz4} {
		if strings.HasSuffix(path, ".tar"+c.Extension()) {
			return c, nil
		}
	}
	return deb.CompressionNone, nil
}

func printEntries(w io.Writer, entries []deb.Entry) {
	for _, e := range entries {
		fmt.Fprintf(w, "  %c %06o %10d %s\n", e.Typeflag, e.Mode, e.Size, e.Name)
	}
}

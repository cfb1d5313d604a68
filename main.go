// Command twackup rebuilds the packages installed in a dpkg database into
// standalone .deb archives, optionally folded into a single bundle and
// indexed as a flat APT repository.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/etnz/twackup/dpkg"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// app holds what every subcommand shares once flags are parsed.
type app struct {
	v      *viper.Viper
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "twackup",
		Short:         "Rebuild installed dpkg packages into .deb archives",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetErr(os.Stderr)

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML file providing defaults for any flag")
	pf.String("admin-dir", dpkg.DefaultAdminDir, "dpkg database directory")
	pf.BoolP("verbose", "v", false, "log debug messages")
	pf.Bool("quiet", false, "only log errors")

	root.AddCommand(a.listCmd(), a.buildCmd(), a.indexCmd())
	return root
}

// setup binds flags, environment (TWACKUP_*) and the optional config file,
// in increasing order of precedence: file, environment, flag.
func (a *app) setup(cmd *cobra.Command) error {
	a.v.SetEnvPrefix("twackup")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.InheritedFlags()} {
		if err := a.v.BindPFlags(fs); err != nil {
			return err
		}
	}
	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		a.v.SetConfigType("yaml")
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	a.logger = newLogger(cmd.ErrOrStderr(), a.v.GetBool("verbose"), a.v.GetBool("quiet"))
	return nil
}

func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := log.InfoLevel
	switch {
	case quiet:
		level = log.ErrorLevel
	case verbose:
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Prefix:          "twackup",
		Level:           level,
		ReportTimestamp: verbose,
	})
	return slog.New(handler)
}

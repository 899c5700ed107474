// sigadmin is the operator tool for the signature service. It works directly
// against the service database, so it is meant to run on the same host (or
// volume) as the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/aussiebroadwan/mailsig/internal/signature/app"
	"github.com/aussiebroadwan/mailsig/pkg/slogx"
)

var errUsage = errors.New("usage")

type command struct {
	summary string
	run     func(ctx context.Context, env *environment, args []string) error
}

var commands = map[string]command{
	"create-admin":     {"create an admin account", runCreateAdmin},
	"set-password":     {"set an admin account's password", runSetPassword},
	"import-templates": {"create or replace templates from a YAML file", runImportTemplates},
	"sync":             {"pull profiles from the directory", runSync},
	"sweep":            {"delete expired sessions", runSweep},
}

// environment is what every subcommand shares.
type environment struct {
	cfg    app.Config
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return errUsage
	}

	cfg := app.LoadConfig()
	env := &environment{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "sigadmin",
			Version: app.BuildVersion,
			Env:     cfg.Env,
			Level:   getLogLevel(cfg.LogLevel),
			Format:  "text",
			Output:  stderr,
		}),
		stdin:  stdin,
		stdout: stdout,
	}
	ctx = slogx.WithContext(ctx, env.logger)

	err := cmd.run(ctx, env, args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

// The tool prints its own results, so routine info logs are noise.
func getLogLevel(level string) string {
	if strings.EqualFold(level, "info") {
		return "warn"
	}
	return level
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: sigadmin <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-18s %s\n", name, commands[name].summary)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Every command accepts --database and --pepper; run a command with --help for its flags.")
}

// newFlagSet adds the flags every subcommand shares.
func newFlagSet(name string, env *environment) *pflag.FlagSet {
	fs := pflag.NewFlagSet("sigadmin "+name, pflag.ContinueOnError)
	fs.StringVar(&env.cfg.DatabaseFile, "database", env.cfg.DatabaseFile, "path to the SQLite database")
	fs.StringVar(&env.cfg.PepperFile, "pepper", env.cfg.PepperFile, "path to the password pepper file")
	return fs
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return nil
}

// readPassword returns the flag value, or the first line of stdin when the
// flag is "-" so passwords stay out of shell history.
func readPassword(flag string, stdin io.Reader) (string, error) {
	if flag != "-" {
		return flag, nil
	}
	raw, err := io.ReadAll(io.LimitReader(stdin, 4096))
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	line, _, _ := strings.Cut(string(raw), "\n")
	return strings.TrimRight(line, "\r"), nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
)

const usage = `usage: rendezvous <command> [flags]

commands:
  serve        run the HTTP API
  migrate      apply pending schema migrations
  add-member   register a member account

Run "rendezvous <command> --help" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := environment{stdout: os.Stdout, stderr: os.Stderr, lookup: os.LookupEnv}
	if err := run(ctx, os.Args[1:], env); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// environment carries the process surroundings so commands can be driven
// from tests.
type environment struct {
	stdout io.Writer
	stderr io.Writer
	lookup func(string) (string, bool)
}

func run(ctx context.Context, args []string, env environment) error {
	if len(args) == 0 {
		fmt.Fprint(env.stderr, usage)
		return errors.New("no command given")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "serve":
		return runServe(ctx, rest, env)
	case "migrate":
		return runMigrate(ctx, rest, env)
	case "add-member":
		return runAddMember(ctx, rest, env)
	case "help", "-h", "--help":
		fmt.Fprint(env.stdout, usage)
		return nil
	default:
		fmt.Fprint(env.stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configFile string
	envFile    string
}

func (c *commonFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&c.configFile, "config", "c", "", "YAML configuration file (default $RENDEZVOUS_CONFIG)")
	flags.StringVar(&c.envFile, "env-file", "", "dotenv file to read before the environment (default .env)")
}

func newFlagSet(name string, env environment) *pflag.FlagSet {
	flags := pflag.NewFlagSet("rendezvous "+name, pflag.ContinueOnError)
	flags.SetOutput(env.stderr)
	return flags
}

func runServe(ctx context.Context, args []string, env environment) error {
	var (
		common commonFlags
		port   int
	)
	flags := newFlagSet("serve", env)
	common.register(flags)
	flags.IntVarP(&port, "port", "p", 0, "listen port, overriding the configuration")
	if err := flags.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, common, env)
	if err != nil {
		return err
	}
	defer a.close()

	if port > 0 {
		a.cfg.HTTP.Port = port
	}
	return a.serve(ctx)
}

func runMigrate(ctx context.Context, args []string, env environment) error {
	var (
		common     commonFlags
		statusOnly bool
	)
	flags := newFlagSet("migrate", env)
	common.register(flags)
	flags.BoolVar(&statusOnly, "status", false, "report applied and pending migrations without applying them")
	if err := flags.Parse(args); err != nil {
		return err
	}

	a, err := openApp(ctx, common, env, !statusOnly)
	if err != nil {
		return err
	}
	defer a.close()

	status, err := a.storage.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	version := status.CurrentVersion
	if version == "" {
		version = "none"
	}
	fmt.Fprintf(env.stdout, "schema version: %s\n", version)
	fmt.Fprintf(env.stdout, "applied: %d\n", len(status.AppliedMigrations))
	fmt.Fprintf(env.stdout, "pending: %d\n", status.PendingCount)
	for _, m := range status.PendingMigrations {
		fmt.Fprintf(env.stdout, "  %s %s\n", m.Version, m.Description)
	}
	return nil
}

func runAddMember(ctx context.Context, args []string, env environment) error {
	var (
		common   commonFlags
		email    string
		name     string
		password string
		admin    bool
	)
	flags := newFlagSet("add-member", env)
	common.register(flags)
	flags.StringVar(&email, "email", "", "login email of the member")
	flags.StringVar(&name, "name", "", "display name")
	flags.StringVar(&password, "password", "", "initial password (default $RENDEZVOUS_MEMBER_PASSWORD)")
	flags.BoolVar(&admin, "admin", false, "grant site admin rights")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if password == "" {
		password, _ = env.lookup("RENDEZVOUS_MEMBER_PASSWORD")
	}

	var missing []string
	if strings.TrimSpace(email) == "" {
		missing = append(missing, "--email")
	}
	if strings.TrimSpace(name) == "" {
		missing = append(missing, "--name")
	}
	if password == "" {
		missing = append(missing, "--password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("add-member: missing %s", strings.Join(missing, ", "))
	}

	a, err := newApp(ctx, common, env)
	if err != nil {
		return err
	}
	defer a.close()

	member, err := a.addMember(ctx, email, name, password, admin)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "created member %s <%s>\n", member.ID, member.Email)
	return nil
}

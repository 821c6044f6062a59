// Package main contains the launchpad CLI. It is a thin shell over the core
// packages: every command maps directly onto one engine operation.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"launchpad/internal/config"
	"launchpad/internal/core"
	"launchpad/internal/diff"
	"launchpad/internal/driver"
	"launchpad/internal/introspect"
	"launchpad/internal/output"
	"launchpad/internal/registry"
	"launchpad/internal/runner"
	"launchpad/internal/schemafile"
)

var version = "development"

type rootFlags struct {
	configPath  string
	databaseURL string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:          "launchpad",
		Short:        "Schema lifecycle engine: declare, diff, migrate, query",
		Version:      version,
		SilenceUsage: true,
	}

	viper.SetEnvPrefix("LAUNCHPAD")
	viper.AutomaticEnv()

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to launchpad.toml")
	root.PersistentFlags().StringVar(&flags.databaseURL, "database-url", "", "Connection URL (postgres://, mysql://, sqlite://)")
	_ = viper.BindPFlag("CONFIG", root.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("DATABASE_URL", root.PersistentFlags().Lookup("database-url"))

	root.AddCommand(migrateCmd(flags))
	root.AddCommand(moduleCmd(flags))
	root.AddCommand(schemaCmd(flags))
	return root
}

// open loads the config and opens a driver for it. Flag values win over
// LAUNCHPAD_* environment variables, which win over the config file.
func open(flags *rootFlags) (*config.Config, *driver.Driver, error) {
	configPath := flags.configPath
	if configPath == "" {
		configPath = viper.GetString("CONFIG")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if url := viper.GetString("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if flags.databaseURL != "" {
		cfg.Database.URL = flags.databaseURL
	}
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("no connection URL; set --database-url, DATABASE_URL, or [database] url in launchpad.toml")
	}

	drv, err := driver.Open(driver.Config{
		URL:            cfg.Database.URL,
		Max:            cfg.Database.Max,
		IdleTimeout:    cfg.Database.IdleTimeout(),
		ConnectTimeout: cfg.Database.ConnectTimeout(),
		HealthCheck: driver.HealthCheckConfig{
			Enabled:    cfg.Database.HealthCheck.Enabled,
			IntervalMs: cfg.Database.HealthCheck.IntervalMs,
			TimeoutMs:  cfg.Database.HealthCheck.TimeoutMs,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, drv, nil
}

func newRunner(cfg *config.Config, drv *driver.Driver) *runner.Runner {
	r := runner.New(drv, cfg.Migrations.Dir)
	r.LedgerTable = cfg.Migrations.LedgerTable
	r.ModuleTable = cfg.Migrations.ModuleTable
	return r
}

func migrateCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, revert, and inspect file-based migrations",
	}
	cmd.AddCommand(migrateUpCmd(flags))
	cmd.AddCommand(migrateDownCmd(flags))
	cmd.AddCommand(migrateStatusCmd(flags))
	cmd.AddCommand(migrateVerifyCmd(flags))
	cmd.AddCommand(migrateCreateCmd(flags))
	cmd.AddCommand(migrateModulesCmd(flags))
	return cmd
}

func migrateUpCmd(flags *rootFlags) *cobra.Command {
	opts := runner.UpOptions{}
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, drv, err := open(flags)
			if err != nil {
				return err
			}
			defer func() { _ = drv.Close() }()

			records, err := newRunner(cfg, drv).Up(cmd.Context(), opts)
			if err != nil {
				return err
			}
			reportRecords(records, opts.DryRun, "applied")
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Steps, "steps", 0, "Apply at most N migrations")
	cmd.Flags().Int64Var(&opts.ToVersion, "to-version", 0, "Stop after this version")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the plan without executing")
	cmd.Flags().StringVar(&opts.TemplateKey, "template-key", "", "Apply into this template partition")
	cmd.Flags().StringVar(&opts.Module, "module", "", "Restrict to one module")
	return cmd
}

func migrateDownCmd(flags *rootFlags) *cobra.Command {
	opts := runner.DownOptions{}
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Revert applied migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, drv, err := open(flags)
			if err != nil {
				return err
			}
			defer func() { _ = drv.Close() }()

			records, err := newRunner(cfg, drv).Down(cmd.Context(), opts)
			if err != nil {
				return err
			}
			reportRecords(records, opts.DryRun, "reverted")
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Steps, "steps", 0, "Revert at most N migrations (default 1)")
	cmd.Flags().Int64Var(&opts.ToVersion, "to-version", 0, "Revert everything above this version")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the plan without executing")
	cmd.Flags().StringVar(&opts.TemplateKey, "template-key", "", "Revert from this template partition")
	return cmd
}

func reportRecords(records []*core.MigrationRecord, dryRun bool, verb string) {
	if len(records) == 0 {
		pterm.Info.Println("nothing to do")
		return
	}
	for _, rec := range records {
		if dryRun {
			pterm.Info.Printfln("would be %s: %d__%s", verb, rec.Version, rec.Name)
			continue
		}
		pterm.Success.Printfln("%s %d__%s", verb, rec.Version, rec.Name)
	}
}

func migrateStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending and applied migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, drv, err := open(flags)
			if err != nil {
				return err
			}
			defer func() { _ = drv.Close() }()

			entries, err := newRunner(cfg, drv).Status(cmd.Context())
			if err != nil {
				return err
			}

			rows := pterm.TableData{{"Version", "Name", "Module", "State", "Checksum"}}
			for _, e := range entries {
				state := "pending"
				if e.Applied {
					state = "applied " + e.AppliedAt.Format("2006-01-02 15:04:05")
				}
				checksum := "ok"
				if !e.ChecksumOK {
					checksum = "MISMATCH"
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", e.Version), e.Name, e.ModuleName, state, checksum,
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		},
	}
}

func migrateVerifyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check applied migrations against their files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, drv, err := open(flags)
			if err != nil {
				return err
			}
			defer func() { _ = drv.Close() }()

			if err := newRunner(cfg, drv).Verify(cmd.Context()); err != nil {
				return err
			}
			pterm.Success.Println("all applied migrations match their files")
			return nil
		},
	}
}

func migrateCreateCmd(flags *rootFlags) *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Scaffold a new migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			r := runner.New(nil, cfg.Migrations.Dir)
			path, err := r.Create(args[0], module)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("created %s", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&module, "module", "core", "Module directory for the new migration")
	return cmd
}

func migrateModulesCmd(flags *rootFlags) *cobra.Command {
	opts := runner.UpOptions{}
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Apply all registered modules in dependency order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, drv, err := open(flags)
			if err != nil {
				return err
			}
			defer func() { _ = drv.Close() }()

			records, err := newRunner(cfg, drv).UpModules(cmd.Context(), opts)
			if err != nil {
				return err
			}
			reportRecords(records, opts.DryRun, "applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the plan without executing")
	return cmd
}

func moduleCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "module",
		Short: "Manage migration modules",
	}
	cmd.AddCommand(moduleListCmd(flags))
	cmd.AddCommand(moduleRegisterCmd(flags))
	return cmd
}

func moduleListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered modules in dependency order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, drv, err := open(flags)
			if err != nil {
				return err
			}
			defer func() { _ = drv.Close() }()

			r := newRunner(cfg, drv)
			modules, err := r.ListModules(cmd.Context())
			if err != nil {
				return err
			}
			order, err := runner.TopoSort(modules)
			if err != nil {
				return err
			}

			byName := make(map[string]*core.Module, len(modules))
			for _, m := range modules {
				byName[m.Name] = m
			}
			rows := pterm.TableData{{"Name", "Version", "Dependencies"}}
			for _, name := range order {
				m := byName[name]
				rows = append(rows, []string{m.Name, m.Version, strings.Join(m.Dependencies, ", ")})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		},
	}
}

func moduleRegisterCmd(flags *rootFlags) *cobra.Command {
	m := &core.Module{}
	var deps string
	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register or update a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, drv, err := open(flags)
			if err != nil {
				return err
			}
			defer func() { _ = drv.Close() }()

			m.Name = args[0]
			if deps != "" {
				for _, d := range strings.Split(deps, ",") {
					m.Dependencies = append(m.Dependencies, strings.TrimSpace(d))
				}
			}
			if err := newRunner(cfg, drv).RegisterModule(cmd.Context(), m); err != nil {
				return err
			}
			pterm.Success.Printfln("registered module %s", m.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&m.DisplayName, "display-name", "", "Human-readable module name")
	cmd.Flags().StringVar(&m.Description, "description", "", "What the module provides")
	cmd.Flags().StringVar(&m.Version, "module-version", "", "Module version")
	cmd.Flags().StringVar(&m.MigrationPrefix, "migration-prefix", "", "Prefix for the module's migration files")
	cmd.Flags().StringVar(&deps, "depends-on", "", "Comma-separated module dependencies")
	return cmd
}

func schemaCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Register declared schemas",
	}
	cmd.AddCommand(schemaRegisterCmd(flags))
	cmd.AddCommand(schemaDiffCmd(flags))
	return cmd
}

func schemaRegisterCmd(flags *rootFlags) *cobra.Command {
	var (
		appID         string
		schemaName    string
		schemaVersion string
		force         bool
	)
	cmd := &cobra.Command{
		Use:   "register <schema-file>",
		Short: "Validate a declared schema and reconcile the database to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := schemafile.Load(args[0])
			if err != nil {
				return err
			}
			cfg, drv, err := open(flags)
			if err != nil {
				return err
			}
			defer func() { _ = drv.Close() }()

			reg := registry.New(drv)
			reg.Table = cfg.Registry.Table
			reg.Force = force
			results, err := reg.Register(cmd.Context(), appID, schemaName, schemaVersion, schema)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				pterm.Info.Println("schema unchanged")
				return nil
			}
			for _, res := range results {
				pterm.Success.Printfln("%s (%s)", res.Name, res.Duration)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&appID, "app-id", "", "Application id")
	cmd.Flags().StringVar(&schemaName, "schema-name", "default", "Logical schema name")
	cmd.Flags().StringVar(&schemaVersion, "schema-version", "1", "Declared schema version")
	cmd.Flags().BoolVar(&force, "force", false, "Apply breaking changes")
	_ = cmd.MarkFlagRequired("app-id")
	return cmd
}

func schemaDiffCmd(flags *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "diff <schema-file>",
		Short: "Diff a declared schema against the live database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := schemafile.Load(args[0])
			if err != nil {
				return err
			}
			_, drv, err := open(flags)
			if err != nil {
				return err
			}
			defer func() { _ = drv.Close() }()

			live, err := introspect.Tables(cmd.Context(), drv, drv.Dialect(), introspect.Options{})
			if err != nil {
				return err
			}
			current := introspect.ToSchemaDefinition(live)

			result, err := diff.Diff(current, schema, drv.Dialect(), diff.Options{})
			if err != nil {
				return err
			}
			formatter, err := output.NewFormatter(format)
			if err != nil {
				return err
			}
			rendered, err := formatter.FormatDiff(result)
			if err != nil {
				return err
			}
			fmt.Print(rendered)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: human, json, or sql")
	return cmd
}

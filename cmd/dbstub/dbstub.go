package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"benritz/dbstub/internal/config"
	"benritz/dbstub/internal/generate"
	"benritz/dbstub/internal/render"
	"benritz/dbstub/internal/source"
)

var (
	configPath      string
	envFile         string
	dialectName     string
	sourceURL       string
	database        string
	schemaName      string
	tables          []string
	skipTables      []string
	format          string
	directory       string
	camelCase       bool
	camelCaseFN     bool
	spaces          bool
	indentation     int
	typeScript      bool
	eslint          bool
	freezeTableName bool
	strict          bool
	workers         int
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "dbstub",
	Short: "Generate model, swagger or joi stubs from a database schema",
	Long: `Reads the tables, columns and foreign keys of a MySQL, MariaDB, Postgres,
SQLite or SQL Server database and writes one stub file per table.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "Config file")
	f.StringVar(&envFile, "env-file", ".env", "Environment file loaded before the config")
	f.StringVarP(&dialectName, "dialect", "e", "", "Database dialect: "+strings.Join(source.Dialects, ", "))
	f.StringVarP(&sourceURL, "url", "u", "", "Database connection URL (file path for sqlite)")
	f.StringVarP(&database, "database", "d", "", "Database name, defaults to the one in the URL")
	f.StringVarP(&schemaName, "schema", "s", "", "Schema to read tables from (postgres, mssql)")
	f.StringSliceVarP(&tables, "tables", "t", nil, "Only these tables")
	f.StringSliceVarP(&skipTables, "skip-tables", "T", nil, "Skip these tables")
	f.StringVarP(&format, "format", "f", string(render.FormatModel), "Output format: model, swagger or joi")
	f.StringVarP(&directory, "directory", "o", "", "Output directory; print to stdout when empty")
	f.BoolVar(&camelCase, "camel-case", false, "Camel case table and field names")
	f.BoolVar(&camelCaseFN, "camel-case-file-name", false, "Camel case file names")
	f.BoolVar(&spaces, "spaces", false, "Indent with spaces instead of tabs")
	f.IntVar(&indentation, "indentation", 1, "Number of spaces or tabs to indent with")
	f.BoolVar(&typeScript, "typescript", false, "Write .ts files and type declarations")
	f.BoolVar(&eslint, "eslint", false, "Run eslint --fix over the output directory")
	f.BoolVar(&freezeTableName, "freeze-table-name", true, "Keep table names as they are instead of singularizing")
	f.BoolVar(&strict, "strict", false, "Fail when any table cannot be read")
	f.IntVarP(&workers, "workers", "w", 0, "Tables read or written at once")
	f.BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func flagOptions(cmd *cobra.Command) []generate.Option {
	changed := cmd.Flags().Changed
	opts := []generate.Option{}

	if dialectName != "" {
		opts = append(opts, generate.WithDialect(dialectName))
	}
	if sourceURL != "" {
		opts = append(opts, generate.WithURL(sourceURL))
	}
	if database != "" {
		opts = append(opts, generate.WithDatabase(database))
	}
	if schemaName != "" {
		opts = append(opts, generate.WithSchema(schemaName))
	}
	if changed("tables") {
		opts = append(opts, generate.WithTables(tables))
	}
	if changed("skip-tables") {
		opts = append(opts, generate.WithSkipTables(skipTables))
	}
	if changed("format") || configPath == "" {
		opts = append(opts, generate.WithFormat(render.Format(format)))
	}
	if directory != "" {
		opts = append(opts, generate.WithDirectory(directory))
	}
	if changed("camel-case") {
		opts = append(opts, generate.WithCamelCase(camelCase))
	}
	if changed("camel-case-file-name") {
		opts = append(opts, generate.WithCamelCaseForFileName(camelCaseFN))
	}
	if changed("spaces") {
		opts = append(opts, generate.WithSpaces(spaces))
	}
	if changed("indentation") {
		opts = append(opts, generate.WithIndentation(indentation))
	}
	if changed("typescript") {
		opts = append(opts, generate.WithTypeScript(typeScript))
	}
	if changed("eslint") {
		opts = append(opts, generate.WithESLint(eslint))
	}
	if changed("freeze-table-name") {
		opts = append(opts, generate.WithFreezeTableName(freezeTableName))
	}
	if changed("strict") {
		opts = append(opts, generate.WithStrict(strict))
	}
	if workers != 0 {
		opts = append(opts, generate.WithWorkers(workers))
	}
	return opts
}

func run(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := config.LoadEnv(envFile); err != nil {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	opts := []generate.Option{generate.WithLogger(logger)}

	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		opts = append(opts, cfg.Options()...)
	}
	opts = append(opts, flagOptions(cmd)...)

	gen, err := generate.New(opts...)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out, err := gen.Run(ctx)
	if err != nil {
		return fmt.Errorf("generation error: %w", err)
	}

	names := make([]string, 0, len(out))
	for name := range out {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "// %s\n%s\n", name, out[name])
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

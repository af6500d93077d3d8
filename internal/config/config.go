package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"benritz/dbstub/internal/generate"
	"benritz/dbstub/internal/render"
)

type Root struct {
	Source     SourceSection `yaml:"source"`
	Tables     []string      `yaml:"tables"`
	SkipTables []string      `yaml:"skip_tables"`
	Output     OutputSection `yaml:"output"`
	Strict     bool          `yaml:"strict"`
	Workers    int           `yaml:"workers"`
}

type SourceSection struct {
	Dialect  string `yaml:"dialect"`
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
	Schema   string `yaml:"schema"`
}

type OutputSection struct {
	Format               string `yaml:"format"`
	Directory            string `yaml:"directory"`
	CamelCase            bool   `yaml:"camel_case"`
	CamelCaseForFileName bool   `yaml:"camel_case_for_file_name"`
	Spaces               bool   `yaml:"spaces"`
	Indentation          *int   `yaml:"indentation"`
	TypeScript           bool   `yaml:"typescript"`
	ESLint               bool   `yaml:"eslint"`
	FreezeTableName      *bool  `yaml:"freeze_table_name"`
}

// LoadEnv loads .env style files into the environment. Missing files are
// ignored; with no arguments ".env" is tried.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func LoadFile(path string) (*Root, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return load(raw, filepath.Dir(path))
}

// Load reads a config document. Includes resolve against the working directory.
func Load(r io.Reader) (*Root, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return load(raw, ".")
}

func load(raw []byte, baseDir string) (*Root, error) {
	expanded, err := ExpandIncludes(raw, baseDir)
	if err != nil {
		return nil, err
	}
	if err := validateBytes(expanded); err != nil {
		return nil, err
	}
	var cfg Root
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	expandEnv(&cfg)
	return &cfg, nil
}

func expandEnv(cfg *Root) {
	cfg.Source.URL = os.ExpandEnv(cfg.Source.URL)
	cfg.Source.Database = os.ExpandEnv(cfg.Source.Database)
	cfg.Output.Directory = os.ExpandEnv(cfg.Output.Directory)
}

// Options converts the config into generate.Options.
func (c *Root) Options() []generate.Option {
	opts := []generate.Option{
		generate.WithDialect(c.Source.Dialect),
		generate.WithURL(c.Source.URL),
		generate.WithDatabase(c.Source.Database),
		generate.WithSchema(c.Source.Schema),
		generate.WithTables(c.Tables),
		generate.WithSkipTables(c.SkipTables),
		generate.WithFormat(render.Format(c.Output.Format)),
		generate.WithDirectory(c.Output.Directory),
		generate.WithCamelCase(c.Output.CamelCase),
		generate.WithCamelCaseForFileName(c.Output.CamelCaseForFileName),
		generate.WithSpaces(c.Output.Spaces),
		generate.WithTypeScript(c.Output.TypeScript),
		generate.WithESLint(c.Output.ESLint),
		generate.WithStrict(c.Strict),
		generate.WithWorkers(c.Workers),
	}
	if c.Output.Indentation != nil {
		opts = append(opts, generate.WithIndentation(*c.Output.Indentation))
	}
	if c.Output.FreezeTableName != nil {
		opts = append(opts, generate.WithFreezeTableName(*c.Output.FreezeTableName))
	}
	return opts
}

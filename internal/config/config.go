// Package config loads converter settings from defaults, an optional YAML
// file, NSX_ environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathname"
	"github.com/sleroq/nsx-to-markdown/internal/app/pathsyntax"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "NSX"
	DefaultEnvFile = ".env"

	KeyOutput            = "output"
	KeyFormat            = "format"
	KeyLogLevel          = "log_level"
	KeyPathSyntax        = "path_syntax"
	KeyAbsoluteLinks     = "absolute_links"
	KeyAttachmentFolder  = "attachment_folder"
	KeyPandocPath        = "pandoc_path"
	KeyFrontMatter       = "front_matter"
	KeyRawRecords        = "raw_records"
	KeyIgnoreLinks       = "ignore_links"
	KeyMaxFileNameLength = "max_file_name_length"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Output            string   `mapstructure:"output" yaml:"output"`
	Format            string   `mapstructure:"format" yaml:"format"`
	LogLevel          string   `mapstructure:"log_level" yaml:"log_level"`
	PathSyntax        string   `mapstructure:"path_syntax" yaml:"path_syntax"`
	AbsoluteLinks     bool     `mapstructure:"absolute_links" yaml:"absolute_links"`
	AttachmentFolder  string   `mapstructure:"attachment_folder" yaml:"attachment_folder"`
	PandocPath        string   `mapstructure:"pandoc_path" yaml:"pandoc_path"`
	FrontMatter       bool     `mapstructure:"front_matter" yaml:"front_matter"`
	RawRecords        bool     `mapstructure:"raw_records" yaml:"raw_records"`
	IgnoreLinks       []string `mapstructure:"ignore_links" yaml:"ignore_links"`
	MaxFileNameLength int      `mapstructure:"max_file_name_length" yaml:"max_file_name_length"`
}

func Default() Config {
	return Config{
		Output:            "notes",
		Format:            FormatGFM,
		LogLevel:          "info",
		PathSyntax:        pathsyntax.ModeAuto,
		AttachmentFolder:  "attachments",
		PandocPath:        "pandoc",
		FrontMatter:       true,
		RawRecords:        true,
		IgnoreLinks:       []string{},
		MaxFileNameLength: pathname.DefaultOptions().MaxLength,
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"output":            KeyOutput,
	"format":            KeyFormat,
	"log-level":         KeyLogLevel,
	"path-syntax":       KeyPathSyntax,
	"absolute-links":    KeyAbsoluteLinks,
	"attachment-folder": KeyAttachmentFolder,
	"pandoc":            KeyPandocPath,
	"front-matter":      KeyFrontMatter,
	"raw-records":       KeyRawRecords,
	"ignore-link":       KeyIgnoreLinks,
}

// LoadEnv reads a dotenv file into the process environment. A missing file
// is not an error; variables already set are kept.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load resolves the configuration. path may be empty, in which case only
// defaults, environment and flags apply; a named file that does not exist
// is not an error either. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault(KeyOutput, def.Output)
	v.SetDefault(KeyFormat, def.Format)
	v.SetDefault(KeyLogLevel, def.LogLevel)
	v.SetDefault(KeyPathSyntax, def.PathSyntax)
	v.SetDefault(KeyAbsoluteLinks, def.AbsoluteLinks)
	v.SetDefault(KeyAttachmentFolder, def.AttachmentFolder)
	v.SetDefault(KeyPandocPath, def.PandocPath)
	v.SetDefault(KeyFrontMatter, def.FrontMatter)
	v.SetDefault(KeyRawRecords, def.RawRecords)
	v.SetDefault(KeyIgnoreLinks, def.IgnoreLinks)
	v.SetDefault(KeyMaxFileNameLength, def.MaxFileNameLength)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyLogLevel, EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate normalizes the configuration in place and rejects unusable values.
func (c *Config) Validate() error {
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if _, err := LookupFormat(c.Format); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := pathsyntax.Resolve(c.PathSyntax); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.MaxFileNameLength < 8 {
		return fmt.Errorf("%w: max_file_name_length must be at least 8, got %d", ErrInvalidConfig, c.MaxFileNameLength)
	}
	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("%w: output directory is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.AttachmentFolder) == "" {
		c.AttachmentFolder = Default().AttachmentFolder
	}
	opts := pathname.DefaultOptions()
	opts.AllowSpaces = true
	c.AttachmentFolder = pathname.CleanDirectoryName(c.AttachmentFolder, opts)
	return nil
}

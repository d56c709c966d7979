package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/OFFIS-RIT/matchgraph/internal/util"
	"github.com/OFFIS-RIT/matchgraph/pkg/extract"
	"github.com/OFFIS-RIT/matchgraph/pkg/layout"
	"github.com/OFFIS-RIT/matchgraph/pkg/loader"
	"github.com/OFFIS-RIT/matchgraph/pkg/loader/xlsx"
	"github.com/OFFIS-RIT/matchgraph/pkg/render"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"
)

const (
	DefaultInput = "SSIP Project Results.xlsx"
	DefaultEdges = "network_edges.csv"
	DefaultHTML  = "network_3d.html"
	DefaultPort  = "8080"
)

type S3 struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint" validate:"omitempty,url"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	// Prefix is prepended to the keys of uploaded artifacts.
	Prefix string `yaml:"prefix"`
}

type Config struct {
	Input string `yaml:"input" validate:"required"`
	Sheet string `yaml:"sheet" validate:"required"`
	Edges string `yaml:"edges" validate:"required"`
	HTML  string `yaml:"html" validate:"required"`

	Columns extract.ColumnRoles `yaml:"columns"`
	Layout  layout.Options      `yaml:"layout"`
	Style   render.Style        `yaml:"style"`
	Render  render.Options      `yaml:"render"`

	Upload bool   `yaml:"upload"`
	Debug  bool   `yaml:"debug"`
	Port   string `yaml:"port" validate:"required,numeric"`
	S3     S3     `yaml:"s3"`
}

// Default returns the configuration that reproduces the published artifact.
func Default() Config {
	return Config{
		Input:   DefaultInput,
		Sheet:   xlsx.DefaultSheetPath,
		Edges:   DefaultEdges,
		HTML:    DefaultHTML,
		Columns: extract.DefaultColumnRoles(),
		Layout:  layout.DefaultOptions(),
		Style:   render.DefaultStyle(),
		Port:    DefaultPort,
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and MATCHGRAPH_* environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	util.LoadEnv()

	cfg := Default()
	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	cfg.Columns = cfg.Columns.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Input = util.GetEnvString("MATCHGRAPH_INPUT", cfg.Input)
	cfg.Sheet = util.GetEnvString("MATCHGRAPH_SHEET", cfg.Sheet)
	cfg.Edges = util.GetEnvString("MATCHGRAPH_EDGES", cfg.Edges)
	cfg.HTML = util.GetEnvString("MATCHGRAPH_HTML", cfg.HTML)
	cfg.Layout.Seed = int64(util.GetEnvInt("MATCHGRAPH_SEED", int(cfg.Layout.Seed)))
	cfg.Layout.Iterations = util.GetEnvInt("MATCHGRAPH_ITERATIONS", cfg.Layout.Iterations)
	cfg.Layout.K = util.GetEnvFloat("MATCHGRAPH_LAYOUT_K", cfg.Layout.K)
	cfg.Layout.Scale = util.GetEnvFloat("MATCHGRAPH_LAYOUT_SCALE", cfg.Layout.Scale)
	cfg.Upload = util.GetEnvBool("MATCHGRAPH_UPLOAD", cfg.Upload)
	cfg.Debug = util.GetEnvBool("DEBUG", cfg.Debug)
	cfg.Port = util.GetEnvString("PORT", cfg.Port)

	cfg.S3.Region = util.GetEnvString("AWS_REGION", cfg.S3.Region)
	cfg.S3.Endpoint = util.GetEnvString("AWS_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.AccessKey = util.GetEnvString("AWS_ACCESS_KEY", cfg.S3.AccessKey)
	cfg.S3.SecretKey = util.GetEnvString("AWS_SECRET_KEY", cfg.S3.SecretKey)
	cfg.S3.Bucket = util.GetEnvString("AWS_BUCKET", cfg.S3.Bucket)
}

// Validate checks field constraints and the combinations the pipeline relies
// on.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	in, err := loader.ParseLocation(c.Input)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Upload && c.S3.Bucket == "" {
		return errors.New("invalid config: upload requires an S3 bucket")
	}
	if in.IsRemote() && c.S3.Region == "" {
		return errors.New("invalid config: reading from S3 requires a region")
	}
	return nil
}

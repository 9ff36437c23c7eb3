package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/codetree"
	"github.com/brettbedarf/codetree/config"
	"github.com/brettbedarf/codetree/internal/util"
	"github.com/brettbedarf/codetree/providers"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	verbose   int
	encoding  string
	sourceDef string
)

var rootCmd = &cobra.Command{
	Use:   "codetree",
	Short: "Browse and edit source trees on local disk, S3 or HTTP",
	Long: `codetree lazily loads directory trees from a storage source and reads or
rewrites text documents in them, preserving or normalising line endings.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a yaml, json or toml config file")
	rootCmd.PersistentFlags().IntVarP(&verbose, "verbose", "v", config.InfoVerbose,
		"Log verbosity level between 1 (error) and 5 (trace)")
	rootCmd.PersistentFlags().StringVar(&encoding, "encoding", "", "Document encoding label (default utf-8)")
	rootCmd.PersistentFlags().StringVar(&sourceDef, "source", "",
		`Source definition as JSON or a path to a JSON file, e.g. {"type":"s3","bucket":"b"}`)

	rootCmd.AddCommand(treeCmd, catCmd, normalizeCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges the config file and global flags over the defaults and
// initializes logging
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	override := &config.ConfigOverride{}
	if cfgFile != "" {
		p, err := homedir.Expand(cfgFile)
		if err != nil {
			return nil, err
		}
		if override, err = config.LoadConfigOverrideFile(p); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("verbose") || override.LogLvl == nil {
		override.LogLvl = &verbose
	}
	if cmd.Flags().Changed("encoding") {
		override.Encoding = &encoding
	}

	cfg := config.NewConfig(override)
	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")
	logger.Debug().
		Str("config", cfgFile).
		Int("max_depth", cfg.MaxDepth).
		Str("encoding", cfg.Encoding).
		Msg("Configuration loaded")
	return cfg, nil
}

// sourceJSON returns --source as raw JSON, reading it from a file unless it
// is an inline object
func sourceJSON() ([]byte, error) {
	def := strings.TrimSpace(sourceDef)
	if strings.HasPrefix(def, "{") {
		return []byte(def), nil
	}
	p, err := homedir.Expand(def)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	return data, nil
}

// openProvider returns the --source provider or a local one rooted at root
func openProvider(ctx context.Context, root string) (codetree.StorageProvider, error) {
	providers.RegisterBuiltins()
	if sourceDef != "" {
		raw, err := sourceJSON()
		if err != nil {
			return nil, err
		}
		return providers.FromJSON(ctx, raw)
	}
	if root == "" {
		root = "."
	}
	src := &providers.LocalSource{Root: root}
	return src.Provider(ctx)
}

// openDocumentProvider resolves a document argument. With --source the
// argument is an entry path in that source, otherwise it is a local file
// and the provider is rooted at its directory.
func openDocumentProvider(ctx context.Context, arg string) (codetree.StorageProvider, string, error) {
	if sourceDef != "" {
		provider, err := openProvider(ctx, "")
		return provider, arg, err
	}
	p, err := homedir.Expand(arg)
	if err != nil {
		return nil, "", err
	}
	if p, err = filepath.Abs(p); err != nil {
		return nil, "", err
	}
	provider, err := openProvider(ctx, filepath.Dir(p))
	return provider, "/" + filepath.Base(p), err
}

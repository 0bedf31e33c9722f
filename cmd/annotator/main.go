// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the annotator CLI.
// The CLI drives the annotation engine against a local SQLite store or,
// when api.url is configured, against the annotation REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/evidence-annotator/internal/annotation"
	"github.com/pdiddy/evidence-annotator/internal/apiclient"
	"github.com/pdiddy/evidence-annotator/internal/secrets"
	"github.com/pdiddy/evidence-annotator/internal/store"
	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const tokenEnv = "ANNOTATOR_API_TOKEN"

var (
	// loadedSecrets holds credentials loaded from .secrets/ at startup.
	loadedSecrets secrets.Secrets

	logger = zerolog.Nop()
)

// rootCmd is the base command for the annotator CLI.
var rootCmd = &cobra.Command{
	Use:   "annotator",
	Short: "Annotate documents with schema-driven knowledge units",
	Long: `annotator attaches structured knowledge units to documents and records
highlighted spans of document text as evidence for each field.

Documents and schemas live in a local SQLite store (documents import,
schemas import) or behind the annotation API when api.url is set. Every
editing command loads the document's knowledge units, applies one change,
and saves the affected unit back.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(os.Stderr, viper.GetString("log_level"))

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./annotator.yaml or ~/.config/annotator/annotator.yaml)")
	rootCmd.PersistentFlags().String("store-dir", "", "directory holding the SQLite store and exports (default annotations)")
	rootCmd.PersistentFlags().String("api-url", "", "annotation API base URL; empty uses the local store")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default info)")

	viper.BindPFlag("store.dir", rootCmd.PersistentFlags().Lookup("store-dir"))
	viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.SetDefault("store.dir", "annotations")
	viper.SetDefault("store.documents_dir", "documents")
	viper.SetDefault("store.include", "**/*")
	viper.SetDefault("store.page_size", 10)
	viper.SetDefault("api.timeout", 30*time.Second)
	viper.SetDefault("api.user_agent", "evidence-annotator/"+version)
	viper.SetDefault("api.max_retries", 5)
	viper.SetDefault("selection.debounce", 300*time.Millisecond)
	viper.SetDefault("log_level", "info")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("annotator")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "annotator"))
		}
	}

	viper.SetEnvPrefix("ANNOTATOR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).With().Timestamp().Logger()
}

// annotatorConfig assembles settings from flags, environment, config
// file, and defaults.
func annotatorConfig() types.AnnotatorConfig {
	return types.AnnotatorConfig{
		Store: types.StoreConfig{
			Dir:          viper.GetString("store.dir"),
			DocumentsDir: viper.GetString("store.documents_dir"),
			Include:      viper.GetString("store.include"),
			PageSize:     viper.GetInt("store.page_size"),
		},
		API: types.APIConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("api.timeout"),
				UserAgent: viper.GetString("api.user_agent"),
			},
			URL:        viper.GetString("api.url"),
			Token:      loadedSecrets.Get(secrets.APIToken, tokenEnv),
			MaxRetries: viper.GetInt("api.max_retries"),
		},
		Selection: types.SelectionConfig{
			Debounce: viper.GetDuration("selection.debounce"),
		},
		LogLevel: viper.GetString("log_level"),
	}
}

// openStore opens the local SQLite store. Commands that manage documents
// and schemas directly need it regardless of api.url.
func openStore(cfg types.AnnotatorConfig) (*store.Store, error) {
	return store.NewStore(cfg.Store, store.WithLogger(logger))
}

// openBackend returns the configured backend and a function releasing it.
func openBackend(cfg types.AnnotatorConfig) (annotation.Backend, func(), error) {
	if cfg.API.URL != "" {
		c, err := apiclient.New(cfg.API, apiclient.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		logger.Debug().Str("url", cfg.API.URL).Msg("using annotation API")
		return c, func() {}, nil
	}
	s, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

// session is an engine bound to a backend with its catalog loaded.
type session struct {
	cfg     types.AnnotatorConfig
	backend annotation.Backend
	engine  *annotation.Engine
	close   func()
}

// openSession loads the catalog and, when documentID is non-empty, opens
// that document with its knowledge units.
func openSession(ctx context.Context, documentID string) (*session, error) {
	cfg := annotatorConfig()
	backend, closeFn, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	engine := annotation.New(annotation.WithBackend(backend), annotation.WithLogger(logger))
	if err := engine.LoadCatalog(ctx); err != nil {
		closeFn()
		return nil, err
	}
	if documentID != "" {
		if err := engine.OpenDocument(ctx, documentID); err != nil {
			closeFn()
			return nil, err
		}
	}
	return &session{cfg: cfg, backend: backend, engine: engine, close: closeFn}, nil
}

// findDocument opens annotated documents page by page until found reports
// true, and returns the id of that document. The API has no reverse index
// from units or highlights to documents.
func findDocument(ctx context.Context, s *session, what string, found func() bool) (string, error) {
	limit := s.cfg.Store.PageSize
	if limit <= 0 {
		limit = 10
	}
	seen := make(map[string]bool)
	for page := firstPage(s.cfg); ; page++ {
		more, err := s.engine.LoadDocuments(ctx, page, limit)
		if err != nil {
			return "", err
		}
		for _, d := range s.engine.Documents() {
			if seen[d.ID] || !d.HasAnnotations {
				continue
			}
			seen[d.ID] = true
			if err := s.engine.OpenDocument(ctx, d.ID); err != nil {
				return "", err
			}
			if found() {
				return d.ID, nil
			}
		}
		if !more {
			return "", fmt.Errorf("%s not found", what)
		}
	}
}

// firstPage is 1 for the local store and 0 for the API, which counts
// pages from zero.
func firstPage(cfg types.AnnotatorConfig) int {
	if cfg.API.URL != "" {
		return 0
	}
	return 1
}

// openUnitSession opens the session for the document holding kuID. The
// --document flag skips the lookup.
func openUnitSession(cmd *cobra.Command, kuID string) (*session, error) {
	return openLocatedSession(cmd, "knowledge unit "+kuID, func(e *annotation.Engine) bool {
		_, ok := e.KnowledgeUnit(kuID)
		return ok
	})
}

// openHighlightSession opens the session for the document holding a
// highlight.
func openHighlightSession(cmd *cobra.Command, highlightID string) (*session, error) {
	return openLocatedSession(cmd, "highlight "+highlightID, func(e *annotation.Engine) bool {
		_, ok := e.FindFieldByHighlightID(highlightID)
		return ok
	})
}

func openLocatedSession(cmd *cobra.Command, what string, has func(*annotation.Engine) bool) (*session, error) {
	ctx := cmd.Context()
	docID, _ := cmd.Flags().GetString("document")
	s, err := openSession(ctx, docID)
	if err != nil {
		return nil, err
	}
	if docID == "" {
		docID, err = findDocument(ctx, s, what, func() bool { return has(s.engine) })
		if err != nil {
			s.close()
			return nil, err
		}
		s.engine.SelectDocument(docID)
	}
	if !has(s.engine) {
		s.close()
		return nil, fmt.Errorf("%s not found in document %s", what, docID)
	}
	return s, nil
}

var errNotChanged = errors.New("nothing changed")

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/matsen/citescrape/internal/arxiv"
	"github.com/matsen/citescrape/internal/config"
	"github.com/matsen/citescrape/internal/crossref"
	"github.com/matsen/citescrape/internal/doctype"
	"github.com/matsen/citescrape/internal/fetch"
	"github.com/matsen/citescrape/internal/library"
	"github.com/matsen/citescrape/internal/logging"
	"github.com/matsen/citescrape/internal/resilience"
)

// mustLoadConfig loads the global config or exits with ExitConfigError.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// newLogger builds the logger from config, letting flags override the level.
func newLogger(cfg *config.Config) zerolog.Logger {
	lc := logging.DefaultConfig()
	lc.Level = logLevel(cfg.LogLevel)
	if cfg.LogFile != "" {
		lc.Output = cfg.LogFile
	}
	return logging.New(lc)
}

func logLevel(configured string) string {
	switch {
	case verboseFlag:
		return "debug"
	case quietFlag:
		return "error"
	case logLevelFlag != "":
		return logLevelFlag
	default:
		return configured
	}
}

// libraryRoot picks the library directory: --library, then library_path,
// then the nearest enclosing library of the working directory.
func libraryRoot(cfg *config.Config) (string, error) {
	if libraryFlag != "" {
		return config.ExpandPath(libraryFlag), nil
	}
	if cfg.LibraryPath != "" {
		return cfg.LibraryPath, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return config.FindLibrary(cwd)
}

// mustOpenLibrary opens the library or exits with ExitConfigError.
func mustOpenLibrary(cfg *config.Config, logger zerolog.Logger) *library.Library {
	root, err := libraryRoot(cfg)
	if err != nil {
		exitWithError(ExitConfigError, "%s", config.HelpfulConfigMessage())
	}
	lib, err := library.Open(root,
		library.WithLogger(logger),
		library.WithPrompter(library.StdinPrompter(os.Stdin, os.Stderr)),
	)
	if err != nil {
		if errors.Is(err, library.ErrNotLibrary) {
			exitWithError(ExitConfigError, "%v\n\n%s", err, config.HelpfulConfigMessage())
		}
		exitWithError(ExitConfigError, "opening library: %v", err)
	}
	return lib
}

// pipeline holds the wired collaborators for commands that resolve,
// download or enrich documents.
type pipeline struct {
	registry   *doctype.Registry
	services   *doctype.Services
	downloader *fetch.Downloader
	logger     zerolog.Logger
}

// newPipeline wires the Crossref, arXiv and download clients behind one
// retry and circuit-breaker policy.
func newPipeline(cfg *config.Config, logger zerolog.Logger) *pipeline {
	exec := resilience.NewExecutor(resilience.FromConfig(cfg), logger)

	crossrefOpts := []crossref.ClientOption{
		crossref.WithMailto(cfg.CrossrefMailto),
		crossref.WithRateLimit(cfg.RateLimit),
		crossref.WithExecutor(exec),
		crossref.WithLogger(logger),
	}
	arxivOpts := []arxiv.ClientOption{
		arxiv.WithExecutor(exec),
		arxiv.WithLogger(logger),
	}
	fetchOpts := []fetch.Option{
		fetch.WithRateLimit(cfg.RateLimit),
		fetch.WithFilenameOptions(cfg.FilenameOptions()),
		fetch.WithLogger(logger),
	}
	if cfg.UserAgent != "" {
		crossrefOpts = append(crossrefOpts, crossref.WithUserAgent(cfg.UserAgent))
		arxivOpts = append(arxivOpts, arxiv.WithUserAgent(cfg.UserAgent))
		fetchOpts = append(fetchOpts, fetch.WithUserAgent(cfg.UserAgent))
	}

	cr := crossref.NewClient(crossrefOpts...)
	dl := fetch.New(append(fetchOpts, fetch.WithLinkFinder(cr))...)

	return &pipeline{
		registry: doctype.DefaultRegistry(),
		services: &doctype.Services{
			Sources:     metadataSources(cfg.SourcePriority, cr),
			Arxiv:       arxiv.NewClient(arxivOpts...),
			DOI:         dl,
			URL:         dl,
			DownloadDir: cfg.DownloadDir,
			Filenames:   cfg.FilenameOptions(),
			Logger:      logger,
			Now:         time.Now,
		},
		downloader: dl,
		logger:     logger,
	}
}

// metadataSources orders the DOI sources as configured. Names were checked
// when the config was validated.
func metadataSources(priority []string, cr *crossref.Client) []doctype.NamedSource {
	sources := make([]doctype.NamedSource, 0, len(priority))
	for _, name := range priority {
		switch name {
		case config.SourceCrossrefNormalized:
			sources = append(sources, doctype.NamedSource{Name: name, Source: cr.Normalized()})
		case config.SourceCrossref:
			sources = append(sources, doctype.NamedSource{Name: name, Source: cr})
		}
	}
	return sources
}

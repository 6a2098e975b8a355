package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/roach88/nestq/internal/compiler"
	"github.com/roach88/nestq/internal/config"
	"github.com/roach88/nestq/internal/engine"
	"github.com/roach88/nestq/internal/filtercache"
	logpkg "github.com/roach88/nestq/internal/logger"
	"github.com/roach88/nestq/internal/mapping"
	"github.com/roach88/nestq/internal/store"
)

// StoreOptions are the flags shared by commands that read a mapping and
// a block store. Empty values fall back to the config file.
type StoreOptions struct {
	MappingPath string
	DBPath      string
}

// environment is the wiring behind one command run.
type environment struct {
	cfg     config.Config
	log     *zap.Logger
	mapping *mapping.Mapping
	cache   *filtercache.Cache
	parser  *compiler.Parser
	store   *store.Store
}

// newEnvironment loads config, builds the logger and compiles against the
// mapping. defaultLevel applies when neither --verbose nor the config
// chooses a log level.
func newEnvironment(opts *RootOptions, so StoreOptions, defaultLevel string, f *Printer) (*environment, error) {
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, f.fail(ExitUsage, ErrCodeConfig, err.Error(), nil)
	}
	if so.MappingPath != "" {
		cfg.Mapping.Path = so.MappingPath
	}
	if so.DBPath != "" {
		cfg.Store.Path = so.DBPath
	}

	level := cfg.Logging.Level
	if level == "" {
		level = defaultLevel
	}
	if opts.Verbose {
		level = "debug"
	}
	log, err := logpkg.NewLogger(cfg.Logging.Env, level)
	if err != nil {
		return nil, f.fail(ExitUsage, ErrCodeConfig, err.Error(), nil)
	}

	if cfg.Mapping.Path == "" {
		return nil, f.fail(ExitUsage, ErrCodeConfig, "no mapping: pass --mapping or set mapping.path", nil)
	}
	m, err := mapping.LoadFile(cfg.Mapping.Path)
	if err != nil {
		code := ErrCodeConfig
		if errors.Is(err, os.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return nil, f.fail(ExitUsage, code, fmt.Sprintf("load mapping: %v", err), nil)
	}
	f.Debugf("Loaded mapping %s (%d nested path(s))", cfg.Mapping.Path, len(m.NestedPaths()))

	cache := filtercache.New(cfg.Cache.MaxEntries)
	return &environment{
		cfg:     cfg,
		log:     log,
		mapping: m,
		cache:   cache,
		parser: compiler.NewParser(m, cache,
			compiler.WithLogger(log),
			compiler.WithMaxDepth(cfg.Compiler.MaxDepth)),
	}, nil
}

// openStore opens the configured store.
func (e *environment) openStore(f *Printer) error {
	st, err := store.Open(e.cfg.Store.Path)
	if err != nil {
		return f.fail(ExitUsage, ErrCodeStore, err.Error(), map[string]string{"db": e.cfg.Store.Path})
	}
	e.store = st
	f.Debugf("Opened store %s", e.cfg.Store.Path)
	return nil
}

func (e *environment) executor() *engine.Executor {
	return engine.NewExecutor(e.store, e.cache, engine.WithLogger(e.log))
}

func (e *environment) indexer() *engine.Indexer {
	return engine.NewIndexer(e.mapping, e.store, e.log)
}

func (e *environment) Close() error {
	_ = e.log.Sync()
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// readInput reads a file, or stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// inputFailure reports an unreadable input file.
func inputFailure(f *Printer, path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return f.fail(ExitUsage, ErrCodeNotFound, fmt.Sprintf("file not found: %s", path), nil)
	}
	return f.fail(ExitUsage, ErrCodeInvalidInput, fmt.Sprintf("read %s: %v", path, err), nil)
}

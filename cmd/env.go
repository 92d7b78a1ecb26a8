package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/analysis-cli/internal/cache"
	"github.com/sells-group/analysis-cli/internal/catalog"
	"github.com/sells-group/analysis-cli/internal/sample"
	"github.com/sells-group/analysis-cli/internal/scan"
	"github.com/sells-group/analysis-cli/internal/variable"
)

// analysisEnv bundles the engine, cache and loaded registry shared by the
// query commands.
type analysisEnv struct {
	Engine   scan.Engine
	Cache    cache.Cache
	Registry *sample.Registry
}

func (e *analysisEnv) Close() {
	if e.Cache != nil {
		e.Cache.Close() //nolint:errcheck
	}
	if e.Engine != nil {
		e.Engine.Close() //nolint:errcheck
	}
}

// target resolves a registered sample or process by name.
func (e *analysisEnv) target(name string) (sample.Queryable, error) {
	q, ok := e.Registry.Lookup(name)
	if !ok {
		return nil, eris.Errorf("unknown sample or process %q (registered: %s)",
			name, strings.Join(e.Registry.Names(), ", "))
	}
	return q, nil
}

func newEngine(ctx context.Context) (scan.Engine, error) {
	switch cfg.Engine.Driver {
	case "sqlite":
		return scan.NewSQLite(cfg.Analysis.KeepResident), nil
	case "postgres":
		return scan.NewPostgres(ctx, cfg.Engine.DatabaseURL, nil)
	}
	return nil, eris.Errorf("unknown engine driver %q", cfg.Engine.Driver)
}

func newCache() (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewMemory(), nil
	case "sqlite":
		return cache.NewSQLite(cfg.Cache.Path)
	case "none", "":
		return nil, nil
	}
	return nil, eris.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

// initAnalysis builds the engine and cache and loads the configured
// catalogs. Catalog format is picked by extension: .xml, .yaml/.yml, else
// the flat text format.
func initAnalysis(ctx context.Context) (*analysisEnv, error) {
	engine, err := newEngine(ctx)
	if err != nil {
		return nil, err
	}
	store, err := newCache()
	if err != nil {
		engine.Close() //nolint:errcheck
		return nil, err
	}

	env := &analysisEnv{Engine: engine, Cache: store, Registry: sample.NewRegistry()}
	loader := &catalog.Loader{Registry: env.Registry, Engine: engine, Cache: store}

	if path := cfg.Analysis.SampleCatalog; path != "" {
		if err := readCatalog(loader, path, false); err != nil {
			env.Close()
			return nil, err
		}
	}
	if path := cfg.Analysis.ProcessCatalog; path != "" {
		if err := readCatalog(loader, path, true); err != nil {
			env.Close()
			return nil, err
		}
	}
	return env, nil
}

func readCatalog(loader *catalog.Loader, path string, processes bool) error {
	switch {
	case strings.HasSuffix(path, ".xml"):
		return loader.ReadXMLFile(path)
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return loader.ReadYAMLFile(path)
	case processes:
		return loader.ReadProcessesTextFile(path)
	default:
		return loader.ReadSamplesTextFile(path)
	}
}

// parseVariable parses the "name:bins:low:high[:expr]" flag format.
func parseVariable(spec string) (variable.Variable, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 4 {
		return variable.Variable{}, eris.Errorf("variable %q: want name:bins:low:high[:expr]", spec)
	}
	bins, err := strconv.Atoi(parts[1])
	if err != nil {
		return variable.Variable{}, eris.Wrapf(err, "variable %q: bins", spec)
	}
	low, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return variable.Variable{}, eris.Wrapf(err, "variable %q: low", spec)
	}
	high, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return variable.Variable{}, eris.Wrapf(err, "variable %q: high", spec)
	}
	v := variable.New(parts[0], bins, low, high)
	if len(parts) > 4 {
		v.Expr = strings.Join(parts[4:], ":")
	}
	return v, nil
}

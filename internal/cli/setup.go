package cli

import (
	"fmt"
	"time"

	"github.com/remora-io/remora/internal/config"
	"github.com/remora-io/remora/internal/dataset"
	"github.com/remora-io/remora/internal/reconcile"
	"github.com/remora-io/remora/internal/remote"
	"github.com/remora-io/remora/internal/store"
)

// app holds the wired components shared by the run and sync commands.
type app struct {
	cfg         *config.Config
	descriptors []dataset.Descriptor
	st          *store.Store
	rec         *reconcile.Reconciler
}

// buildApp loads the configuration and descriptors and opens the store.
// Callers own the returned app and must call close when done.
func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	descriptors, err := dataset.LoadDir(cfg.Datasets)
	if err != nil {
		return nil, fmt.Errorf("loading datasets: %w", err)
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("no dataset descriptors found in %s", cfg.Datasets)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	client := remote.NewClient(cfg.Remote.BaseURL, time.Duration(cfg.Remote.Timeout))
	rec := reconcile.New(st, cfg.Tokens(), client, reconcile.StoreSink{Store: st}, nil)

	return &app{
		cfg:         cfg,
		descriptors: descriptors,
		st:          st,
		rec:         rec,
	}, nil
}

func (a *app) close() {
	if a.st != nil {
		a.st.Close()
	}
}

// pickDatasets filters the loaded descriptors down to the named ones.
// An empty names slice selects everything.
func (a *app) pickDatasets(names []string) ([]dataset.Descriptor, error) {
	if len(names) == 0 {
		return a.descriptors, nil
	}
	byName := make(map[string]dataset.Descriptor, len(a.descriptors))
	for _, d := range a.descriptors {
		byName[d.Name] = d
	}
	picked := make([]dataset.Descriptor, 0, len(names))
	for _, name := range names {
		d, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown dataset %q", name)
		}
		picked = append(picked, d)
	}
	return picked, nil
}

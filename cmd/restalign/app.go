package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/listenupapp/restalign/internal/config"
	"github.com/listenupapp/restalign/internal/logger"
	"github.com/listenupapp/restalign/internal/manifest"
	"github.com/listenupapp/restalign/internal/payload"
	"github.com/listenupapp/restalign/internal/pipeline"
	"github.com/listenupapp/restalign/internal/report"
	"github.com/listenupapp/restalign/internal/store"
	"github.com/listenupapp/restalign/internal/watcher"
)

// app runs comparisons for one configuration.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	runner *pipeline.Runner
	runs   store.RunStore // nil disables archiving
	format report.Format
	stdout io.Writer
}

func newApp(cfg *config.Config, log *logger.Logger, stdout io.Writer) (*app, error) {
	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		log:    log,
		runner: pipeline.NewRunner(log),
		format: format,
		stdout: stdout,
	}, nil
}

// request builds the pipeline request and lists the files it was read from.
func (a *app) request() (pipeline.Request, []string, error) {
	in := a.cfg.Input

	if in.Manifest != "" {
		m, err := manifest.LoadFile(in.Manifest)
		if err != nil {
			return pipeline.Request{}, []string{in.Manifest}, err
		}
		req, err := m.Request()
		if err != nil {
			return pipeline.Request{}, m.Inputs(), err
		}
		a.overrideManifest(&req)
		return req, m.Inputs(), nil
	}

	inputs := []string{in.Payload}
	p, err := payload.ReadFile(in.Payload)
	if err != nil {
		return pipeline.Request{}, inputs, err
	}
	seqA, err := p.Sequence(in.LabelA)
	if err != nil {
		return pipeline.Request{}, inputs, err
	}
	seqB, err := p.Sequence(in.LabelB)
	if err != nil {
		return pipeline.Request{}, inputs, err
	}

	return pipeline.Request{
		A:            seqA,
		B:            seqB,
		Epsilon:      a.cfg.Compare.Epsilon,
		ConvertUnits: a.cfg.Compare.ConvertUnits,
		Coalesce:     in.Coalesce,
		Reference:    in.CheckExpected,
		Source:       in.Payload,
	}, inputs, nil
}

// overrideManifest applies compare options given on the command line or in
// the environment over the manifest's own.
func (a *app) overrideManifest(req *pipeline.Request) {
	cfg := a.cfg
	if cfg.Explicit("epsilon") {
		req.Epsilon = cfg.Compare.Epsilon
	}
	if cfg.Explicit("convert-units") {
		req.ConvertUnits = cfg.Compare.ConvertUnits
	}
	if cfg.Explicit("coalesce") {
		req.Coalesce = cfg.Input.Coalesce
	}
	if cfg.Explicit("check-expected") {
		req.Reference = cfg.Input.CheckExpected
	}
}

// once performs a single run. The returned inputs are valid even when the
// run fails, so watch mode can keep watching a broken file.
func (a *app) once(ctx context.Context) ([]string, error) {
	req, inputs, err := a.request()
	if err != nil {
		return inputs, err
	}

	res, err := a.runner.Run(ctx, req)
	if err != nil {
		return inputs, err
	}
	doc := report.FromResult(res)

	if a.runs != nil {
		if err := a.runs.SaveRun(ctx, &doc); err != nil {
			return inputs, fmt.Errorf("archive run: %w", err)
		}
		a.log.Debug("run archived", "run_id", doc.ID, "path", a.cfg.Store.Path)
	}

	return inputs, a.write(doc)
}

// write renders doc to the configured output.
func (a *app) write(doc report.Document) error {
	if a.cfg.Report.Output == "" {
		return report.Render(a.stdout, doc, a.format)
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, doc, a.format); err != nil {
		return err
	}
	return writeFileAtomic(a.cfg.Report.Output, buf.Bytes())
}

// watch runs once, then again after every settled change to an input,
// until ctx is canceled. Failed runs are logged and do not stop watching.
func (a *app) watch(ctx context.Context) error {
	w, err := watcher.New(a.log.Logger, watcher.Options{SettleDelay: a.cfg.Watch.SettleDelay})
	if err != nil {
		return err
	}
	defer w.Stop()

	rerun := func() error {
		inputs, err := a.once(ctx)
		if err != nil {
			a.log.Error("run failed", "error", err)
		}
		for _, path := range inputs {
			if err := w.Watch(path); err != nil {
				return err
			}
		}
		return nil
	}

	if err := rerun(); err != nil {
		return err
	}

	go func() {
		if err := w.Start(ctx); err != nil {
			a.log.Error("watcher stopped", "error", err)
		}
	}()
	a.log.Info("watching inputs for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.Events():
			a.log.Info("input changed, re-running", "path", ev.Path, "change", ev.Type.String())
			if err := rerun(); err != nil {
				return err
			}
		case err := <-w.Errors():
			a.log.Warn("watch error", "error", err)
		}
	}
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

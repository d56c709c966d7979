package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OFFIS-RIT/matchgraph/internal/config"
	"github.com/OFFIS-RIT/matchgraph/internal/storage"
	"github.com/OFFIS-RIT/matchgraph/internal/timing"
	"github.com/OFFIS-RIT/matchgraph/pkg/common"
	"github.com/OFFIS-RIT/matchgraph/pkg/edgelist"
	"github.com/OFFIS-RIT/matchgraph/pkg/extract"
	"github.com/OFFIS-RIT/matchgraph/pkg/graph"
	"github.com/OFFIS-RIT/matchgraph/pkg/layout"
	"github.com/OFFIS-RIT/matchgraph/pkg/loader"
	ioloader "github.com/OFFIS-RIT/matchgraph/pkg/loader/io"
	s3loader "github.com/OFFIS-RIT/matchgraph/pkg/loader/s3"
	"github.com/OFFIS-RIT/matchgraph/pkg/loader/xlsx"
	"github.com/OFFIS-RIT/matchgraph/pkg/logger"
	"github.com/OFFIS-RIT/matchgraph/pkg/render"
)

// Pipeline ties the stages together: workbook -> records -> edge list ->
// graph -> layout -> artifact.
type Pipeline struct {
	cfg   *config.Config
	store storage.ObjectStore

	local *ioloader.IOFileLoader

	mu     sync.Mutex
	remote map[string]*xlsx.SheetLoader
	sheets *xlsx.SheetLoader
	files  map[string]loader.FileLoader
}

// Result summarises one run.
type Result struct {
	Stats    extract.Stats  `json:"stats"`
	Accepted int            `json:"accepted"`
	Nodes    int            `json:"nodes"`
	Edges    int            `json:"edges"`
	Stages   []timing.Stage `json:"stages"`
	Total    time.Duration  `json:"total"`
}

type NewPipelineParams struct {
	Config *config.Config
	// Store serves s3:// inputs and uploads. It may be nil when neither is
	// used.
	Store storage.ObjectStore
}

func NewPipeline(params NewPipelineParams) *Pipeline {
	local := ioloader.NewIOFileLoader()
	return &Pipeline{
		cfg:    params.Config,
		store:  params.Store,
		local:  local,
		sheets: xlsx.NewSheetLoader(local),
		remote: make(map[string]*xlsx.SheetLoader),
		files:  make(map[string]loader.FileLoader),
	}
}

// New creates a pipeline for cfg and connects to S3 when uploads are enabled
// or the input or one of refs, e.g. an edge list to render from, lives there.
func New(ctx context.Context, cfg *config.Config, refs ...string) (*Pipeline, error) {
	in, err := loader.ParseLocation(cfg.Input)
	if err != nil {
		return nil, err
	}

	remote := in.IsRemote() || cfg.Upload
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		loc, err := loader.ParseLocation(ref)
		if err != nil {
			return nil, err
		}
		remote = remote || loc.IsRemote()
	}

	var store storage.ObjectStore
	if remote {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		store = client
	}

	return NewPipeline(NewPipelineParams{Config: cfg, Store: store}), nil
}

func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// SourceFile resolves a local path or s3://bucket/key reference to a file
// backed by the matching loader.
func (p *Pipeline) SourceFile(ref string) (loader.SourceFile, error) {
	loc, err := loader.ParseLocation(ref)
	if err != nil {
		return loader.SourceFile{}, err
	}
	if !loc.IsRemote() {
		return loader.NewSourceFile(loader.NewSourceFileParams{FilePath: loc.Path, Loader: p.local}), nil
	}
	if p.store == nil {
		return loader.SourceFile{}, fmt.Errorf("no object storage configured for %s", ref)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.files[loc.Bucket]
	if !ok {
		l = s3loader.NewS3FileLoaderWithClient(loc.Bucket, p.store)
		p.files[loc.Bucket] = l
	}
	return loader.NewSourceFile(loader.NewSourceFileParams{ID: ref, FilePath: loc.Key, Loader: l}), nil
}

func (p *Pipeline) sheetLoader(file loader.SourceFile) *xlsx.SheetLoader {
	if file.Loader == loader.FileLoader(p.local) {
		return p.sheets
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	sl, ok := p.remote[file.ID]
	if !ok {
		sl = xlsx.NewSheetLoader(file.Loader)
		p.remote[file.ID] = sl
	}
	return sl
}

// Refresh drops cached bytes and decoded worksheets of the configured input
// so the next Extract reads the workbook again.
func (p *Pipeline) Refresh() error {
	file, err := p.SourceFile(p.cfg.Input)
	if err != nil {
		return err
	}
	if file.Loader == loader.FileLoader(p.local) {
		p.local.Forget(file)
		p.sheets.Forget(file, p.cfg.Sheet)
		return nil
	}

	loc, err := loader.ParseLocation(p.cfg.Input)
	if err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.files, loc.Bucket)
	delete(p.remote, file.ID)
	p.mu.Unlock()
	return nil
}

// Extract decodes the configured worksheet and returns its edge records.
func (p *Pipeline) Extract(ctx context.Context) ([]common.EdgeRecord, extract.Stats, error) {
	file, err := p.SourceFile(p.cfg.Input)
	if err != nil {
		return nil, extract.Stats{}, err
	}

	sheet, err := p.sheetLoader(file).GetSheet(ctx, file, p.cfg.Sheet)
	if err != nil {
		return nil, extract.Stats{}, fmt.Errorf("failed to decode %s: %w", p.cfg.Input, err)
	}

	records, stats := extract.Extract(sheet, p.cfg.Columns)
	logger.Debug("[Extract] Rows processed",
		"rows", stats.Rows,
		"accepted", stats.Accepted,
		"header", stats.Skipped[extract.SkipHeader],
		"empty_entity", stats.Skipped[extract.SkipEmptyEntity],
		"bad_score", stats.Skipped[extract.SkipBadScore],
	)
	return records, stats, nil
}

// LoadEdges reads a previously written edge list from a local path or S3.
func (p *Pipeline) LoadEdges(ctx context.Context, ref string) ([]common.EdgeRecord, error) {
	file, err := p.SourceFile(ref)
	if err != nil {
		return nil, err
	}
	content, err := file.GetBytes(ctx)
	if err != nil {
		return nil, err
	}
	return edgelist.Read(bytes.NewReader(content))
}

// Visualize builds the graph from records, lays it out and encodes it.
func (p *Pipeline) Visualize(records []common.EdgeRecord, opts layout.Options) (*graph.Graph, render.Scene, error) {
	return p.visualize(records, opts, timing.NewRecorder())
}

func (p *Pipeline) visualize(records []common.EdgeRecord, opts layout.Options, rec *timing.Recorder) (*graph.Graph, render.Scene, error) {
	stop := rec.Track("graph")
	g := graph.BuildFromSlice(records)
	stop()
	if err := g.Validate(); err != nil {
		return nil, render.Scene{}, err
	}
	logger.Debug("[Graph] Built graph", "nodes", g.Len(), "edges", g.EdgeCount(), "justification", g.HasJustification())

	stop = rec.Track("layout")
	positions := layout.Spring(g, opts)
	stop()
	lo, hi := positions.Bounds()
	logger.Debug("[Layout] Placed nodes", "seed", opts.Seed, "min", lo, "max", hi)

	stop = rec.Track("encode")
	scene := render.Encode(g, positions, p.cfg.Style)
	stop()

	return g, scene, nil
}

// Run executes the full chain and writes the edge list and the HTML artifact.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	rec := timing.NewRecorder()

	stop := rec.Track("extract")
	records, stats, err := p.Extract(ctx)
	stop()
	if err != nil {
		return nil, err
	}

	stop = rec.Track("edgelist")
	err = edgelist.WriteFile(p.cfg.Edges, records, edgelist.HasJustification(records))
	stop()
	if err != nil {
		return nil, err
	}
	logger.Info("[Extract] Wrote edge list", "path", p.cfg.Edges, "edges", len(records))

	res, err := p.publish(ctx, records, rec, p.cfg.Edges, p.cfg.HTML)
	if err != nil {
		return nil, err
	}
	res.Stats = stats
	res.Accepted = stats.Accepted
	return res, nil
}

// FromEdges renders the artifact from an existing edge list, skipping the
// workbook stage.
func (p *Pipeline) FromEdges(ctx context.Context, ref string) (*Result, error) {
	rec := timing.NewRecorder()

	stop := rec.Track("edgelist")
	records, err := p.LoadEdges(ctx, ref)
	stop()
	if err != nil {
		return nil, err
	}

	res, err := p.publish(ctx, records, rec, p.cfg.HTML)
	if err != nil {
		return nil, err
	}
	res.Accepted = len(records)
	return res, nil
}

// publish renders records and uploads the listed local files when uploads
// are enabled.
func (p *Pipeline) publish(ctx context.Context, records []common.EdgeRecord, rec *timing.Recorder, uploads ...string) (*Result, error) {
	g, scene, err := p.visualize(records, p.cfg.Layout, rec)
	if err != nil {
		return nil, err
	}

	stop := rec.Track("render")
	err = render.WriteFile(p.cfg.HTML, scene, p.cfg.Render)
	stop()
	if err != nil {
		return nil, err
	}
	logger.Info("[Render] Wrote artifact", "path", p.cfg.HTML, "interactive", scene.Interactive)

	if p.cfg.Upload {
		if err := p.upload(ctx, rec, uploads); err != nil {
			return nil, err
		}
	}

	return &Result{
		Nodes:  g.Len(),
		Edges:  g.EdgeCount(),
		Stages: rec.Stages(),
		Total:  rec.Total(),
	}, nil
}

func (p *Pipeline) upload(ctx context.Context, rec *timing.Recorder, paths []string) error {
	if p.store == nil {
		return errors.New("upload enabled but no object storage configured")
	}
	defer rec.Track("upload")()

	for _, path := range paths {
		key := storage.ObjectKey(p.cfg.S3.Prefix, path)
		if err := storage.PutFile(ctx, p.store, p.cfg.S3.Bucket, key, path); err != nil {
			return err
		}
		logger.Info("[Storage] Uploaded", "bucket", p.cfg.S3.Bucket, "key", key)
	}
	return nil
}

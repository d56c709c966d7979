package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OFFIS-RIT/matchgraph/internal/config"
	"github.com/OFFIS-RIT/matchgraph/pkg/common"
	"github.com/OFFIS-RIT/matchgraph/pkg/edgelist"
	"github.com/OFFIS-RIT/matchgraph/pkg/extract"
	"github.com/OFFIS-RIT/matchgraph/pkg/loader/xlsx"
	"github.com/OFFIS-RIT/matchgraph/pkg/loader/xlsx/xlsxtest"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resultRows = [][]string{
	{"problem_name", "", "", "swedish_entity", "match_score"},
	{"--|Acme Corp", "", "", "Volvo", "0.82"},
	{"|Acme Corp", "", "", "Saab", "0.4"},
	{"Gulf Trading", "", "", "Volvo", "n/a"},
	{"", "", "", "Ericsson", "0.3"},
	{"Gulf Trading", "", "", "Ericsson", "0.65"},
}

type bucket struct {
	objects map[string][]byte
}

func (b *bucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := b.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (b *bucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Input = filepath.Join(dir, "results.xlsx")
	cfg.Edges = filepath.Join(dir, "network_edges.csv")
	cfg.HTML = filepath.Join(dir, "network_3d.html")
	require.NoError(t, os.WriteFile(cfg.Input, xlsxtest.Workbook(t, xlsx.DefaultSheetPath, resultRows), 0o644))
	return &cfg
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	p := NewPipeline(NewPipelineParams{Config: cfg})

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Accepted)
	assert.Equal(t, 1, res.Stats.Skipped[extract.SkipHeader])
	assert.Equal(t, 1, res.Stats.Skipped[extract.SkipBadScore])
	assert.Equal(t, 1, res.Stats.Skipped[extract.SkipEmptyEntity])
	assert.Equal(t, 5, res.Nodes)
	assert.Equal(t, 3, res.Edges)
	assert.NotEmpty(t, res.Stages)
	var total time.Duration
	for _, stage := range res.Stages {
		total += stage.Duration
	}
	assert.Equal(t, total, res.Total)

	records, err := edgelist.ReadFile(cfg.Edges)
	require.NoError(t, err)
	assert.Equal(t, []common.EdgeRecord{
		{Source: "Acme Corp", Target: "Volvo", Score: 0.82},
		{Source: "Acme Corp", Target: "Saab", Score: 0.4},
		{Source: "Gulf Trading", Target: "Ericsson", Score: 0.65},
	}, records)

	header, err := os.ReadFile(cfg.Edges)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(header, []byte("saudi_entity,swedish_entity,match_score\n")))

	html, err := os.ReadFile(cfg.HTML)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Plotly.newPlot")
	assert.NotContains(t, string(html), "plotly_click")
}

func TestRunIsReproducible(t *testing.T) {
	cfg := testConfig(t)

	_, err := NewPipeline(NewPipelineParams{Config: cfg}).Run(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(cfg.HTML)
	require.NoError(t, err)

	_, err = NewPipeline(NewPipelineParams{Config: cfg}).Run(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(cfg.HTML)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunMissingSheet(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sheet = "xl/worksheets/sheet9.xml"

	_, err := NewPipeline(NewPipelineParams{Config: cfg}).Run(context.Background())
	assert.ErrorIs(t, err, xlsx.ErrSheetNotFound)
	_, statErr := os.Stat(cfg.Edges)
	assert.True(t, os.IsNotExist(statErr), "nothing is written on failure")
}

func TestFromEdgesWithJustification(t *testing.T) {
	cfg := testConfig(t)
	edges := filepath.Join(t.TempDir(), "scored.csv")
	require.NoError(t, edgelist.WriteFile(edges, []common.EdgeRecord{
		{Source: "Acme", Target: "Volvo", Score: 0.9, Justification: "both build trucks", JustificationScore: 4},
		{Source: "Acme", Target: "Saab", Score: 0.3, Justification: "", JustificationScore: 1},
	}, true))

	res, err := NewPipeline(NewPipelineParams{Config: cfg}).FromEdges(context.Background(), edges)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, 3, res.Nodes)

	html, err := os.ReadFile(cfg.HTML)
	require.NoError(t, err)
	assert.Contains(t, string(html), `id="justification"`)
	assert.Contains(t, string(html), "plotly_click")
	assert.Contains(t, string(html), "both build trucks")
}

func TestRemoteInputAndUpload(t *testing.T) {
	cfg := testConfig(t)
	workbook, err := os.ReadFile(cfg.Input)
	require.NoError(t, err)

	store := &bucket{objects: map[string][]byte{"exports/2024/results.xlsx": workbook}}
	cfg.Input = "s3://exports/2024/results.xlsx"
	cfg.Upload = true
	cfg.S3.Bucket = "artifacts"
	cfg.S3.Prefix = "matchgraph"

	res, err := NewPipeline(NewPipelineParams{Config: cfg, Store: store}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Accepted)
	assert.Contains(t, store.objects, "artifacts/matchgraph/network_edges.csv")
	assert.Contains(t, store.objects, "artifacts/matchgraph/network_3d.html")
}

func TestRemoteInputWithoutStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input = "s3://exports/results.xlsx"

	_, _, err := NewPipeline(NewPipelineParams{Config: cfg}).Extract(context.Background())
	assert.Error(t, err)
}

func TestNewConnectsForRemoteRefs(t *testing.T) {
	tests := []struct {
		name      string
		upload    bool
		refs      []string
		wantStore bool
	}{
		{name: "local only", refs: []string{"out/network_edges.csv"}},
		{name: "no refs"},
		{name: "empty ref", refs: []string{""}},
		{name: "remote edge list", refs: []string{"s3://exports/network_edges.csv"}, wantStore: true},
		{name: "upload", upload: true, wantStore: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Upload = tt.upload
			cfg.S3.Region = "eu-central-1"
			cfg.S3.Bucket = "artifacts"

			p, err := New(context.Background(), cfg, tt.refs...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStore, p.store != nil)
		})
	}

	_, err := New(context.Background(), testConfig(t), "s3://exports")
	assert.Error(t, err)
}

func TestRefreshRereadsWorkbook(t *testing.T) {
	cfg := testConfig(t)
	p := NewPipeline(NewPipelineParams{Config: cfg})

	records, _, err := p.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	rows := append(append([][]string{}, resultRows...), []string{"Gulf Trading", "", "", "Scania", "0.5"})
	require.NoError(t, os.WriteFile(cfg.Input, xlsxtest.Workbook(t, xlsx.DefaultSheetPath, rows), 0o644))

	records, _, err = p.Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3, "served from cache until refreshed")

	require.NoError(t, p.Refresh())
	records, _, err = p.Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestRefreshRemoteInput(t *testing.T) {
	cfg := testConfig(t)
	workbook, err := os.ReadFile(cfg.Input)
	require.NoError(t, err)

	store := &bucket{objects: map[string][]byte{"exports/results.xlsx": workbook}}
	cfg.Input = "s3://exports/results.xlsx"
	p := NewPipeline(NewPipelineParams{Config: cfg, Store: store})

	records, _, err := p.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	store.objects["exports/results.xlsx"] = xlsxtest.Workbook(t, xlsx.DefaultSheetPath, resultRows[:2])
	require.NoError(t, p.Refresh())
	records, _, err = p.Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

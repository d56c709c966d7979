package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLoader []byte

func (s staticLoader) GetFileBytes(context.Context, SourceFile) ([]byte, error) {
	return s, nil
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    Location
		wantErr bool
	}{
		{name: "local path", ref: "SSIP Project Results.xlsx", want: Location{Path: "SSIP Project Results.xlsx"}},
		{name: "trimmed", ref: "  data/in.xlsx ", want: Location{Path: "data/in.xlsx"}},
		{name: "s3 object", ref: "s3://results/exports/2024.xlsx", want: Location{Bucket: "results", Key: "exports/2024.xlsx", Path: "exports/2024.xlsx"}},
		{name: "s3 without key", ref: "s3://results", wantErr: true},
		{name: "empty", ref: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocation(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Bucket != "", got.IsRemote())
		})
	}
}

func TestSourceFile(t *testing.T) {
	f := NewSourceFile(NewSourceFileParams{FilePath: "a.xlsx", Loader: staticLoader("data")})
	assert.Equal(t, "a.xlsx", f.ID)
	assert.Equal(t, "a.xlsx:a.xlsx", CacheKey(f))

	got, err := f.GetBytes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	empty := NewSourceFile(NewSourceFileParams{FilePath: "b.xlsx"})
	_, err = empty.GetBytes(context.Background())
	assert.Error(t, err)
}

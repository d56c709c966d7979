package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/matchgraph/pkg/loader"
)

type fakeGetter struct {
	objects map[string]string
	calls   int
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3FileLoader(t *testing.T) {
	getter := &fakeGetter{objects: map[string]string{"results/exports/a.xlsx": "workbook"}}
	l := NewS3FileLoaderWithClient("results", getter)
	file := loader.NewSourceFile(loader.NewSourceFileParams{FilePath: "exports/a.xlsx", Loader: l})

	for range 2 {
		got, err := file.GetBytes(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []byte("workbook"), got)
	}
	assert.Equal(t, 1, getter.calls)

	missing := loader.NewSourceFile(loader.NewSourceFileParams{FilePath: "exports/b.xlsx", Loader: l})
	_, err := missing.GetBytes(context.Background())
	assert.ErrorContains(t, err, "s3://results/exports/b.xlsx")
}

package loader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// SourceFile identifies a file the pipeline reads, such as the results
// workbook or a previously written edge list. The bytes are retrieved through
// the associated FileLoader, so the same file description works for local
// paths and object storage.
type SourceFile struct {
	ID       string
	FilePath string
	Loader   FileLoader
}

// NewSourceFileParams defines the input parameters for NewSourceFile.
type NewSourceFileParams struct {
	ID       string
	FilePath string
	Loader   FileLoader
}

// NewSourceFile creates a SourceFile. The ID defaults to the file path.
func NewSourceFile(params NewSourceFileParams) SourceFile {
	id := params.ID
	if id == "" {
		id = params.FilePath
	}
	return SourceFile{
		ID:       id,
		FilePath: params.FilePath,
		Loader:   params.Loader,
	}
}

// GetBytes retrieves the raw content of the file using its Loader.
//
// Example:
//
//	content, err := file.GetBytes(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
func (f *SourceFile) GetBytes(ctx context.Context) ([]byte, error) {
	if f.Loader == nil {
		return nil, fmt.Errorf("no loader configured for %s", f.FilePath)
	}
	return f.Loader.GetFileBytes(ctx, *f)
}

// FileLoader defines the interface for loading the contents of a SourceFile.
// Implementations may load files from disk, object storage, or other sources.
type FileLoader interface {
	GetFileBytes(ctx context.Context, file SourceFile) ([]byte, error)
}

// CacheKey generates a unique cache key for a SourceFile based on its ID and path.
func CacheKey(file SourceFile) string {
	return file.ID + ":" + file.FilePath
}

// Location is a parsed input reference: either a local path or an object in
// an S3 bucket written as s3://bucket/key.
type Location struct {
	Bucket string
	Key    string
	Path   string
}

// IsRemote reports whether the location points into object storage.
func (l Location) IsRemote() bool {
	return l.Bucket != ""
}

// ParseLocation splits an input reference into a Location.
func ParseLocation(ref string) (Location, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Location{}, errors.New("empty file reference")
	}
	if !strings.HasPrefix(ref, "s3://") {
		return Location{Path: ref}, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return Location{}, fmt.Errorf("invalid s3 reference %q: %w", ref, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return Location{}, fmt.Errorf("invalid s3 reference %q: bucket and key are required", ref)
	}
	return Location{Bucket: u.Host, Key: key, Path: key}, nil
}

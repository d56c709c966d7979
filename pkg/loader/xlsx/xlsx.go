package xlsx

import (
	"context"
	"errors"
	"sync"

	"github.com/OFFIS-RIT/matchgraph/pkg/loader"
	"github.com/OFFIS-RIT/matchgraph/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// SheetLoader fetches workbooks through a base loader and decodes single
// worksheets from them. Decoded sheets are cached per file and sheet path.
type SheetLoader struct {
	loader loader.FileLoader

	cache   map[string]*Sheet
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewSheetLoader creates a new SheetLoader with the given base loader.
func NewSheetLoader(baseLoader loader.FileLoader) *SheetLoader {
	return &SheetLoader{
		loader: baseLoader,
		cache:  make(map[string]*Sheet),
	}
}

// GetSheet retrieves the workbook and decodes the worksheet at sheetPath.
// When the worksheet is missing the available worksheet entries are logged
// to help pick the right one.
func (l *SheetLoader) GetSheet(ctx context.Context, file loader.SourceFile, sheetPath string) (*Sheet, error) {
	key := loader.CacheKey(file) + "#" + sheetPath

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[key]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		content, err := l.loader.GetFileBytes(ctx, file)
		if err != nil {
			return nil, err
		}

		sheet, err := DecodeSheet(content, sheetPath)
		if err != nil {
			if errors.Is(err, ErrSheetNotFound) {
				if sheets, lerr := ListSheets(content); lerr == nil {
					logger.Error("[Extract] Worksheet not found", "sheet", sheetPath, "available", sheets)
				}
			}
			return nil, err
		}

		logger.Debug("[Extract] Decoded worksheet", "file", file.FilePath, "sheet", sheetPath, "rows", len(sheet.Rows))

		l.cacheMu.Lock()
		l.cache[key] = sheet
		l.cacheMu.Unlock()

		return sheet, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*Sheet), nil
}

// Forget drops the decoded worksheet of file so the next GetSheet decodes it
// again. The base loader keeps its own cache.
func (l *SheetLoader) Forget(file loader.SourceFile, sheetPath string) {
	l.cacheMu.Lock()
	delete(l.cache, loader.CacheKey(file)+"#"+sheetPath)
	l.cacheMu.Unlock()
}

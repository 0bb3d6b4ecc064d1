package parse

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/symmap/internal/discover"
	"github.com/phobologic/symmap/internal/lang"
	"github.com/phobologic/symmap/internal/model"
)

type parserPair struct {
	lang   *lang.Language
	parser *sitter.Parser
	query  *sitter.Query
}

// Files parses files concurrently, one parser per worker and language, and
// returns the results in input order. Files that cannot be read or parsed
// are logged and left out.
func Files(root string, files []discover.FileEntry, log logrus.FieldLogger) []model.FileInfo {
	if len(files) == 0 {
		return nil
	}

	type result struct {
		index int
		info  model.FileInfo
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			parsers := make(map[string]*parserPair)
			for idx := range work {
				f := files[idx]
				flog := log.WithField("file", f.Path)
				pp, ok := parsers[f.Language]
				if !ok {
					l := lang.Languages[f.Language]
					if l == nil {
						flog.Warn("no parser for language")
						continue
					}
					q, err := l.GetTagQuery()
					if err != nil {
						flog.WithError(err).Warn("failed to compile query")
						continue
					}
					pp = &parserPair{lang: l, parser: l.NewParser(), query: q}
					parsers[f.Language] = pp
				}

				source, err := os.ReadFile(filepath.Join(root, f.Path))
				if err != nil {
					flog.WithError(err).Warn("failed to read source")
					continue
				}
				info, err := ExtractTypes(pp.lang, pp.parser, pp.query, source, f.Path)
				if err != nil {
					flog.WithError(err).Warn("failed to parse source")
					continue
				}
				results <- result{index: idx, info: info}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	indexed := make([]model.FileInfo, len(files))
	valid := make([]bool, len(files))
	for r := range results {
		indexed[r.index] = r.info
		valid[r.index] = true
	}

	var fileInfos []model.FileInfo
	for i, v := range valid {
		if v {
			fileInfos = append(fileInfos, indexed[i])
		}
	}
	return fileInfos
}

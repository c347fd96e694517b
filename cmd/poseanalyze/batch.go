package main

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/sync/semaphore"

	"github.com/sameeksha0725/basketball-pose-analyser/internal/types"
)

// analyzeFunc analyzes one file. A returned error means the file could not be
// read; analysis failures are carried by the result.
type analyzeFunc func(ctx context.Context, path string) (types.Result, error)

// fileError is the output line for a file that could not be analyzed
type fileError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// batchReport holds one JSON line per input file, in input order
type batchReport struct {
	Lines    [][]byte
	Failures int
}

// runBatch analyzes files with at most concurrency analyses in flight
func runBatch(ctx context.Context, files []string, concurrency int, analyze analyzeFunc, progress io.Writer) batchReport {
	if concurrency < 1 {
		concurrency = 1
	}

	bar := pb.New(len(files))
	bar.SetWriter(progress)
	bar.Start()
	defer bar.Finish()

	report := batchReport{Lines: make([][]byte, len(files))}
	var mu sync.Mutex
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup

	for i, path := range files {
		err := ctx.Err()
		if err == nil {
			err = sem.Acquire(ctx, 1)
		}
		if err != nil {
			// Context cancelled: report the remaining files as not analyzed
			for j := i; j < len(files); j++ {
				report.Lines[j] = errorLine(files[j], err)
			}
			mu.Lock()
			report.Failures += len(files) - i
			mu.Unlock()
			break
		}

		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer sem.Release(1)
			defer bar.Increment()

			line, failed := analyzeOne(ctx, path, analyze)
			report.Lines[i] = line
			if failed {
				mu.Lock()
				report.Failures++
				mu.Unlock()
			}
		}(i, path)
	}

	wg.Wait()
	return report
}

func analyzeOne(ctx context.Context, path string, analyze analyzeFunc) ([]byte, bool) {
	result, err := analyze(ctx, path)
	if err != nil {
		return errorLine(path, err), true
	}

	line, err := result.ToJSON()
	if err != nil {
		return errorLine(path, err), true
	}
	return line, failed(result)
}

func failed(result types.Result) bool {
	switch r := result.(type) {
	case *types.ImageAnalysisResult:
		return r.Outcome == types.OutcomeFailed
	case *types.VideoAnalysisResult:
		return r.Outcome == types.OutcomeFailed
	}
	return false
}

func errorLine(path string, err error) []byte {
	line, _ := json.Marshal(fileError{Source: path, Error: err.Error()})
	return line
}

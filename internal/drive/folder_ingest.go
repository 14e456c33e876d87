package drive

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultIngestWorkers = 4
	maxIngestWorkers     = 16
)

// FolderResult is the outcome of one register file of a folder ingest.
type FolderResult struct {
	FileID string        `json:"file_id"`
	Name   string        `json:"name"`
	Result *IngestResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// IngestFolder imports every CSV and XLSX register in a Drive folder with up
// to workers files in flight. A failing file does not stop the others; its
// error is reported in the result. Results keep the folder listing order.
func (s *IngestService) IngestFolder(ctx context.Context, companyID, folderID string, workers int) ([]FolderResult, error) {
	if s.files == nil {
		return nil, fmt.Errorf("drive is not configured")
	}
	if workers < 1 {
		workers = 1
	}

	files, err := s.files.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	type job struct {
		index int
		file  *File
	}

	var registers []*File
	for _, f := range files {
		if FormatOf(f.Name) != "" {
			registers = append(registers, f)
		}
	}
	results := make([]FolderResult, len(registers))

	jobChan := make(chan job, len(registers))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := range jobChan {
				results[j.index] = s.ingestOne(ctx, companyID, j.file, workerID)
			}
		}(i)
	}

	for i, f := range registers {
		select {
		case <-ctx.Done():
			close(jobChan)
			wg.Wait()
			return nil, ctx.Err()
		case jobChan <- job{index: i, file: f}:
		}
	}
	close(jobChan)
	wg.Wait()

	return results, nil
}

func (s *IngestService) ingestOne(ctx context.Context, companyID string, f *File, workerID int) FolderResult {
	start := time.Now()
	out := FolderResult{FileID: f.ID, Name: f.Name}
	if err := ctx.Err(); err != nil {
		out.Error = err.Error()
		return out
	}

	var buf bytes.Buffer
	if err := s.files.DownloadFile(ctx, f.ID, &buf); err != nil {
		out.Error = fmt.Sprintf("download: %v", err)
		log.Warn().Err(err).Int("worker", workerID).Str("file", f.Name).Msg("Register download failed")
		return out
	}

	result, err := s.IngestReader(ctx, companyID, &buf, FormatOf(f.Name))
	if err != nil {
		out.Error = err.Error()
		log.Warn().Err(err).Int("worker", workerID).Str("file", f.Name).Msg("Register import failed")
		return out
	}

	out.Result = result
	log.Debug().
		Int("worker", workerID).
		Str("file", f.Name).
		Dur("duration", time.Since(start)).
		Msg("Register file processed")
	return out
}

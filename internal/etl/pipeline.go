// Package etl masks flat conversational datasets in bulk: CSV, Parquet, or
// JSON-lines files of utterance records, read in batches and masked by a
// worker pool.
package etl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/whitemask/maskd/internal/mask"
)

// Pipeline masks dataset files against one tenant's tables.
type Pipeline struct {
	masker *mask.Masker
	config *Config
	logger *zap.Logger

	mu        sync.RWMutex
	startTime time.Time
}

// NewPipeline creates a dataset pipeline. recorder may be nil to disable
// masked-word frequency recording.
func NewPipeline(tables *mask.Tables, recorder mask.Recorder, config *Config, logger *zap.Logger) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		masker: mask.New(tables, recorder, logger),
		config: config,
		logger: logger,
	}
}

// ProcessFile masks inPath into outPath. Input and output formats are each
// detected from their file extension, so a CSV dataset can be rewritten as
// Parquet in the same run.
func (p *Pipeline) ProcessFile(ctx context.Context, inPath, outPath string) (*Result, error) {
	p.logger.Info("Starting dataset masking",
		zap.String("input", inPath),
		zap.String("output", outPath),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount))

	start := time.Now()
	p.mu.Lock()
	p.startTime = start
	p.mu.Unlock()
	result := &Result{}

	readBatch, closeReader, err := p.openReader(inPath)
	if err != nil {
		return result, err
	}
	defer closeReader()

	writer, err := p.openWriter(outPath)
	if err != nil {
		return result, err
	}

	if err := p.processBatches(ctx, readBatch, writer, result); err != nil {
		writer.close()
		return result, err
	}
	if err := writer.close(); err != nil {
		return result, fmt.Errorf("failed to finalize output: %w", err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("Dataset masking completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("words", result.Words),
		zap.Int64("masked", result.Masked),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("mask_time", result.MaskTime),
		zap.Duration("write_time", result.WriteTime))
	return result, nil
}

// batchReader returns the next batch of records, empty at end of input.
type batchReader func() ([]*Record, error)

func (p *Pipeline) openReader(path string) (batchReader, func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open dataset: %w", err)
	}

	format := DetectFileFormat(path)
	p.logger.Info("Detected input format", zap.String("format", string(format)))

	switch format {
	case FormatCSV:
		reader := csv.NewReader(file)
		reader.FieldsPerRecord = 3 // session_id, speaker, text
		if _, err := reader.Read(); err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
		}
		return p.csvBatches(reader), file.Close, nil
	case FormatParquet:
		reader := parquet.NewReader(file)
		closer := func() error {
			reader.Close()
			return file.Close()
		}
		return p.parquetBatches(reader), closer, nil
	case FormatJSON:
		decoder := json.NewDecoder(file)
		return p.jsonBatches(decoder), file.Close, nil
	default:
		file.Close()
		return nil, nil, fmt.Errorf("unsupported input format: %s", format)
	}
}

func (p *Pipeline) csvBatches(reader *csv.Reader) batchReader {
	return func() ([]*Record, error) {
		var batch []*Record
		for len(batch) < p.config.BatchSize {
			row, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				p.logger.Warn("Failed to read CSV record", zap.Error(err))
				continue
			}
			record := &Record{SessionID: row[0], Speaker: row[1], Text: row[2]}
			if p.validateRecord(record) {
				batch = append(batch, record)
			}
		}
		return batch, nil
	}
}

func (p *Pipeline) parquetBatches(reader *parquet.Reader) batchReader {
	return func() ([]*Record, error) {
		var batch []*Record
		for len(batch) < p.config.BatchSize {
			var record Record
			err := reader.Read(&record)
			if err == io.EOF {
				break
			}
			if err != nil {
				p.logger.Warn("Failed to read Parquet record", zap.Error(err))
				continue
			}
			if p.validateRecord(&record) {
				batch = append(batch, &record)
			}
		}
		return batch, nil
	}
}

func (p *Pipeline) jsonBatches(decoder *json.Decoder) batchReader {
	return func() ([]*Record, error) {
		var batch []*Record
		for len(batch) < p.config.BatchSize {
			var record Record
			err := decoder.Decode(&record)
			if err == io.EOF {
				break
			}
			if err != nil {
				p.logger.Warn("Failed to read JSON record", zap.Error(err))
				continue
			}
			if p.validateRecord(&record) {
				batch = append(batch, &record)
			}
		}
		return batch, nil
	}
}

// processBatches drains the reader, masking each batch with a worker pool
// and appending the results to the writer in input order.
func (p *Pipeline) processBatches(ctx context.Context, readBatch batchReader, writer recordWriter, result *Result) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := readBatch()
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		maskStart := time.Now()
		masked := p.maskBatch(batch, result)
		result.MaskTime += time.Since(maskStart)

		writeStart := time.Now()
		for _, rec := range masked {
			if err := writer.write(rec); err != nil {
				result.ProcessedFailed += int64(len(masked))
				result.Errors = append(result.Errors, err.Error())
				return fmt.Errorf("failed to write batch: %w", err)
			}
		}
		result.WriteTime += time.Since(writeStart)

		result.TotalRecords += int64(len(batch))
		result.ProcessedOK += int64(len(batch))

		if p.config.ProgressReport > 0 && result.TotalRecords%int64(p.config.ProgressReport) == 0 {
			p.reportProgress(result)
		}
	}
	return nil
}

// maskBatch masks a batch with WorkerCount goroutines, keeping input order.
// Speakers are replaced with the name tag like dialog volleys.
func (p *Pipeline) maskBatch(batch []*Record, result *Result) []*MaskedRecord {
	masked := make([]*MaskedRecord, len(batch))
	var totals mask.Counts
	var mu sync.Mutex

	workers := p.config.WorkerCount
	if workers < 1 {
		workers = 1
	}
	indexes := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				record := batch[i]
				text, counts := p.masker.MaskLine(record.Text, nil)
				counts.MaskedNam++
				masked[i] = &MaskedRecord{
					SessionID: record.SessionID,
					Speaker:   mask.TagName,
					Text:      text,
					Words:     counts.Words,
					Masked:    counts.Masked(),
				}
				mu.Lock()
				totals.Add(counts)
				mu.Unlock()
			}
		}()
	}
	for i := range batch {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	result.Words += totals.Words
	result.Masked += totals.Masked()
	return masked
}

// recordWriter appends masked records to the output file.
type recordWriter interface {
	write(rec *MaskedRecord) error
	close() error
}

func (p *Pipeline) openWriter(path string) (recordWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	format := DetectFileFormat(path)
	switch format {
	case FormatCSV:
		w := csv.NewWriter(file)
		if err := w.Write([]string{"session_id", "speaker", "text", "words", "masked"}); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write CSV header: %w", err)
		}
		return &csvWriter{w: w, file: file}, nil
	case FormatParquet:
		return &parquetWriter{
			w:    parquet.NewWriter(file, parquet.SchemaOf(new(MaskedRecord))),
			file: file,
		}, nil
	case FormatJSON:
		return &jsonWriter{enc: json.NewEncoder(file), file: file}, nil
	default:
		file.Close()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type csvWriter struct {
	w    *csv.Writer
	file *os.File
}

func (c *csvWriter) write(rec *MaskedRecord) error {
	return c.w.Write([]string{
		rec.SessionID,
		rec.Speaker,
		rec.Text,
		strconv.FormatInt(rec.Words, 10),
		strconv.FormatInt(rec.Masked, 10),
	})
}

func (c *csvWriter) close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}

type parquetWriter struct {
	w    *parquet.Writer
	file *os.File
}

func (p *parquetWriter) write(rec *MaskedRecord) error {
	return p.w.Write(rec)
}

func (p *parquetWriter) close() error {
	if err := p.w.Close(); err != nil {
		p.file.Close()
		return err
	}
	return p.file.Close()
}

type jsonWriter struct {
	enc  *json.Encoder
	file *os.File
}

func (j *jsonWriter) write(rec *MaskedRecord) error {
	return j.enc.Encode(rec)
}

func (j *jsonWriter) close() error {
	return j.file.Close()
}

// validateRecord validates a dataset record
func (p *Pipeline) validateRecord(record *Record) bool {
	if !p.config.ValidateData {
		return true
	}
	if record.Speaker == "" {
		p.logger.Debug("Invalid record: empty speaker")
		return false
	}
	if p.config.MaxTextLength > 0 && len(record.Text) > p.config.MaxTextLength {
		p.logger.Debug("Invalid record: text too long", zap.Int("length", len(record.Text)))
		return false
	}
	return true
}

// reportProgress reports current processing progress
func (p *Pipeline) reportProgress(result *Result) {
	p.mu.RLock()
	elapsed := time.Since(p.startTime)
	p.mu.RUnlock()
	rate := float64(result.TotalRecords) / elapsed.Seconds()

	p.logger.Info("Processing progress",
		zap.Int64("records_processed", result.TotalRecords),
		zap.Int64("records_ok", result.ProcessedOK),
		zap.Int64("records_failed", result.ProcessedFailed),
		zap.Float64("rate_per_sec", rate),
		zap.Duration("elapsed", elapsed))
}

// Package dialog masks conversation transcript files: JSON documents holding
// a header plus an array of dialogs, each with its own header and a sequence
// of speaker volleys. Speakers are replaced with the name tag, messages are
// masked through the tokenizer, and timestamps are re-based onto a synthetic
// start date so relative timing survives while real dates do not.
package dialog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/whitemask/maskd/internal/mask"
)

// DefaultMinDialogs is the minimum number of dialogs a file must keep for the
// masked output to be written at all.
const DefaultMinDialogs = 5

// File is a transcript file: a free-form header and the dialogs it contains.
type File struct {
	Header  map[string]interface{} `json:"header"`
	Dialogs []*Dialog              `json:"dialogs"`
}

// Dialog is one conversation: a free-form header and the volley sequence.
type Dialog struct {
	Header  map[string]interface{} `json:"dialogHeader"`
	Content *Content               `json:"dialogContent"`
}

// Content wraps the volley array.
type Content struct {
	Volleys []map[string]interface{} `json:"dialog"`
}

// Datetime layouts accepted in transcript files, tried in order. Output is
// always written in RFC 3339 UTC.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006 15:04:05",
}

// Totals accumulates results across every file a Processor handles.
type Totals struct {
	Files        int
	FilesWritten int
	Dialogs      int
	Counts       mask.Counts
}

// Options configure a Processor.
type Options struct {
	// StartDate is the synthetic date all dialog timestamps are re-based
	// onto. Zero means midnight UTC of the current day.
	StartDate time.Time

	// MinDialogs is the smallest dialog count worth writing out. Zero means
	// DefaultMinDialogs.
	MinDialogs int
}

// Processor masks transcript files against one tenant's tables.
type Processor struct {
	masker     *mask.Masker
	startDate  time.Time
	minDialogs int
	logger     *zap.Logger

	totals Totals
}

// NewProcessor creates a Processor. recorder may be nil to disable
// masked-word frequency recording.
func NewProcessor(tables *mask.Tables, recorder mask.Recorder, opts Options, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := opts.StartDate
	if start.IsZero() {
		now := time.Now().UTC()
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	min := opts.MinDialogs
	if min <= 0 {
		min = DefaultMinDialogs
	}
	return &Processor{
		masker:     mask.New(tables, recorder, logger),
		startDate:  start,
		minDialogs: min,
		logger:     logger,
	}
}

// Totals returns the accumulated results so far.
func (p *Processor) Totals() Totals {
	return p.totals
}

// MaskFile masks f in place and returns the counts for the whole file. The
// boolean reports whether the file retained enough dialogs to be worth
// writing.
func (p *Processor) MaskFile(f *File) (mask.Counts, bool) {
	var fileCounts mask.Counts
	if f == nil || len(f.Dialogs) == 0 {
		return fileCounts, false
	}

	kept := f.Dialogs[:0]
	for _, d := range f.Dialogs {
		counts, ok := p.maskDialog(d)
		if !ok {
			continue
		}
		fileCounts.Add(counts)
		kept = append(kept, d)
	}
	f.Dialogs = kept

	if f.Header == nil {
		f.Header = make(map[string]interface{})
	}
	f.Header["fileWords"] = fileCounts.Words
	f.Header["fileMasked"] = fileCounts.Masked()
	f.Header["fileMaskedBad"] = fileCounts.MaskedBad
	f.Header["fileMaskedGeo"] = fileCounts.MaskedGeo
	f.Header["fileMaskedMisc"] = fileCounts.MaskedMisc
	f.Header["fileMaskedNam"] = fileCounts.MaskedNam
	f.Header["fileMaskedNum"] = fileCounts.MaskedNum
	f.Header["fileMaskedURL"] = fileCounts.MaskedURL
	f.Header["filePctMasked"] = formatPct(fileCounts.Masked(), fileCounts.Words)

	p.totals.Dialogs += len(f.Dialogs)
	p.totals.Counts.Add(fileCounts)
	return fileCounts, len(f.Dialogs) >= p.minDialogs
}

// maskDialog masks one dialog in place. It returns false when the dialog is
// structurally unusable and should be dropped from the output.
func (p *Processor) maskDialog(d *Dialog) (mask.Counts, bool) {
	var counts mask.Counts
	if d == nil || d.Content == nil {
		return counts, false
	}
	if d.Header == nil {
		p.logger.Warn("Dropping dialog without a dialogHeader")
		return counts, false
	}
	if _, ok := d.Header["sessionID"]; !ok {
		p.logger.Warn("Dropping dialog without a sessionID")
		return counts, false
	}

	// Every dialog restarts at the synthetic start date; volleys keep their
	// relative spacing from there.
	lastSeen, haveLast := parseDatetime(stringField(d.Header, "conversationDateTime"))
	offset := time.Duration(0)
	d.Header["conversationDateTime"] = p.startDate.Format(time.RFC3339)
	delete(d.Header, "agentEmails")
	delete(d.Header, "clientEmail")

	for _, volley := range d.Content.Volleys {
		if seen, ok := parseDatetime(stringField(volley, "datetime")); ok {
			if haveLast {
				offset += seen.Sub(lastSeen)
			}
			lastSeen, haveLast = seen, true
			volley["datetime"] = p.startDate.Add(offset).Format(time.RFC3339)
		}
		p.maskVolley(volley, &counts)
	}

	d.Header["words"] = counts.Words
	d.Header["maskedBad"] = counts.MaskedBad
	d.Header["maskedGeo"] = counts.MaskedGeo
	d.Header["maskedMisc"] = counts.MaskedMisc
	d.Header["maskedNam"] = counts.MaskedNam
	d.Header["maskedNum"] = counts.MaskedNum
	d.Header["maskedURL"] = counts.MaskedURL
	d.Header["pctMasked"] = formatPct(counts.Masked(), counts.Words)
	return counts, true
}

// maskVolley replaces the speaker with the name tag and masks the message.
// A volley names its speaker by carrying one of the keys agent, bot, or
// client; anything without agent or bot counts as a client.
func (p *Processor) maskVolley(volley map[string]interface{}, counts *mask.Counts) {
	switch {
	case volley["agent"] != nil:
		volley["agent"] = mask.TagName
	case volley["bot"] != nil:
		volley["bot"] = mask.TagName
	default:
		volley["client"] = mask.TagName
	}
	counts.MaskedNam++

	masked, msgCounts := p.masker.MaskLine(stringField(volley, "message"), nil)
	volley["message"] = masked
	counts.Add(msgCounts)
}

// ProcessFile reads, masks, and writes one transcript file. The output file
// keeps the input's base name under outDir. Files that keep fewer than
// MinDialogs dialogs are skipped, not written.
func (p *Processor) ProcessFile(inPath, outDir string) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("failed to read transcript: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(inPath), err)
	}

	p.totals.Files++
	counts, keep := p.MaskFile(&f)
	if !keep {
		p.logger.Info("Skipping file with too few dialogs",
			zap.String("file", filepath.Base(inPath)),
			zap.Int("dialogs", len(f.Dialogs)),
			zap.Int("min_dialogs", p.minDialogs),
		)
		return nil
	}

	out, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode masked transcript: %w", err)
	}
	outPath := filepath.Join(outDir, filepath.Base(inPath))
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return fmt.Errorf("failed to write masked transcript: %w", err)
	}

	p.totals.FilesWritten++
	p.logger.Info("Wrote masked transcript",
		zap.String("file", filepath.Base(inPath)),
		zap.Int("dialogs", len(f.Dialogs)),
		zap.Int64("words", counts.Words),
		zap.Int64("masked", counts.Masked()),
		zap.String("pct_masked", formatPct(counts.Masked(), counts.Words)),
	)
	return nil
}

// ProcessDir masks every .json file in inDir, in sorted name order, writing
// results to outDir. Individual file failures are logged and skipped so one
// corrupt transcript does not abort the batch.
func (p *Processor) ProcessDir(inDir, outDir string) error {
	entries, err := os.ReadDir(inDir)
	if err != nil {
		return fmt.Errorf("failed to read input directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err := p.ProcessFile(filepath.Join(inDir, name), outDir); err != nil {
			p.logger.Warn("Skipping transcript", zap.String("file", name), zap.Error(err))
		}
	}

	p.logger.Info("Directory masking complete",
		zap.Int("files", p.totals.Files),
		zap.Int("files_written", p.totals.FilesWritten),
		zap.Int("dialogs", p.totals.Dialogs),
		zap.Int64("words", p.totals.Counts.Words),
		zap.Int64("masked", p.totals.Counts.Masked()),
	)
	return nil
}

func parseDatetime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func formatPct(masked, words int64) string {
	if words == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(masked)/float64(words))
}

package etl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/whitemask/maskd/internal/mask"
)

func testTables() *mask.Tables {
	return &mask.Tables{
		Whitelist:   mask.NewSet("call", "today", "ok"),
		Names:       mask.NewSet("john"),
		MaskNumbers: true,
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.WorkerCount = 2
	return cfg
}

// TestDetectFileFormat tests format detection from extensions
func TestDetectFileFormat(t *testing.T) {
	tests := []struct {
		path string
		want FileFormat
	}{
		{"data.csv", FormatCSV},
		{"data.parquet", FormatParquet},
		{"data.json", FormatJSON},
		{"data.jsonl", FormatJSON},
		{"data", FormatCSV},
	}
	for _, tt := range tests {
		if got := DetectFileFormat(tt.path); got != tt.want {
			t.Errorf("DetectFileFormat(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// TestProcessFileCSV tests the CSV path end to end
func TestProcessFileCSV(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.csv")
	outPath := filepath.Join(dir, "out.csv")

	input := strings.Join([]string{
		"session_id,speaker,text",
		"s-1,Alice,Call John today",
		"s-1,Bob,ok",
		"s-2,Carol,Call 555 today",
	}, "\n") + "\n"
	if err := os.WriteFile(inPath, []byte(input), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewPipeline(testTables(), nil, testConfig(), nil)
	result, err := p.ProcessFile(context.Background(), inPath, outPath)
	if err != nil {
		t.Fatal(err)
	}
	if result.TotalRecords != 3 || result.ProcessedOK != 3 {
		t.Errorf("result = %+v", result)
	}
	// 7 message words; 3 speakers plus 2 message masks.
	if result.Words != 7 || result.Masked != 5 {
		t.Errorf("words = %d masked = %d", result.Words, result.Masked)
	}

	file, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][0] != "session_id" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "~name~" || rows[1][2] != "Call ~name~ today" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][2] != "ok" || rows[2][4] != "1" {
		t.Errorf("row 2 = %v", rows[2])
	}
	if rows[3][2] != "Call ~num~ today" {
		t.Errorf("row 3 = %v", rows[3])
	}
}

// TestProcessFileJSON tests the JSON-lines path end to end
func TestProcessFileJSON(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.jsonl")
	outPath := filepath.Join(dir, "out.jsonl")

	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	for _, rec := range []Record{
		{SessionID: "s-1", Speaker: "Alice", Text: "Call John today"},
		{SessionID: "s-1", Speaker: "", Text: "dropped by validation"},
	} {
		if err := enc.Encode(rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(inPath, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewPipeline(testTables(), nil, testConfig(), nil)
	result, err := p.ProcessFile(context.Background(), inPath, outPath)
	if err != nil {
		t.Fatal(err)
	}
	if result.TotalRecords != 1 {
		t.Errorf("total = %d, empty speakers must be dropped", result.TotalRecords)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	var out MaskedRecord
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Speaker != "~name~" || out.Text != "Call ~name~ today" {
		t.Errorf("out = %+v", out)
	}
	if out.Words != 3 || out.Masked != 2 {
		t.Errorf("out counts = %+v", out)
	}
}

// TestProcessFileCancelled tests context cancellation between batches
func TestProcessFileCancelled(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.csv")
	outPath := filepath.Join(dir, "out.csv")

	var sb strings.Builder
	sb.WriteString("session_id,speaker,text\n")
	for i := 0; i < 10; i++ {
		sb.WriteString("s-1,Alice,hello\n")
	}
	if err := os.WriteFile(inPath, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPipeline(testTables(), nil, testConfig(), nil)
	if _, err := p.ProcessFile(ctx, inPath, outPath); err == nil {
		t.Error("cancelled context must abort the run")
	}
}

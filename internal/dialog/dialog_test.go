package dialog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/whitemask/maskd/internal/mask"
)

func testTables() *mask.Tables {
	return &mask.Tables{
		Whitelist:   mask.NewSet("call", "today", "hi", "ok"),
		Names:       mask.NewSet("john", "smith"),
		Profanities: mask.NewSet("damn"),
		MaskNumbers: true,
	}
}

func testStart() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func volley(speaker, datetime, message string) map[string]interface{} {
	return map[string]interface{}{
		speaker:    "Support Agent",
		"datetime": datetime,
		"message":  message,
	}
}

func testDialog(sessionID string) *Dialog {
	return &Dialog{
		Header: map[string]interface{}{
			"sessionID":            sessionID,
			"conversationDateTime": "2023-05-01T10:00:00Z",
			"agentEmails":          []interface{}{"agent@corp.example"},
			"clientEmail":          "client@corp.example",
		},
		Content: &Content{Volleys: []map[string]interface{}{
			volley("agent", "2023-05-01T10:00:05Z", "Call John today"),
			volley("client", "2023-05-01T10:00:35Z", "ok John"),
		}},
	}
}

// TestMaskFile tests dialog masking, timestamp re-basing, and header counts
func TestMaskFile(t *testing.T) {
	p := NewProcessor(testTables(), nil, Options{StartDate: testStart(), MinDialogs: 1}, nil)
	f := &File{
		Header:  map[string]interface{}{"source": "export"},
		Dialogs: []*Dialog{testDialog("s-1")},
	}

	counts, keep := p.MaskFile(f)
	if !keep {
		t.Fatal("file with one dialog and MinDialogs 1 must be kept")
	}

	d := f.Dialogs[0]
	t.Run("SpeakersMasked", func(t *testing.T) {
		if got := d.Content.Volleys[0]["agent"]; got != "~name~" {
			t.Errorf("agent = %v", got)
		}
		if got := d.Content.Volleys[1]["client"]; got != "~name~" {
			t.Errorf("client = %v", got)
		}
	})

	t.Run("MessagesMasked", func(t *testing.T) {
		if got := d.Content.Volleys[0]["message"]; got != "Call ~name~ today" {
			t.Errorf("message = %v", got)
		}
		if got := d.Content.Volleys[1]["message"]; got != "ok ~name~" {
			t.Errorf("message = %v", got)
		}
	})

	t.Run("DatetimesRebased", func(t *testing.T) {
		if got := d.Header["conversationDateTime"]; got != "2024-01-01T00:00:00Z" {
			t.Errorf("conversationDateTime = %v", got)
		}
		// Volleys keep their spacing relative to the original conversation
		// start: +5s and +35s.
		if got := d.Content.Volleys[0]["datetime"]; got != "2024-01-01T00:00:05Z" {
			t.Errorf("volley 0 datetime = %v", got)
		}
		if got := d.Content.Volleys[1]["datetime"]; got != "2024-01-01T00:00:35Z" {
			t.Errorf("volley 1 datetime = %v", got)
		}
	})

	t.Run("EmailsRemoved", func(t *testing.T) {
		if _, ok := d.Header["agentEmails"]; ok {
			t.Error("agentEmails survived masking")
		}
		if _, ok := d.Header["clientEmail"]; ok {
			t.Error("clientEmail survived masking")
		}
	})

	t.Run("Counts", func(t *testing.T) {
		// 2 speakers + 2 message names masked, 5 message words total.
		if counts.Words != 5 || counts.MaskedNam != 4 {
			t.Errorf("counts = %+v", counts)
		}
		if d.Header["words"] != int64(5) || d.Header["maskedNam"] != int64(4) {
			t.Errorf("dialog header = %+v", d.Header)
		}
		if d.Header["pctMasked"] != "80.00%" {
			t.Errorf("pctMasked = %v", d.Header["pctMasked"])
		}
	})

	t.Run("FileHeader", func(t *testing.T) {
		if f.Header["source"] != "export" {
			t.Error("existing header fields must survive")
		}
		if f.Header["fileWords"] != int64(5) || f.Header["fileMaskedNam"] != int64(4) {
			t.Errorf("file header = %+v", f.Header)
		}
		if f.Header["filePctMasked"] != "80.00%" {
			t.Errorf("filePctMasked = %v", f.Header["filePctMasked"])
		}
	})
}

// TestMaskFileFiltering tests the min-dialogs gate and structural drops
func TestMaskFileFiltering(t *testing.T) {
	t.Run("TooFewDialogs", func(t *testing.T) {
		p := NewProcessor(testTables(), nil, Options{StartDate: testStart(), MinDialogs: 2}, nil)
		f := &File{Dialogs: []*Dialog{testDialog("s-1")}}
		if _, keep := p.MaskFile(f); keep {
			t.Error("one dialog must not satisfy MinDialogs 2")
		}
	})

	t.Run("EmptyFile", func(t *testing.T) {
		p := NewProcessor(testTables(), nil, Options{StartDate: testStart(), MinDialogs: 1}, nil)
		if _, keep := p.MaskFile(&File{}); keep {
			t.Error("empty file must not be kept")
		}
	})

	t.Run("DropsBrokenDialogs", func(t *testing.T) {
		p := NewProcessor(testTables(), nil, Options{StartDate: testStart(), MinDialogs: 1}, nil)
		noContent := &Dialog{Header: map[string]interface{}{"sessionID": "s-2"}}
		noSession := testDialog("s-3")
		delete(noSession.Header, "sessionID")
		f := &File{Dialogs: []*Dialog{noContent, noSession, testDialog("s-4")}}

		if _, keep := p.MaskFile(f); !keep {
			t.Fatal("file must keep the one usable dialog")
		}
		if len(f.Dialogs) != 1 || f.Dialogs[0].Header["sessionID"] != "s-4" {
			t.Errorf("dialogs = %+v", f.Dialogs)
		}
	})
}

// TestProcessDir tests sorted directory masking with per-file error recovery
func TestProcessDir(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "masked")

	good := File{Dialogs: []*Dialog{testDialog("s-1")}}
	data, err := json.Marshal(&good)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, "good.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, "broken.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewProcessor(testTables(), nil, Options{StartDate: testStart(), MinDialogs: 1}, nil)
	if err := p.ProcessDir(inDir, outDir); err != nil {
		t.Fatal(err)
	}

	out, err := os.ReadFile(filepath.Join(outDir, "good.json"))
	if err != nil {
		t.Fatalf("masked output missing: %v", err)
	}
	var masked File
	if err := json.Unmarshal(out, &masked); err != nil {
		t.Fatal(err)
	}
	if len(masked.Dialogs) != 1 {
		t.Errorf("dialogs = %d", len(masked.Dialogs))
	}
	if masked.Dialogs[0].Content.Volleys[0]["message"] != "Call ~name~ today" {
		t.Errorf("message = %v", masked.Dialogs[0].Content.Volleys[0]["message"])
	}

	if _, err := os.Stat(filepath.Join(outDir, "broken.json")); !os.IsNotExist(err) {
		t.Error("broken input must not produce output")
	}

	totals := p.Totals()
	if totals.Files != 1 || totals.FilesWritten != 1 || totals.Dialogs != 1 {
		t.Errorf("totals = %+v", totals)
	}
}

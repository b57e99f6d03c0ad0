package mask

import "testing"

// TestNormalizeMask tests mask keyword normalization
func TestNormalizeMask(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"phone", "phone"},
		{"~phone~", "phone"},
		{"~Phone~", "phone"},
		{"phone~", "phone"},
		{"  ~PHONE~  ", "phone"},
		{"~~", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeMask(tc.in); got != tc.want {
			t.Errorf("NormalizeMask(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestCompileTemplates tests template compilation and per-template errors
func TestCompileTemplates(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		templates, errs := CompileTemplates([]TemplateSpec{
			{Template: `\d{3}-\d{4}`, Mask: "~Phone~"},
			{Template: `[a-z]+@[a-z]+\.com`, Mask: "email"},
		})
		if len(errs) != 0 {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if len(templates) != 2 {
			t.Fatalf("expected 2 templates, got %d", len(templates))
		}
		if templates[0].Mask != "phone" {
			t.Errorf("mask not normalized: %q", templates[0].Mask)
		}
	})

	t.Run("BadRegex", func(t *testing.T) {
		templates, errs := CompileTemplates([]TemplateSpec{
			{Template: `[unclosed`, Mask: "x"},
			{Template: `ok`, Mask: "y"},
		})
		if len(errs) != 1 {
			t.Fatalf("expected 1 error, got %d", len(errs))
		}
		if errs[0].Template != "[unclosed" || errs[0].Err == "" {
			t.Errorf("error not reported for the failing template: %+v", errs[0])
		}
		if len(templates) != 1 || templates[0].Mask != "y" {
			t.Error("valid template should survive a failing sibling")
		}
	})

	t.Run("EmptyMask", func(t *testing.T) {
		_, errs := CompileTemplates([]TemplateSpec{{Template: `x`, Mask: " ~~ "}})
		if len(errs) != 1 || errs[0].Err != `"mask" was empty.` {
			t.Fatalf("expected empty-mask error, got %+v", errs)
		}
	})

	t.Run("MissingTemplate", func(t *testing.T) {
		_, errs := CompileTemplates([]TemplateSpec{{Template: "  ", Mask: "x"}})
		if len(errs) != 1 || errs[0].Err != `"template" was missing or empty.` {
			t.Fatalf("expected missing-template error, got %+v", errs)
		}
	})
}

// TestApplyTemplates tests the pre-tokenization substitution pass
func TestApplyTemplates(t *testing.T) {
	templates, errs := CompileTemplates([]TemplateSpec{
		{Template: `\d{3}-\d{4}`, Mask: "phone"},
		{Template: `ref#\d+`, Mask: "~Ticket~"},
	})
	if len(errs) != 0 {
		t.Fatalf("compile errors: %v", errs)
	}

	t.Run("ReplacesAllMatches", func(t *testing.T) {
		got := ApplyTemplates("call 555-1234 or 555-9876", templates)
		want := "call ~phone~ or ~phone~"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("AppliesInOrder", func(t *testing.T) {
		got := ApplyTemplates("555-1234 ref#42", templates)
		want := "~phone~ ~ticket~"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("NoMatchUnchanged", func(t *testing.T) {
		line := "nothing to see"
		if got := ApplyTemplates(line, templates); got != line {
			t.Errorf("got %q, want unchanged input", got)
		}
	})
}

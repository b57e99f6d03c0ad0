package mask

import (
	"reflect"
	"testing"
)

// TestSplitOnChar tests the delimiter splitter
func TestSplitOnChar(t *testing.T) {
	cases := []struct {
		name string
		text string
		sep  rune
		want []string
	}{
		{"NoSeparator", "hello", ' ', []string{"hello"}},
		{"SingleSeparator", "this is", ' ', []string{"this", "", "is"}},
		{"DoubleSeparator", "this  is", ' ', []string{"this", "", "", "is"}},
		{"LeadingSeparator", " hello", ' ', []string{"", "hello"}},
		{"TrailingSeparator", "hello ", ' ', []string{"hello", ""}},
		{"OnlySeparators", "   ", ' ', []string{"", "", ""}},
		{"Empty", "", ' ', []string{""}},
		{"Hyphen", "555-1234", '-', []string{"555", "", "1234"}},
		{"Newline", "a\nb\nc", '\n', []string{"a", "", "b", "", "c"}},
		{"EmDash", "a—b", '—', []string{"a", "", "b"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitOnChar(tc.text, tc.sep)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("SplitOnChar(%q, %q) = %v, want %v", tc.text, tc.sep, got, tc.want)
			}
		})
	}
}

// TestSplitOnCharReconstructs verifies the split is lossless: emitting sep for
// every empty fragment rebuilds the input.
func TestSplitOnCharReconstructs(t *testing.T) {
	inputs := []string{"a b c", "  ", "a--b-", "-", "", "no-sep here", "trail  "}
	for _, in := range inputs {
		for _, sep := range []rune{' ', '-'} {
			var out []byte
			for _, part := range SplitOnChar(in, sep) {
				if part == "" {
					out = append(out, string(sep)...)
				} else {
					out = append(out, part...)
				}
			}
			// An empty input yields one empty fragment which must not
			// contribute a separator.
			want := in
			if in == "" {
				out = nil
			}
			if string(out) != want {
				t.Errorf("reconstructing %q split on %q: got %q", in, sep, out)
			}
		}
	}
}

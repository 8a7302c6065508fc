package imap

import (
	"testing"

	imapv2 "github.com/emersion/go-imap/v2"
)

func TestParseUIDSet(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "single uid", input: "7", want: "7"},
		{name: "list", input: "1,4", want: "1,4"},
		{name: "range", input: "2:9", want: "2:9"},
		{name: "mixed with spaces", input: "1, 3:5 ,8", want: "1,3:5,8"},
		{name: "reversed range", input: "9:2", want: "2:9"},
		{name: "empty", input: "", wantErr: true},
		{name: "only commas", input: ",,", wantErr: true},
		{name: "zero uid", input: "0", wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "bad range bound", input: "1:x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ParseUIDSet(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseUIDSet(%q) expected error, got %v", tt.input, set)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseUIDSet(%q) error = %v", tt.input, err)
			}
			if got := set.String(); got != tt.want {
				t.Errorf("ParseUIDSet(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []imapv2.Flag
		wantErr bool
	}{
		{
			name:  "well-known names",
			input: []string{"seen", "Flagged"},
			want:  []imapv2.Flag{imapv2.FlagSeen, imapv2.FlagFlagged},
		},
		{
			name:  "backslash form",
			input: []string{`\Deleted`, `\draft`},
			want:  []imapv2.Flag{imapv2.FlagDeleted, imapv2.FlagDraft},
		},
		{
			name:  "custom keyword",
			input: []string{"ProcessedByWorkflow"},
			want:  []imapv2.Flag{imapv2.Flag("ProcessedByWorkflow")},
		},
		{name: "unknown system flag", input: []string{`\Bogus`}, wantErr: true},
		{name: "empty list", input: nil, wantErr: true},
		{name: "only blanks", input: []string{"", "  "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, err := ParseFlags(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseFlags(%v) expected error, got %v", tt.input, flags)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFlags(%v) error = %v", tt.input, err)
			}
			if len(flags) != len(tt.want) {
				t.Fatalf("ParseFlags(%v) = %v, want %v", tt.input, flags, tt.want)
			}
			for i := range flags {
				if flags[i] != tt.want[i] {
					t.Errorf("flag[%d] = %q, want %q", i, flags[i], tt.want[i])
				}
			}
		})
	}
}

func TestSelectorValidate(t *testing.T) {
	if err := (Selector{}).validate(); err == nil {
		t.Error("Expected error for empty selector")
	}
	if err := (Selector{UIDSet: "1", MessageID: "<x@y>"}).validate(); err == nil {
		t.Error("Expected error when both UID set and Message-ID are given")
	}
	if err := (Selector{UIDSet: "1:3"}).validate(); err != nil {
		t.Errorf("validate() error = %v", err)
	}
	if err := (Selector{MessageID: "<x@y>"}).validate(); err != nil {
		t.Errorf("validate() error = %v", err)
	}
}

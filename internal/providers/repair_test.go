package providers

import "testing"

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{
			name:   "valid unchanged",
			in:     `{"a": 1}`,
			want:   `{"a": 1}`,
			wantOK: true,
		},
		{
			name:   "missing closing brace",
			in:     `{"a": 1`,
			want:   `{"a": 1}`,
			wantOK: true,
		},
		{
			name:   "truncated string value",
			in:     `{"code": "print(1)`,
			want:   `{"code": "print(1)"}`,
			wantOK: true,
		},
		{
			name:   "nested braces and brackets",
			in:     `{"a": {"b": [1, 2`,
			want:   `{"a": {"b": [1, 2]}}`,
			wantOK: true,
		},
		{
			name:   "escaped quote inside string",
			in:     `{"s": "say \"hi`,
			want:   `{"s": "say \"hi"}`,
			wantOK: true,
		},
		{
			name:   "brace inside string not counted",
			in:     `{"s": "a { b`,
			want:   `{"s": "a { b"}`,
			wantOK: true,
		},
		{
			name:   "hopeless input",
			in:     `not json at all{{`,
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RepairJSON(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("RepairJSON(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if tt.wantOK && got != tt.want {
				t.Errorf("RepairJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRepairJSONIdempotent(t *testing.T) {
	in := `{"a": {"b": [1, "c`
	once, ok := RepairJSON(in)
	if !ok {
		t.Fatalf("first repair failed for %q", in)
	}
	twice, ok := RepairJSON(once)
	if !ok || twice != once {
		t.Errorf("repair not idempotent: %q -> %q", once, twice)
	}
}

func TestParseToolArguments(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantOK  bool
		wantKey string
	}{
		{name: "empty is empty map", raw: "", wantOK: true},
		{name: "whitespace only", raw: "  \n", wantOK: true},
		{name: "valid", raw: `{"path": "a.md"}`, wantOK: true, wantKey: "path"},
		{name: "truncated gets repaired", raw: `{"path": "a.md`, wantOK: true, wantKey: "path"},
		{name: "irreparable", raw: `[[[`, wantOK: false},
		{name: "non-object", raw: `42`, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, ok := ParseToolArguments(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseToolArguments(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if tt.wantOK && args == nil {
				t.Fatal("ok result with nil map")
			}
			if tt.wantKey != "" {
				if _, present := args[tt.wantKey]; !present {
					t.Errorf("args = %v, want key %q", args, tt.wantKey)
				}
			}
		})
	}
}

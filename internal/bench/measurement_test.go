package bench

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"definition", ModeDefinition, false},
		{"completion", ModeCompletion, false},
		{"hover", ModeHover, false},
		{"", ModeDefinition, true},
		{"references", ModeDefinition, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestCountResults(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"absent", "", 0},
		{"null", "null", 0},
		{"empty array", "[]", 0},
		{"array of three", `[{"uri":"a"},{"uri":"b"},{"uri":"c"}]`, 3},
		{"completion list", `{"isIncomplete":false,"items":[{"label":"x"},{"label":"y"}]}`, 2},
		{"completion list empty", `{"isIncomplete":false,"items":[]}`, 0},
		{"single location object", `{"uri":"file:///a.go","range":{}}`, 1},
		{"hover object", `{"contents":"doc text"}`, 1},
		{"scalar", `42`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountResults([]byte(tt.raw)); got != tt.want {
				t.Errorf("CountResults(%s) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

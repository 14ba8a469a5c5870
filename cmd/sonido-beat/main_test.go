package main

import "testing"

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"file", []string{"-file", "a.wav"}, false},
		{"dir with workers", []string{"-dir", "songs", "-workers", "4", "-verbose"}, false},
		{"neither", nil, true},
		{"both", []string{"-file", "a.wav", "-dir", "songs"}, true},
		{"negative workers", []string{"-file", "a.wav", "-workers", "-1"}, true},
		{"unknown flag", []string{"-file", "a.wav", "-bogus"}, true},
		{"log level", []string{"-file", "a.wav", "-log-level", "warn"}, false},
		{"bad log level", []string{"-file", "a.wav", "-log-level", "loud"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFlags(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && opts.file == "" && opts.dir == "" {
				t.Error("no input selected")
			}
		})
	}
}

package web

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		name string
		args []string
		err  error
	}{
		{"/save 1", "save", []string{"1"}, nil},
		{"  /GO 东 ", "go", []string{"东"}, nil},
		{"/archive", "archive", nil, nil},
		{"/tone  诙谐", "tone", []string{"诙谐"}, nil},
		{"走吧", "", nil, errNotACommand},
		{"/", "", nil, errNotACommand},
	}
	for _, tt := range tests {
		cmd, err := ParseCommand(tt.text)
		if !errors.Is(err, tt.err) {
			t.Errorf("%q: err = %v, want %v", tt.text, err, tt.err)
			continue
		}
		if cmd.Name != tt.name || !reflect.DeepEqual(cmd.Args, tt.args) {
			t.Errorf("%q: got %q %v", tt.text, cmd.Name, cmd.Args)
		}
	}
}

func TestIntArg(t *testing.T) {
	if _, err := (Command{Name: "save"}).intArg(); !errors.Is(err, errMissingArg) {
		t.Fatalf("err = %v", err)
	}
	if _, err := (Command{Name: "save", Args: []string{"x"}}).intArg(); !errors.Is(err, errBadArg) {
		t.Fatalf("err = %v", err)
	}
	if n, err := (Command{Name: "save", Args: []string{"3"}}).intArg(); err != nil || n != 3 {
		t.Fatalf("n = %d, err = %v", n, err)
	}
}

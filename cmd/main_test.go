package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type stepRecorder struct{ steps []string }

type recordingServer struct {
	r   *stepRecorder
	err error
}

func (s recordingServer) Shutdown(context.Context) error {
	s.r.steps = append(s.r.steps, "shutdown")
	return s.err
}

type recordingArchiver struct{ r *stepRecorder }

func (a recordingArchiver) ArchiveWorld(context.Context) error {
	a.r.steps = append(a.r.steps, "archive")
	return nil
}

func TestShutdownDrainsBeforeArchiving(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"clean", nil},
		{"forced", errors.New("deadline exceeded")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stepRecorder{}
			shutdown(context.Background(), zerolog.Nop(), recordingServer{r: r, err: tt.err}, recordingArchiver{r: r})
			if got := strings.Join(r.steps, ","); got != "shutdown,archive" {
				t.Fatalf("steps = %s", got)
			}
		})
	}
}

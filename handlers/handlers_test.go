package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/parcelworks/courier/job"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegister(t *testing.T) {
	reg := job.NewRegistry()
	Register(reg, discardLogger())

	want := []string{"resize_image", "send_email"}
	got := reg.Types()
	if len(got) != len(want) {
		t.Fatalf("Types() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Types()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	opts, ok := reg.Options("resize_image")
	if !ok {
		t.Fatal("Options(resize_image) not found")
	}
	if opts.MaxRetries != 5 {
		t.Errorf("resize_image MaxRetries = %d, want 5", opts.MaxRetries)
	}
}

func TestSendEmail_Validation(t *testing.T) {
	reg := job.NewRegistry()
	Register(reg, discardLogger())

	handler, ok := reg.Get("send_email")
	if !ok {
		t.Fatal("send_email handler not registered")
	}

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"to":"a@example.com","subject":"hi"}`, false},
		{"missing recipient", `{"subject":"hi"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler(context.Background(), json.RawMessage(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("handler error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResizeImage_Validation(t *testing.T) {
	reg := job.NewRegistry()
	Register(reg, discardLogger())

	handler, ok := reg.Get("resize_image")
	if !ok {
		t.Fatal("resize_image handler not registered")
	}

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"source_url":"https://example.com/a.png","width":100,"height":80}`, false},
		{"missing source", `{"width":100,"height":80}`, true},
		{"zero width", `{"source_url":"https://example.com/a.png","width":0,"height":80}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler(context.Background(), json.RawMessage(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("handler error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"islet/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
	gotReq     *http.Request
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.gotReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func TestFetch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		transport *mockTransport
		want      string
		wantErr   bool
	}{
		{
			name:      "successful fetch",
			transport: &mockTransport{body: "<rss/>", statusCode: 200},
			want:      "<rss/>",
		},
		{
			name:      "http error status",
			transport: &mockTransport{body: "not found", statusCode: 404},
			wantErr:   true,
		},
		{
			name:      "network error",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.transport)
			got, err := f.Fetch(ctx, "https://example.com/rss")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Fetch = %q, want %q", got, tt.want)
			}
			if ua := tt.transport.gotReq.Header.Get("User-Agent"); ua != userAgent {
				t.Errorf("User-Agent = %q, want %q", ua, userAgent)
			}
		})
	}
}

func TestFetchBodyIsBounded(t *testing.T) {
	huge := strings.Repeat("x", 2*model.FeedSizeLimit)
	f := New(&mockTransport{body: huge, statusCode: 200})

	got, err := f.Fetch(context.Background(), "https://example.com/rss")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != model.FeedSizeLimit {
		t.Errorf("body length = %d, want the %d byte cap", len(got), model.FeedSizeLimit)
	}
}

func TestFetchLocalFile(t *testing.T) {
	f := New(nil)

	got, err := f.Fetch(context.Background(), "../../testdata/rss.xml")
	if err != nil {
		t.Fatalf("fetch local: %v", err)
	}
	want, err := os.ReadFile("../../testdata/rss.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("local fetch does not match the file contents")
	}

	if _, err := f.Fetch(context.Background(), "no/such/file.xml"); err == nil {
		t.Error("fetching a missing local file succeeded")
	}
}

func TestNewWithProxy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     model.AppConfig
		wantErr bool
	}{
		{name: "no proxy configured", cfg: model.AppConfig{UseProxy: true}},
		{name: "proxy disabled", cfg: model.AppConfig{HTTPProxy: "http://localhost:1080", UseProxy: false}},
		{name: "proxy enabled", cfg: model.AppConfig{HTTPProxy: "http://localhost:1080", UseProxy: true}},
		{name: "bad proxy url", cfg: model.AppConfig{HTTPProxy: "://bad", UseProxy: true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWithProxy(&tt.cfg)
			if tt.wantErr && err == nil {
				t.Fatal("expected an error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("new with proxy: %v", err)
			}
		})
	}
}

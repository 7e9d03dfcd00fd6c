package source

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"rownest/internal/config"
	"rownest/internal/nest"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestFile_DispatchesOnFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		file   string
		body   string
		format string
		want   []nest.Row
	}{
		{
			name:   "csv",
			file:   "rows.csv",
			body:   "id,name\n1,A\n",
			format: config.FormatCSV,
			want:   []nest.Row{{"id": "1", "name": "A"}},
		},
		{
			name:   "json",
			file:   "rows.json",
			body:   `[{"id":"1","name":"A"}]`,
			format: config.FormatJSON,
			want:   []nest.Row{{"id": "1", "name": "A"}},
		},
		{
			name:   "html",
			file:   "rows.html",
			body:   `<table><tr><th>id</th><th>name</th></tr><tr><td>1</td><td>A</td></tr></table>`,
			format: config.FormatHTML,
			want:   []nest.Row{{"id": "1", "name": "A"}},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := writeFile(t, tc.file, tc.body)
			src, err := New(context.Background(), config.Source{Kind: config.SourceFile, Path: path, Format: tc.format})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer src.Close()

			got, err := src.Rows(context.Background())
			if err != nil {
				t.Fatalf("Rows: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("rows=%#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestFile_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	if _, err := NewFile(ctx, config.Source{Kind: config.SourceFile, Format: config.FormatCSV}); err == nil {
		t.Fatalf("expected error for missing path")
	}
	_, err := NewFile(ctx, config.Source{Kind: config.SourceFile, Path: "x.xml", Format: "xml"})
	if err == nil || !strings.Contains(err.Error(), `unsupported format "xml"`) {
		t.Fatalf("err=%v", err)
	}

	src, err := NewFile(ctx, config.Source{Path: filepath.Join(t.TempDir(), "missing.csv"), Format: config.FormatCSV})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if _, err := src.Rows(ctx); err == nil || !strings.Contains(err.Error(), "open ") {
		t.Fatalf("err=%v, want open error", err)
	}

	bad := writeFile(t, "bad.json", `[{"a":{"b":1}}]`)
	src, err = NewFile(ctx, config.Source{Path: bad, Format: config.FormatJSON})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if _, err := src.Rows(ctx); err == nil || !strings.Contains(err.Error(), "parse "+bad) {
		t.Fatalf("err=%v, want parse error naming the file", err)
	}
}

func TestExample(t *testing.T) {
	t.Parallel()

	src, err := New(context.Background(), config.Source{Kind: config.SourceExample})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rows, err := src.Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows)=%d, want 3", len(rows))
	}
}

func TestNew_UnknownKind(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), config.Source{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	_, err := New(context.Background(), config.Source{Kind: "ftp"})
	if err == nil || !strings.Contains(err.Error(), "unsupported source.kind=ftp") {
		t.Fatalf("err=%v", err)
	}
}

func TestRegister_Panics(t *testing.T) {
	t.Parallel()

	f := func(context.Context, config.Source) (Source, error) { return Example{}, nil }
	tests := []struct {
		name string
		kind string
		f    Factory
	}{
		{name: "empty_kind", kind: "", f: f},
		{name: "nil_factory", kind: "x", f: nil},
		{name: "duplicate", kind: config.SourceFile, f: f},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			Register(tc.kind, tc.f)
		})
	}
}

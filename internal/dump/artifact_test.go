package dump

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	apperrors "db-sync-tool/internal/errors"
)

func TestFileName(t *testing.T) {
	now := time.Date(2026, 8, 29, 14, 5, 0, 0, time.UTC)

	if got := FileName("app_db", "", now); got != "_app_db_2026-08-29_14-05.sql.gz" {
		t.Errorf("FileName() = %q", got)
	}
	if got := FileName("app_db", "nightly", now); got != "nightly.sql.gz" {
		t.Errorf("FileName() with override = %q", got)
	}
}

func writeGzippedDump(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.sql.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

const validDump = `-- MySQL dump 10.13
CREATE TABLE ` + "`users`" + ` (id int);
INSERT INTO users VALUES (1);
CREATE TABLE ` + "`orders`" + ` (id int);

-- Dump completed on 2026-08-29 14:05:00
`

func TestVerifyLocalFile(t *testing.T) {
	path := writeGzippedDump(t, validDump)

	tables, err := VerifyLocalFile(path)
	if err != nil {
		t.Fatalf("VerifyLocalFile() error = %v", err)
	}
	if tables != 2 {
		t.Errorf("VerifyLocalFile() tables = %d, want 2", tables)
	}
}

func TestVerifyLocalFileTruncatedDump(t *testing.T) {
	path := writeGzippedDump(t, "CREATE TABLE `users` (id int);\nINSERT INTO users VALUES (1);\n")

	_, err := VerifyLocalFile(path)
	if err == nil {
		t.Fatal("VerifyLocalFile() expected error for missing trailer")
	}
	if apperrors.TypeOf(err) != apperrors.ErrorTypeDatabase {
		t.Errorf("error type = %v, want database", apperrors.TypeOf(err))
	}
}

func TestVerifyLocalFileNotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.sql.gz")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyLocalFile(path); err == nil {
		t.Fatal("VerifyLocalFile() expected error for non-gzip content")
	}
}

func TestVerifyTrailerLine(t *testing.T) {
	if err := VerifyTrailerLine("-- Dump completed on 2026-08-29 14:05:00"); err != nil {
		t.Errorf("VerifyTrailerLine() unexpected error: %v", err)
	}
	if err := VerifyTrailerLine("INSERT INTO users VALUES (1);"); err == nil {
		t.Error("VerifyTrailerLine() expected error for non-trailer line")
	}
}

func TestCheckTableCount(t *testing.T) {
	live := []string{"users", "orders", "cache_pages", "cache_menus"}

	if err := CheckTableCount(2, live, []string{"cache_pages", "cache_menus"}); err != nil {
		t.Errorf("CheckTableCount() unexpected error: %v", err)
	}
	err := CheckTableCount(3, live, []string{"cache_pages", "cache_menus"})
	if err == nil {
		t.Fatal("CheckTableCount() expected mismatch error")
	}
	if apperrors.TypeOf(err) != apperrors.ErrorTypeDatabase {
		t.Errorf("error type = %v, want database", apperrors.TypeOf(err))
	}
}

func TestParseServerVersion(t *testing.T) {
	tests := []struct {
		raw        string
		wantSystem string
		wantVer    string
	}{
		{"8.0.36", "MySQL", "8.0.36"},
		{"5.5.62-log", "MySQL", "5.5.62"},
		{"10.11.6-MariaDB-1:10.11.6+maria~ubu2204", "MariaDB", "10.11.6"},
	}
	for _, tt := range tests {
		system, version := ParseServerVersion(tt.raw)
		if system != tt.wantSystem || version != tt.wantVer {
			t.Errorf("ParseServerVersion(%q) = %q %q, want %q %q",
				tt.raw, system, version, tt.wantSystem, tt.wantVer)
		}
	}
}

func TestSupportsNoTablespaces(t *testing.T) {
	tests := []struct {
		system  string
		version string
		want    bool
	}{
		{"MySQL", "8.0.36", true},
		{"MySQL", "5.6.0", true},
		{"MySQL", "5.5.62", false},
		{"MariaDB", "10.11.6", true},
		{"MySQL", "", true},
	}
	for _, tt := range tests {
		if got := SupportsNoTablespaces(tt.system, tt.version); got != tt.want {
			t.Errorf("SupportsNoTablespaces(%q, %q) = %v, want %v",
				tt.system, tt.version, got, tt.want)
		}
	}
}

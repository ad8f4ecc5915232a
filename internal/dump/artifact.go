// Package dump names, inspects and verifies database dump artifacts.
package dump

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	apperrors "db-sync-tool/internal/errors"
)

// completedTrailer is the line mysqldump appends to a successful dump.
const completedTrailer = "-- Dump completed on"

// Artifact describes one dump file as it moves through the pipeline.
type Artifact struct {
	// FileName is the bare file name, identical on origin and target.
	FileName string
	// SizeBytes is filled in after the dump step where it is cheap to
	// obtain; zero means unknown.
	SizeBytes int64
	// TableCount is the number of CREATE TABLE statements found during
	// verification; -1 means not counted.
	TableCount int
}

// FileName builds the dump file name: the configured name when given,
// otherwise _<database>_<timestamp>.sql, always with a .gz suffix
// since dumps are piped through gzip.
func FileName(databaseName, configuredName string, now time.Time) string {
	if configuredName != "" {
		return configuredName + ".sql.gz"
	}
	return fmt.Sprintf("_%s_%s.sql.gz", databaseName, now.Format("2006-01-02_15-04"))
}

// VerifyLocalFile checks a dump on the local disk: the gzip stream
// must end in the mysqldump completion trailer. It returns the number
// of CREATE TABLE statements seen on the way.
func VerifyLocalFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, apperrors.New(apperrors.ErrorTypeDatabase,
			fmt.Sprintf("cannot open dump %s", path), err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, apperrors.New(apperrors.ErrorTypeDatabase,
				fmt.Sprintf("dump %s is not a valid gzip stream", path), err)
		}
		defer gz.Close()
		reader = gz
	}

	tables, lastLine, err := scanDump(reader)
	if err != nil {
		return 0, apperrors.New(apperrors.ErrorTypeDatabase,
			fmt.Sprintf("cannot read dump %s", path), err)
	}
	if !strings.Contains(lastLine, completedTrailer) {
		return tables, apperrors.Newf(apperrors.ErrorTypeDatabase,
			"dump %s is corrupted: missing completion trailer", path)
	}
	return tables, nil
}

// VerifyTrailerLine checks the last line fetched from a remote dump.
func VerifyTrailerLine(line string) error {
	if !strings.Contains(line, completedTrailer) {
		return apperrors.Newf(apperrors.ErrorTypeDatabase,
			"dump is corrupted: missing completion trailer")
	}
	return nil
}

var createTableRe = regexp.MustCompile(`^CREATE TABLE`)

// scanDump streams through the dump counting CREATE TABLE statements
// and remembering the last non-empty line. Dumps can be large, so
// nothing is held in memory beyond the current line.
func scanDump(r io.Reader) (int, string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	count := 0
	last := ""
	for scanner.Scan() {
		line := scanner.Text()
		if createTableRe.MatchString(line) {
			count++
		}
		if strings.TrimSpace(line) != "" {
			last = line
		}
	}
	return count, last, scanner.Err()
}

// CheckTableCount compares the number of exported tables against the
// live table list minus the ignored tables. A mismatch means the dump
// does not contain what it should and the sync must not proceed.
func CheckTableCount(exported int, liveTables, ignored []string) error {
	ignoredSet := make(map[string]bool, len(ignored))
	for _, t := range ignored {
		ignoredSet[t] = true
	}
	expected := 0
	for _, t := range liveTables {
		if !ignoredSet[t] {
			expected++
		}
	}
	if exported != expected {
		return apperrors.Newf(apperrors.ErrorTypeDatabase,
			"dump contains %d tables, expected %d", exported, expected)
	}
	return nil
}

// ParseServerVersion splits a SELECT VERSION() result into the engine
// flavor and the bare semantic version. MariaDB announces itself in
// the version string; everything else is treated as MySQL.
func ParseServerVersion(raw string) (system string, version string) {
	system = "MySQL"
	if strings.Contains(strings.ToLower(raw), "mariadb") {
		system = "MariaDB"
	}
	if m := versionRe.FindString(raw); m != "" {
		version = m
	}
	return system, version
}

var versionRe = regexp.MustCompile(`\d+(\.\d+){0,2}`)

// SupportsNoTablespaces reports whether mysqldump accepts the
// --no-tablespaces option. MySQL introduced it in 5.6; MariaDB always
// has it.
func SupportsNoTablespaces(system, version string) bool {
	if system == "MariaDB" || version == "" {
		return true
	}
	parts := strings.SplitN(version, ".", 3)
	major := atoi(parts[0])
	minor := 0
	if len(parts) > 1 {
		minor = atoi(parts[1])
	}
	if major != 5 {
		return major > 5
	}
	return minor >= 6
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}

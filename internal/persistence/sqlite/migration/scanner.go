package migration

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

type fsScanner struct {
	fsys fs.FS
	dir  string
}

// NewScanner returns a Scanner reading *.sql files from dir within fsys.
func NewScanner(fsys fs.FS, dir string) Scanner {
	if dir == "" {
		dir = "."
	}
	return &fsScanner{fsys: fsys, dir: dir}
}

// ScanMigrations returns the migrations sorted by numeric version.
func (s *fsScanner) ScanMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, NewMigrationError("", s.dir, "read directory", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m, err := s.parse(entry.Name())
		if err != nil {
			return nil, err
		}
		n, _ := strconv.Atoi(m.Version)
		if other, ok := seen[n]; ok {
			return nil, NewMigrationError(m.Version, entry.Name(), "check duplicates",
				fmt.Errorf("%w: %s and %s", ErrDuplicateVersion, other, entry.Name()))
		}
		seen[n] = entry.Name()
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return versionNumber(migrations[i].Version) < versionNumber(migrations[j].Version)
	})
	return migrations, nil
}

// ValidateFileName checks the {version}_{description}.sql convention.
func (s *fsScanner) ValidateFileName(name string) error {
	if !fileNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q does not match {version}_{description}.sql", ErrInvalidMigrationFile, name)
	}
	return nil
}

func (s *fsScanner) parse(name string) (Migration, error) {
	if err := s.ValidateFileName(name); err != nil {
		return Migration{}, NewMigrationError("", name, "validate filename", err)
	}
	matches := fileNamePattern.FindStringSubmatch(name)
	version, slug := matches[1], matches[2]

	filePath := path.Join(s.dir, name)
	raw, err := fs.ReadFile(s.fsys, filePath)
	if err != nil {
		return Migration{}, NewMigrationError(version, filePath, "read file", err)
	}
	content := string(raw)
	if len(splitStatements(content)) == 0 {
		return Migration{}, NewMigrationError(version, filePath, "validate content",
			fmt.Errorf("%w: no SQL statements", ErrInvalidMigrationFile))
	}
	if err := checkParentheses(content); err != nil {
		return Migration{}, NewMigrationError(version, filePath, "validate content", err)
	}

	description := descriptionFromContent(content)
	if description == "" {
		description = strings.ReplaceAll(slug, "_", " ")
	}
	return Migration{
		Version:     version,
		Description: description,
		SQL:         content,
		FilePath:    filePath,
		Checksum:    fmt.Sprintf("%x", sha256.Sum256(raw)),
	}, nil
}

// descriptionFromContent reads a leading "-- Description: ..." comment.
func descriptionFromContent(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		if rest, ok := strings.CutPrefix(line, "-- Description:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func checkParentheses(content string) error {
	depth := 0
	for _, r := range stripComments(content) {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: unmatched closing parenthesis", ErrInvalidMigrationFile)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: unmatched opening parenthesis", ErrInvalidMigrationFile)
	}
	return nil
}

func stripComments(content string) string {
	lines := strings.Split(content, "\n")
	out := lines[:0]
	for _, line := range lines {
		if i := strings.Index(line, "--"); i >= 0 {
			line = line[:i]
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// splitStatements splits on semicolons after removing line comments. The
// schema files keep string literals free of semicolons.
func splitStatements(content string) []string {
	var statements []string
	for _, stmt := range strings.Split(stripComments(content), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

func versionNumber(version string) int {
	n, _ := strconv.Atoi(version)
	return n
}

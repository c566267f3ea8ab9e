package migration

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/golang-migrate/migrate/v4/source"
)

// versionWidth matches the zero padded prefix of the shipped migrations
const versionWidth = 6

var fileTemplate = template.Must(template.New("migration").Parse(
	`-- Migration: {{.File.Name}}{{if .Down}} (Rollback){{end}}
-- Created: {{.File.Timestamp}}
-- Description: {{if .Down}}Rollback for {{end}}{{.File.Description}}

-- {{if .Down}}DOWN{{else}}UP{{end}} migration SQL

`))

// MigrationFile describes a freshly created up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	UpPath      string
	DownPath    string
}

// CreateMigration writes the next sequential pair into dir, creating dir if
// needed: 000003_add_mapping_notes.up.sql follows 000002_*. Existing files
// are never overwritten.
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create migrations directory: %w", err)
	}
	existing, err := scan(dir)
	if err != nil {
		return nil, err
	}
	var last uint
	for _, m := range existing {
		last = max(last, m.Version)
	}

	version := fmt.Sprintf("%0*d", versionWidth, last+1)
	base := filepath.Join(dir, version+"_"+sanitizeName(name))
	mf := &MigrationFile{
		Version:     version,
		Name:        name,
		Description: description,
		Timestamp:   time.Now().Format(time.RFC3339),
		UpPath:      base + ".up.sql",
		DownPath:    base + ".down.sql",
	}

	if err := writeTemplate(mf.UpPath, mf, false); err != nil {
		return nil, err
	}
	if err := writeTemplate(mf.DownPath, mf, true); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

func writeTemplate(path string, mf *MigrationFile, down bool) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	err = fileTemplate.Execute(f, struct {
		File *MigrationFile
		Down bool
	}{mf, down})
	return errors.Join(err, f.Close())
}

// sanitizeName lowercases name and joins its words with underscores.
// Characters other than letters, digits and separators are dropped.
func sanitizeName(name string) string {
	kept := strings.Map(func(r rune) rune {
		switch {
		case r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return unicode.ToLower(r)
		case r == ' ' || r == '-' || r == '_':
			return '_'
		default:
			return -1
		}
	}, name)
	return strings.Join(strings.FieldsFunc(kept, func(r rune) bool { return r == '_' }), "_")
}

// ListMigrations returns the base names of the up migrations in dir in
// version order. A missing directory has none.
func ListMigrations(dir string) ([]string, error) {
	found, err := scan(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(found))
	for i, m := range found {
		names[i] = strings.TrimSuffix(m.Raw, ".up.sql")
	}
	return names, nil
}

// scan parses the up migrations in dir with golang-migrate's file name rules
func scan(dir string) ([]*source.Migration, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var ups []*source.Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m, err := source.Parse(e.Name())
		if err != nil || m.Direction != source.Up {
			continue
		}
		ups = append(ups, m)
	}
	slices.SortFunc(ups, func(a, b *source.Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return ups, nil
}

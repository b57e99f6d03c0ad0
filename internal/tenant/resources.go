package tenant

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/whitemask/maskd/internal/mask"
)

// Per-tenant resource file names.
const (
	whitelistFile   = "whitelist-words.json"
	namesFile       = "names.json"
	geolocationFile = "geolocations.json"
	profanityFile   = "profanities.json"

	domainPrefixFile = "DomainPrefixes.txt"
	domainSuffixFile = "DomainSuffixes.txt"
	queryStringFile  = "QueryStringContains.txt"

	templateFile = "maskTemplates.json"
)

// templateConfig is the on-disk shape of maskTemplates.json. The file is
// optional; a tenant without one masks numbers and applies no templates.
type templateConfig struct {
	MaskNumbers *bool               `json:"maskNumbers,omitempty"`
	Templates   []mask.TemplateSpec `json:"templates,omitempty"`
}

// loadTables reads every resource file in dir and assembles the lookup
// tables. Word files and filter lists are required; maskTemplates.json is
// optional. Templates that fail to compile are skipped and returned as
// template errors; the remaining templates still apply.
func loadTables(dir string) (*mask.Tables, []mask.TemplateError, error) {
	tables := &mask.Tables{MaskNumbers: true}

	var err error
	if tables.Whitelist, err = loadWordSet(filepath.Join(dir, whitelistFile)); err != nil {
		return nil, nil, err
	}
	if tables.Names, err = loadWordSet(filepath.Join(dir, namesFile)); err != nil {
		return nil, nil, err
	}
	if tables.Geolocations, err = loadWordSet(filepath.Join(dir, geolocationFile)); err != nil {
		return nil, nil, err
	}
	if tables.Profanities, err = loadWordSet(filepath.Join(dir, profanityFile)); err != nil {
		return nil, nil, err
	}
	if tables.DomainPrefixes, err = loadFilterList(filepath.Join(dir, domainPrefixFile)); err != nil {
		return nil, nil, err
	}
	if tables.DomainSuffixes, err = loadFilterList(filepath.Join(dir, domainSuffixFile)); err != nil {
		return nil, nil, err
	}
	if tables.QueryStringFilters, err = loadFilterList(filepath.Join(dir, queryStringFile)); err != nil {
		return nil, nil, err
	}

	cfg, err := loadTemplateConfig(filepath.Join(dir, templateFile))
	if err != nil {
		return nil, nil, err
	}
	if cfg.MaskNumbers != nil {
		tables.MaskNumbers = *cfg.MaskNumbers
	}
	templates, terrs := mask.CompileTemplates(cfg.Templates)
	tables.Templates = templates

	return tables, terrs, nil
}

// loadWordSet reads a JSON object and returns its keys, lowercased, as a
// presence set.
func loadWordSet(path string) (mask.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingResource, filepath.Base(path))
		}
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	var words map[string]json.RawMessage
	if err := json.Unmarshal(data, &words); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	set := make(mask.Set, len(words))
	for word := range words {
		set[strings.ToLower(word)] = struct{}{}
	}
	return set, nil
}

// loadFilterList reads one entry per line; blank lines and lines starting
// with "_" are skipped, entries are trimmed and lowercased.
func loadFilterList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingResource, filepath.Base(path))
		}
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "_") {
			continue
		}
		entries = append(entries, strings.ToLower(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

func loadTemplateConfig(path string) (*templateConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &templateConfig{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	cfg := &templateConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// writeTemplateConfig persists the tenant's template list so that snapshot
// swaps survive a restart.
func writeTemplateConfig(dir string, maskNumbers bool, specs []mask.TemplateSpec) error {
	cfg := templateConfig{MaskNumbers: &maskNumbers, Templates: specs}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, templateFile), data, 0o644)
}

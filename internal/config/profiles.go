// =============================================================================
// Aging Report Converter - Input Profiles
// =============================================================================
//
// An input profile describes one layout of the vendor aging export:
//   - how many leading rows (report title, blank separator) to skip
//   - whether columns are fixed by position or read from a header row
//   - whether a Select column decides which rows are imported
//   - whether the output is split into bills and vendor credits
//
// BUILT-IN PROFILES:
//   fixed9-skip1    9 columns, 1 skipped row, single output
//   fixed9-skip2    9 columns, 2 skipped rows, bills + credits
//   fixed11-select  11 columns (adds Select, Notes), 2 skipped rows, bills + credits
//   header          header row validated, single output
//   auto            inspect the first rows and pick a layout, bills + credits
//
// Additional profiles can be declared as YAML files in the profiles directory.
//
// =============================================================================

package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/report"
)

// Layouts.
const (
	LayoutFixed  = "fixed"
	LayoutHeader = "header"
	LayoutAuto   = "auto"
)

// Select modes.
const (
	// SelectNone ignores any Select column.
	SelectNone = "none"

	// SelectRequired requires Select and Notes columns and keeps only rows
	// marked "x".
	SelectRequired = "required"

	// SelectIfPresent applies the Select filter only when the column exists.
	SelectIfPresent = "if_present"
)

// Built-in profile names.
const (
	ProfileFixed9Skip1   = "fixed9-skip1"
	ProfileFixed9Skip2   = "fixed9-skip2"
	ProfileFixed11Select = "fixed11-select"
	ProfileHeader        = "header"
	ProfileAuto          = "auto"
)

// =============================================================================
// PROFILE STRUCTURE
// =============================================================================

// Profile holds the parsing and output rules for one aging export layout.
type Profile struct {
	// Name identifies the profile on the command line and in logs.
	Name string `yaml:"name"`

	// Description is shown by the "profiles" command.
	Description string `yaml:"description"`

	// FileMatchingPatterns is a list of glob patterns used by batch
	// processing to pick this profile for an input file.
	// Examples:
	//   - "aging_*.csv"
	//   - "*_unpaid_bills.xlsx"
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// Layout is "fixed", "header" or "auto".
	Layout string `yaml:"layout"`

	// SkipRows is the number of leading lines (CSV) or rows (XLSX) that are
	// discarded before parsing. Blank lines count.
	SkipRows int `yaml:"skip_rows"`

	// Columns is the positional column list of a fixed layout.
	Columns []string `yaml:"columns,omitempty"`

	// SelectMode is "none", "required" or "if_present".
	SelectMode string `yaml:"select_mode"`

	// SplitCredits partitions the output into bills (positive amounts) and
	// vendor credits (negative amounts).
	SplitCredits bool `yaml:"split_credits"`

	// Encoding overrides the main config encoding for this profile.
	Encoding string `yaml:"encoding,omitempty"`

	// Delimiter overrides the main config delimiter for this profile.
	Delimiter string `yaml:"delimiter,omitempty"`

	// Sheet names the worksheet to read from XLSX inputs.
	// Default: the first sheet.
	Sheet string `yaml:"sheet,omitempty"`
}

// Selects reports whether the profile filters rows by the Select column.
// For SelectIfPresent the caller still has to check the column exists.
func (p *Profile) Selects() bool {
	return p.SelectMode == SelectRequired || p.SelectMode == SelectIfPresent
}

// Validate checks that the profile is internally consistent.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is empty")
	}
	if p.SkipRows < 0 {
		return fmt.Errorf("profile %q: skip_rows must not be negative", p.Name)
	}

	switch p.SelectMode {
	case SelectNone, SelectRequired, SelectIfPresent:
	default:
		return fmt.Errorf("profile %q: unknown select_mode %q", p.Name, p.SelectMode)
	}

	switch p.Layout {
	case LayoutFixed:
		if len(p.Columns) == 0 {
			return fmt.Errorf("profile %q: fixed layout needs a column list", p.Name)
		}
		missing := report.MissingColumns(p.Columns, p.requiredColumns())
		if len(missing) > 0 {
			return fmt.Errorf("profile %q: column list lacks %s", p.Name, strings.Join(missing, ", "))
		}
	case LayoutHeader, LayoutAuto:
		if len(p.Columns) > 0 {
			return fmt.Errorf("profile %q: columns are only allowed with the fixed layout", p.Name)
		}
	default:
		return fmt.Errorf("profile %q: unknown layout %q", p.Name, p.Layout)
	}

	if p.Encoding != "" {
		if _, err := NormalizeEncoding(p.Encoding); err != nil {
			return fmt.Errorf("profile %q: %w", p.Name, err)
		}
	}

	return nil
}

// requiredColumns returns the logical columns the profile depends on.
func (p *Profile) requiredColumns() []string {
	cols := RequiredColumns()
	if p.SelectMode == SelectRequired {
		cols = append(cols, report.ColSelect, report.ColNotes)
	}
	return cols
}

// RequiredColumns returns the columns every aging export must provide.
func RequiredColumns() []string {
	return []string{
		report.ColVendor,
		report.ColDate,
		report.ColDueDate,
		report.ColOpenBalance,
		report.ColNum,
	}
}

// RequiredColumnsFor returns the columns a header row must provide for the
// given select mode.
func RequiredColumnsFor(selectMode string) []string {
	p := Profile{SelectMode: selectMode}
	return p.requiredColumns()
}

// applyProfileDefaults fills in unset profile fields.
func applyProfileDefaults(p *Profile) {
	if p.Layout == "" {
		if len(p.Columns) > 0 {
			p.Layout = LayoutFixed
		} else {
			p.Layout = LayoutHeader
		}
	}
	if p.SelectMode == "" {
		p.SelectMode = SelectNone
	}
}

// =============================================================================
// BUILT-IN PROFILES
// =============================================================================

// nineColumns is the standard aging detail export column order.
var nineColumns = []string{
	report.ColDate,
	report.ColTransactionType,
	report.ColNum,
	report.ColVendorDisplayName,
	report.ColVendor,
	report.ColDueDate,
	report.ColPastDue,
	report.ColAmount,
	report.ColOpenBalance,
}

// elevenColumns adds the bookkeeper's selection and notes columns.
var elevenColumns = append(append([]string{}, nineColumns...), report.ColSelect, report.ColNotes)

// FixedColumns returns the built-in positional column list with 9 or 11 columns.
func FixedColumns(withSelect bool) []string {
	if withSelect {
		return append([]string{}, elevenColumns...)
	}
	return append([]string{}, nineColumns...)
}

// Builtins returns fresh copies of the built-in profiles keyed by name.
func Builtins() map[string]*Profile {
	return map[string]*Profile{
		ProfileFixed9Skip1: {
			Name:        ProfileFixed9Skip1,
			Description: "9-column export after a one-line title; single import file",
			Layout:      LayoutFixed,
			SkipRows:    1,
			Columns:     FixedColumns(false),
			SelectMode:  SelectNone,
		},
		ProfileFixed9Skip2: {
			Name:         ProfileFixed9Skip2,
			Description:  "9-column export after title and blank rows; bills and vendor credits",
			Layout:       LayoutFixed,
			SkipRows:     2,
			Columns:      FixedColumns(false),
			SelectMode:   SelectNone,
			SplitCredits: true,
		},
		ProfileFixed11Select: {
			Name:         ProfileFixed11Select,
			Description:  "11-column export with Select/Notes; only rows marked x; bills and vendor credits",
			Layout:       LayoutFixed,
			SkipRows:     2,
			Columns:      FixedColumns(true),
			SelectMode:   SelectRequired,
			SplitCredits: true,
		},
		ProfileHeader: {
			Name:        ProfileHeader,
			Description: "first row is a header; required columns are validated; single import file",
			Layout:      LayoutHeader,
			SelectMode:  SelectNone,
		},
		ProfileAuto: {
			Name:         ProfileAuto,
			Description:  "detect the layout from the first rows; bills and vendor credits",
			Layout:       LayoutAuto,
			SelectMode:   SelectIfPresent,
			SplitCredits: true,
		},
	}
}

// =============================================================================
// PROFILE REGISTRY
// =============================================================================

// Registry resolves profile names and matches input files to profiles.
type Registry struct {
	profiles map[string]*Profile
	custom   []string // names of user-defined profiles, sorted
}

// NewRegistry merges the built-in profiles with user-defined ones.
// A user-defined profile replaces a built-in profile of the same name.
func NewRegistry(custom map[string]*Profile) *Registry {
	r := &Registry{profiles: Builtins()}
	for name, p := range custom {
		r.profiles[name] = p
		r.custom = append(r.custom, name)
	}
	sort.Strings(r.custom)
	return r
}

// Get returns a copy of the named profile.
func (r *Registry) Get(name string) (*Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	cp := *p
	cp.Columns = append([]string(nil), p.Columns...)
	return &cp, nil
}

// Names returns all profile names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsCustom reports whether the named profile came from a profile file.
func (r *Registry) IsCustom(name string) bool {
	i := sort.SearchStrings(r.custom, name)
	return i < len(r.custom) && r.custom[i] == name
}

// Match finds the profile whose file matching patterns match the file name.
// User-defined profiles are checked in name order. Returns nil if nothing matches.
func (r *Registry) Match(filePath string) *Profile {
	fileName := filepath.Base(filePath)

	for _, name := range r.Names() {
		p := r.profiles[name]
		for _, pattern := range p.FileMatchingPatterns {
			matched, err := filepath.Match(pattern, fileName)
			if err != nil {
				// Invalid pattern, skip it.
				continue
			}
			if matched {
				cp, _ := r.Get(name)
				return cp
			}
		}
	}

	return nil
}

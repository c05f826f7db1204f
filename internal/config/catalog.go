package config

import (
	"fmt"
	"maps"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Norgate-AV/lakefetch/internal/dataset"
	"github.com/Norgate-AV/lakefetch/internal/fetch"
	"github.com/Norgate-AV/lakefetch/internal/utils"
)

// Source kinds
const (
	SourceSidra = "sidra"
	SourceREST  = "rest"
)

// Boundary record checks applied to bronze payloads
const (
	CheckNone      = ""
	CheckSidra     = "sidra"
	CheckSanctions = "sanctions"
)

const (
	defaultSidraVariable = "allxp"
	defaultStartParam    = "mesAnoInicio"
	defaultEndParam      = "mesAnoFim"
)

// Catalog declares every source, dataset and transform lakefetch knows
type Catalog struct {
	Sources    []Source    `yaml:"sources"`
	Transforms []Transform `yaml:"transforms"`
}

type Source struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	BaseURL string `yaml:"base_url"`
	// Object key prefix, bronze/<name> when empty
	Prefix string `yaml:"prefix"`
	Auth   *Auth  `yaml:"auth"`
	// Keep cookies between requests to this source
	Session bool `yaml:"session"`
	// Overrides http.user_agent for this source
	UserAgent string    `yaml:"user_agent"`
	Datasets  []Dataset `yaml:"datasets"`
}

// Auth names the request header carrying an environment secret
type Auth struct {
	Header string `yaml:"header"`
	Env    string `yaml:"env"`
}

type Dataset struct {
	Name      string            `yaml:"name"`
	Filename  string            `yaml:"filename"`
	Endpoint  string            `yaml:"endpoint"`
	Params    map[string]string `yaml:"params"`
	Paginated bool              `yaml:"paginated"`
	Check     string            `yaml:"check"`
	Monthly   *MonthRange       `yaml:"monthly"`

	// SIDRA table coordinates
	Table           string `yaml:"table"`
	Variable        string `yaml:"variable"`
	Period          string `yaml:"period"`
	Classifications string `yaml:"classifications"`
}

// MonthRange expands one dataset into one request per month
type MonthRange struct {
	Start      string `yaml:"start"`
	End        string `yaml:"end"`
	StartParam string `yaml:"start_param"`
	EndParam   string `yaml:"end_param"`
}

type Transform struct {
	Name    string            `yaml:"name"`
	Kind    string            `yaml:"kind"`
	Output  string            `yaml:"output"`
	Inputs  []TransformInput  `yaml:"inputs"`
	Options map[string]string `yaml:"options"`
}

type TransformInput struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

// Job is one concrete bronze request after month expansion
type Job struct {
	Source    string
	Name      string
	Key       string
	URL       string
	Params    map[string]string
	Paginated bool
	Check     string
	Auth      *Auth
	Session   bool
	UserAgent string
}

// ID identifies the job on the command line, source/name
func (j Job) ID() string {
	return j.Source + "/" + j.Name
}

// Endpoint builds the request for the job. Secret header values are
// supplied by the caller since secrets never live in the catalog. Jobs of
// a session source share one cookie session named after the source.
func (j Job) Endpoint(header map[string]string) fetch.Endpoint {
	ep := fetch.Endpoint{URL: j.URL, Params: maps.Clone(j.Params), Header: maps.Clone(header)}

	if j.UserAgent != "" {
		if ep.Header == nil {
			ep.Header = map[string]string{}
		}
		ep.Header["User-Agent"] = j.UserAgent
	}

	if j.Session {
		ep.Session = j.Source
	}

	return ep
}

// LoadCatalog reads and validates a YAML or JSON catalog
func LoadCatalog(file string) (*Catalog, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Catalog) Validate() error {
	sources := map[string]bool{}

	for _, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source without a name")
		}

		if sources[s.Name] {
			return fmt.Errorf("duplicate source %q", s.Name)
		}
		sources[s.Name] = true

		if s.Kind != SourceSidra && s.Kind != SourceREST {
			return fmt.Errorf("source %s: invalid kind %q", s.Name, s.Kind)
		}

		if s.BaseURL == "" {
			return fmt.Errorf("source %s: base_url is required", s.Name)
		}

		if s.Auth != nil && s.Auth.Header == "" {
			return fmt.Errorf("source %s: auth.header is required", s.Name)
		}

		names := map[string]bool{}
		for _, d := range s.Datasets {
			if err := d.validate(s.Kind); err != nil {
				return fmt.Errorf("source %s: %w", s.Name, err)
			}

			if names[d.Name] {
				return fmt.Errorf("source %s: duplicate dataset %q", s.Name, d.Name)
			}
			names[d.Name] = true
		}
	}

	transforms := map[string]bool{}
	for _, t := range c.Transforms {
		if t.Name == "" {
			return fmt.Errorf("transform without a name")
		}

		if transforms[t.Name] {
			return fmt.Errorf("duplicate transform %q", t.Name)
		}
		transforms[t.Name] = true

		if _, err := dataset.Lookup(t.Kind); err != nil {
			return fmt.Errorf("transform %s: %w", t.Name, err)
		}

		if t.Output == "" {
			return fmt.Errorf("transform %s: output is required", t.Name)
		}

		if len(t.Inputs) == 0 {
			return fmt.Errorf("transform %s: at least one input is required", t.Name)
		}

		for _, in := range t.Inputs {
			if in.Key == "" {
				return fmt.Errorf("transform %s: input without a key", t.Name)
			}
		}
	}

	return nil
}

func (d Dataset) validate(kind string) error {
	if d.Name == "" {
		return fmt.Errorf("dataset without a name")
	}

	if d.Filename == "" {
		return fmt.Errorf("dataset %s: filename is required", d.Name)
	}

	switch d.Check {
	case CheckNone, CheckSidra, CheckSanctions:
	default:
		return fmt.Errorf("dataset %s: invalid check %q", d.Name, d.Check)
	}

	if kind == SourceSidra {
		if d.Table == "" || d.Period == "" {
			return fmt.Errorf("dataset %s: table and period are required", d.Name)
		}
		if d.Paginated || d.Monthly != nil {
			return fmt.Errorf("dataset %s: sidra datasets are neither paginated nor monthly", d.Name)
		}
		return nil
	}

	if d.Endpoint == "" {
		return fmt.Errorf("dataset %s: endpoint is required", d.Name)
	}

	if d.Monthly != nil {
		if _, err := utils.ExpandMonths(d.Monthly.Start, d.Monthly.End); err != nil {
			return fmt.Errorf("dataset %s: %w", d.Name, err)
		}
	}

	return nil
}

// Jobs expands every dataset of the selected sources into concrete jobs
// in declaration order. An empty selection means every source. A selector
// is either a source name or source/dataset.
func (c *Catalog) Jobs(selectors ...string) ([]Job, error) {
	var jobs []Job
	matched := map[string]bool{}

	for _, s := range c.Sources {
		for _, d := range s.Datasets {
			sel, ok := selected(selectors, s.Name, d.Name)
			if !ok {
				continue
			}
			matched[sel] = true

			expanded, err := expand(s, d)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, expanded...)
		}
	}

	for _, sel := range selectors {
		if !matched[sel] {
			return nil, fmt.Errorf("unknown source or dataset %q", sel)
		}
	}

	return jobs, nil
}

// FindTransforms returns the named transforms in declaration order, or
// all of them when names is empty
func (c *Catalog) FindTransforms(names ...string) ([]Transform, error) {
	if len(names) == 0 {
		return c.Transforms, nil
	}

	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}

	var out []Transform
	for _, t := range c.Transforms {
		if want[t.Name] {
			out = append(out, t)
			delete(want, t.Name)
		}
	}

	for _, n := range names {
		if want[n] {
			return nil, fmt.Errorf("unknown transform %q", n)
		}
	}

	return out, nil
}

func selected(selectors []string, source, name string) (string, bool) {
	if len(selectors) == 0 {
		return "", true
	}

	for _, sel := range selectors {
		if sel == source || sel == source+"/"+name {
			return sel, true
		}
	}

	return "", false
}

func expand(s Source, d Dataset) ([]Job, error) {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "bronze/" + s.Name
	}

	base := Job{
		Source:    s.Name,
		Name:      d.Name,
		Key:       path.Join(prefix, d.Filename),
		Paginated: d.Paginated,
		Check:     d.Check,
		Auth:      s.Auth,
		Session:   s.Session,
		UserAgent: strings.TrimSpace(s.UserAgent),
		Params:    maps.Clone(d.Params),
	}

	if s.Kind == SourceSidra {
		variable := d.Variable
		if variable == "" {
			variable = defaultSidraVariable
		}

		base.URL = fetch.JoinURL(s.BaseURL, dataset.SidraPath(d.Table, variable, d.Period, d.Classifications))
		if base.Check == CheckNone {
			base.Check = CheckSidra
		}

		return []Job{base}, nil
	}

	base.URL = fetch.JoinURL(s.BaseURL, d.Endpoint)
	if base.Params == nil {
		base.Params = map[string]string{}
	}

	if d.Monthly == nil {
		return []Job{base}, nil
	}

	startParam, endParam := d.Monthly.StartParam, d.Monthly.EndParam
	if startParam == "" {
		startParam = defaultStartParam
	}
	if endParam == "" {
		endParam = defaultEndParam
	}

	// A single-month range is one request with the original filename
	if strings.TrimSpace(d.Monthly.Start) == strings.TrimSpace(d.Monthly.End) {
		base.Params[startParam] = strings.TrimSpace(d.Monthly.Start)
		base.Params[endParam] = strings.TrimSpace(d.Monthly.End)
		return []Job{base}, nil
	}

	months, err := utils.ExpandMonths(d.Monthly.Start, d.Monthly.End)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.Name, err)
	}

	jobs := make([]Job, 0, len(months))
	for _, m := range months {
		job := base
		job.Params = maps.Clone(base.Params)
		job.Params[startParam] = utils.FormatMonthYear(m)
		job.Params[endParam] = utils.FormatMonthYear(m)

		file := utils.MonthlyFilename(d.Filename, m)
		job.Name = strings.TrimSuffix(file, path.Ext(file))
		job.Key = path.Join(prefix, file)

		jobs = append(jobs, job)
	}

	return jobs, nil
}

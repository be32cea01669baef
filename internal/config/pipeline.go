package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"

	"duck-pipeline/internal/domain"
)

// DefaultRawDBPath is used when raw_db.path is omitted.
const DefaultRawDBPath = "raw.duckdb"

// Target write modes.
const (
	IfExistsReplace = "replace"
	IfExistsAppend  = "append"
	IfExistsFail    = "fail"
)

// Pipeline is the parsed pipeline definition file.
type Pipeline struct {
	RawDB           RawDBSpec       `yaml:"raw_db"`
	Storage         StorageSpec     `yaml:"storage"`
	Sources         []SourceSpec    `yaml:"sources"`
	Transformations []TransformSpec `yaml:"transformations"`
	Targets         []TargetSpec    `yaml:"targets"`
	Target          TargetConnSpec  `yaml:"target"`
	Schedule        string          `yaml:"schedule,omitempty"`

	Path string `yaml:"-"` // file the pipeline was loaded from
}

// RawDBSpec locates the DuckDB catalog file.
type RawDBSpec struct {
	Path string `yaml:"path"`
}

// StorageSpec holds credentials for remote source paths.
type StorageSpec struct {
	S3 *S3Spec `yaml:"s3,omitempty"`
}

// S3Spec configures an S3-compatible object store.
type S3Spec struct {
	KeyID    string `yaml:"key_id"`
	Secret   string `yaml:"secret"`
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	URLStyle string `yaml:"url_style"` // "path" or "vhost"
}

// SourceSpec describes one file staged into raw.<table>.
type SourceSpec struct {
	Name   string `yaml:"name"`
	Table  string `yaml:"table"`
	Format string `yaml:"format"` // csv or parquet
	Path   string `yaml:"path"`
}

// TransformSpec is one raw transformations[] record. Which fields matter
// depends on Type; the rest are ignored.
type TransformSpec struct {
	Type        string     `yaml:"type"`
	Source      string     `yaml:"source,omitempty"`
	Condition   string     `yaml:"condition,omitempty"`
	Left        string     `yaml:"left,omitempty"`
	Right       string     `yaml:"right,omitempty"`
	LeftAlias   string     `yaml:"left_alias,omitempty"`
	RightAlias  string     `yaml:"right_alias,omitempty"`
	On          string     `yaml:"on,omitempty"`
	JoinType    string     `yaml:"join_type,omitempty"`
	Select      string     `yaml:"select,omitempty"`
	GroupBy     StringList `yaml:"group_by,omitempty"`
	Metrics     StringList `yaml:"metrics,omitempty"`
	Where       string     `yaml:"where,omitempty"`
	SQL         string     `yaml:"sql,omitempty"`
	Query       string     `yaml:"query,omitempty"` // alias of sql
	OutputTable string     `yaml:"output_table"`
}

// TargetSpec maps a catalog table (or query) to a table in the target database.
type TargetSpec struct {
	SourceTable  string `yaml:"source_table,omitempty"`
	Query        string `yaml:"query,omitempty"`
	TargetTable  string `yaml:"target_table"`
	TargetSchema string `yaml:"target_schema,omitempty"`
	IfExists     string `yaml:"if_exists,omitempty"`
}

// TargetConnSpec selects the external database. Exactly one must be set.
type TargetConnSpec struct {
	Postgres *PostgresSpec `yaml:"postgres,omitempty"`
	SQLite   *SQLiteSpec   `yaml:"sqlite,omitempty"`
}

// PostgresSpec holds Postgres connection settings. DSN, when set, wins over
// the individual fields.
type PostgresSpec struct {
	DSN      string `yaml:"dsn,omitempty"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode,omitempty"`
}

// SQLiteSpec points at a SQLite database file used as the target.
type SQLiteSpec struct {
	Path string `yaml:"path"`
}

// StringList accepts either a YAML sequence or a single scalar.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			*l = nil
			return nil
		}
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := node.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// envRefRe matches ${NAME} references. Bare $NAME is left alone because SQL
// fragments may legitimately contain $1-style parameters.
var envRefRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(data []byte) []byte {
	return envRefRe.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envRefRe.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// LoadPipeline reads a YAML (or JSON) pipeline file, expands ${VAR}
// references, and applies defaults. Unknown fields are ignored.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified config files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	p, err := ParsePipeline(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	p.Path = path
	return p, nil
}

// ParsePipeline decodes a pipeline definition from memory.
func ParsePipeline(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(expandEnv(data), &p); err != nil {
		return nil, err
	}
	p.applyDefaults()
	return &p, nil
}

func (p *Pipeline) applyDefaults() {
	if p.RawDB.Path == "" {
		p.RawDB.Path = DefaultRawDBPath
	}
	for i := range p.Sources {
		s := &p.Sources[i]
		s.Format = strings.ToLower(strings.TrimSpace(s.Format))
		if s.Name == "" {
			s.Name = s.Table
		}
	}
	for i := range p.Targets {
		t := &p.Targets[i]
		if t.TargetSchema == "" {
			t.TargetSchema = "public"
		}
		t.IfExists = strings.ToLower(strings.TrimSpace(t.IfExists))
		if t.IfExists == "" {
			t.IfExists = IfExistsReplace
		}
	}
	if p.Target.Postgres != nil {
		if p.Target.Postgres.Port == 0 {
			p.Target.Postgres.Port = 5432
		}
		if p.Target.Postgres.Password == "" {
			p.Target.Postgres.Password = os.Getenv("PGPASSWORD")
		}
	}
}

// Validate checks the sources and, unless skipTarget is set, the target
// section. Transformations are validated by the transform engine. Every
// problem found is returned, joined; each is a *domain.ConfigurationError.
func (p *Pipeline) Validate(skipTarget bool) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, domain.ErrConfiguration(format, args...))
	}

	if len(p.Sources) == 0 {
		add("config must include at least one source in 'sources'")
	}
	seen := make(map[string]int, len(p.Sources))
	for i, s := range p.Sources {
		where := fmt.Sprintf("sources[%d]", i)
		if s.Name != "" {
			where = fmt.Sprintf("source %q", s.Name)
		}
		key := strings.ToLower(s.Table)
		if s.Table == "" {
			add("%s: table is required", where)
		} else if prev, dup := seen[key]; dup {
			add("%s: table %q is already loaded by sources[%d]", where, s.Table, prev)
		} else {
			seen[key] = i
		}
		if s.Path == "" {
			add("%s: path is required", where)
		}
		if s.Format != "csv" && s.Format != "parquet" {
			add("%s: unsupported source format %q", where, s.Format)
		}
	}

	if !skipTarget {
		errs = append(errs, p.validateTarget()...)
	}
	return errors.Join(errs...)
}

func (p *Pipeline) validateTarget() []error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, domain.ErrConfiguration(format, args...))
	}

	switch {
	case p.Target.Postgres == nil && p.Target.SQLite == nil:
		add("config must include a target database under 'target.postgres' or 'target.sqlite'")
	case p.Target.Postgres != nil && p.Target.SQLite != nil:
		add("config must not set both 'target.postgres' and 'target.sqlite'")
	case p.Target.Postgres != nil:
		if _, err := p.Target.Postgres.ConnString(); err != nil {
			errs = append(errs, err)
		}
	case p.Target.SQLite.Path == "":
		add("target.sqlite: path is required")
	}

	if len(p.Targets) == 0 {
		add("config must include at least one target table under 'targets'")
	}
	for i, t := range p.Targets {
		where := fmt.Sprintf("targets[%d]", i)
		if t.TargetTable == "" {
			add("%s: target_table is required", where)
		}
		if (t.SourceTable == "") == (t.Query == "") {
			add("%s: exactly one of source_table or query is required", where)
		}
		switch t.IfExists {
		case IfExistsReplace, IfExistsAppend, IfExistsFail:
		default:
			add("%s: unsupported if_exists %q (expected replace, append or fail)", where, t.IfExists)
		}
	}
	return errs
}

// Fingerprint hashes the parsed definition so runs of the same pipeline can
// be told apart after the file changes. Formatting and comments in the
// source file do not affect it; expanded ${VAR} values do.
func (p *Pipeline) Fingerprint() string {
	data, err := yaml.Marshal(p)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// ConnString returns a pgx connection string.
func (s *PostgresSpec) ConnString() (string, error) {
	if s.DSN != "" {
		return s.DSN, nil
	}
	var missing []string
	if s.Host == "" {
		missing = append(missing, "host")
	}
	if s.Port == 0 {
		missing = append(missing, "port")
	}
	if s.Database == "" {
		missing = append(missing, "database")
	}
	if s.User == "" {
		missing = append(missing, "user")
	}
	if s.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return "", domain.ErrConfiguration("missing postgres target config fields: %s", strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(s.User, s.Password),
		Host:   s.Host + ":" + strconv.Itoa(s.Port),
		Path:   "/" + s.Database,
	}
	if s.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {s.SSLMode}}.Encode()
	}
	return u.String(), nil
}

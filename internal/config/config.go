// Package config defines the declarative sync configuration and its
// validation. A SyncConfig is built once from the merged configuration
// sources (file, environment, CLI flags) and treated as read-only for
// the rest of the run.
package config

import (
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "db-sync-tool/internal/errors"
)

// Default connection values applied to unset fields.
const (
	DefaultSSHPort   = 22
	DefaultMySQLPort = 3306
	DefaultDumpDir   = "/tmp/"
)

// DatabaseCredentials holds the resolved database connection values for
// one endpoint. Name and User are mandatory before any dump or import
// step runs.
type DatabaseCredentials struct {
	Name     string `mapstructure:"name" yaml:"name" json:"name"`
	Host     string `mapstructure:"host" yaml:"host" json:"host"`
	User     string `mapstructure:"user" yaml:"user" json:"user"`
	Password string `mapstructure:"password" yaml:"password" json:"-"`
	Port     int    `mapstructure:"port" yaml:"port" json:"port" validate:"min=0,max=65535"`
}

// IsComplete reports whether the mandatory credential fields are set.
func (d DatabaseCredentials) IsComplete() bool {
	return d.Name != "" && d.User != ""
}

// MissingField returns the first unset mandatory field, or "".
func (d DatabaseCredentials) MissingField() string {
	if d.Name == "" {
		return "name"
	}
	if d.User == "" {
		return "user"
	}
	return ""
}

// Merge overlays non-empty fields of other onto d and returns the
// result. Used to apply a manual db block over parsed credentials.
func (d DatabaseCredentials) Merge(other DatabaseCredentials) DatabaseCredentials {
	out := d
	if other.Name != "" {
		out.Name = other.Name
	}
	if other.Host != "" {
		out.Host = other.Host
	}
	if other.User != "" {
		out.User = other.User
	}
	if other.Password != "" {
		out.Password = other.Password
	}
	if other.Port != 0 {
		out.Port = other.Port
	}
	return out
}

// JumpHostConfig describes a bastion hop. Host is the bastion's own
// reachable address; Private is the network-internal address of the
// endpoint reached through it.
type JumpHostConfig struct {
	Name     string `mapstructure:"name" yaml:"name" json:"name"`
	Host     string `mapstructure:"host" yaml:"host" json:"host" validate:"required"`
	Private  string `mapstructure:"private" yaml:"private" json:"private"`
	User     string `mapstructure:"user" yaml:"user" json:"user"`
	Password string `mapstructure:"password" yaml:"password" json:"-"`
	SSHKey   string `mapstructure:"ssh_key" yaml:"ssh_key" json:"ssh_key"`
	Port     int    `mapstructure:"port" yaml:"port" json:"port" validate:"min=0,max=65535"`
}

// ConsoleConfig overrides the binaries used on an endpoint.
type ConsoleConfig struct {
	PHP       string `mapstructure:"php" yaml:"php" json:"php"`
	MySQL     string `mapstructure:"mysql" yaml:"mysql" json:"mysql"`
	MySQLDump string `mapstructure:"mysqldump" yaml:"mysqldump" json:"mysqldump"`
}

// ScriptConfig holds lifecycle hook commands. Before runs prior to the
// mode-specific work, After on success, Error on any failure.
type ScriptConfig struct {
	Before []string `mapstructure:"before" yaml:"before" json:"before"`
	After  []string `mapstructure:"after" yaml:"after" json:"after"`
	Error  []string `mapstructure:"error" yaml:"error" json:"error"`
}

// EndpointConfig describes one side of the sync. Host presence is the
// sole signal that the endpoint is remote.
type EndpointConfig struct {
	Name      string              `mapstructure:"name" yaml:"name" json:"name"`
	Host      string              `mapstructure:"host" yaml:"host" json:"host"`
	User      string              `mapstructure:"user" yaml:"user" json:"user"`
	Password  string              `mapstructure:"password" yaml:"password" json:"-"`
	Port      int                 `mapstructure:"port" yaml:"port" json:"port" validate:"min=0,max=65535"`
	SSHKey    string              `mapstructure:"ssh_key" yaml:"ssh_key" json:"ssh_key"`
	Path      string              `mapstructure:"path" yaml:"path" json:"path"`
	JumpHost  *JumpHostConfig     `mapstructure:"jump_host" yaml:"jump_host,omitempty" json:"jump_host,omitempty"`
	DumpDir   string              `mapstructure:"dump_dir" yaml:"dump_dir" json:"dump_dir"`
	KeepDumps int                 `mapstructure:"keep_dumps" yaml:"keep_dumps" json:"keep_dumps" validate:"min=0"`
	Protect   bool                `mapstructure:"protect" yaml:"protect" json:"protect"`
	AfterDump string              `mapstructure:"after_dump" yaml:"after_dump" json:"after_dump"`
	PostSQL   []string            `mapstructure:"post_sql" yaml:"post_sql" json:"post_sql"`
	DB        DatabaseCredentials `mapstructure:"db" yaml:"db" json:"db"`
	Console   ConsoleConfig       `mapstructure:"console" yaml:"console" json:"console"`
	Script    ScriptConfig        `mapstructure:"script" yaml:"script" json:"script"`
	Keys      map[string]string   `mapstructure:"keys" yaml:"keys" json:"keys"`
}

// IsRemote reports whether the endpoint is reached over SSH.
func (e EndpointConfig) IsRemote() bool {
	return e.Host != ""
}

// Label returns a human-readable name for log output.
func (e EndpointConfig) Label(role string) string {
	if e.Name != "" {
		return e.Name
	}
	if e.Host != "" {
		return e.Host
	}
	return role
}

// IsEmpty reports whether the endpoint was left out of the
// configuration entirely. A partially filled db block still counts as
// configured so validation can name the missing field.
func (e EndpointConfig) IsEmpty() bool {
	return e.Host == "" && e.Path == "" && e.Name == "" &&
		e.DB.Name == "" && e.DB.User == ""
}

// SameHost reports whether the two endpoints address the same machine:
// equal host, SSH port and user.
func (e EndpointConfig) SameHost(other EndpointConfig) bool {
	return e.Host == other.Host && e.Port == other.Port && e.User == other.User
}

// SyncConfig is the full declarative run description.
type SyncConfig struct {
	Type   string         `mapstructure:"type" yaml:"type" json:"type"`
	Origin EndpointConfig `mapstructure:"origin" yaml:"origin" json:"origin"`
	Target EndpointConfig `mapstructure:"target" yaml:"target" json:"target"`

	IgnoreTables   []string `mapstructure:"ignore_table" yaml:"ignore_table" json:"ignore_table"`
	TruncateTables []string `mapstructure:"truncate_table" yaml:"truncate_table" json:"truncate_table"`
	Tables         []string `mapstructure:"tables" yaml:"tables" json:"tables"`
	Where          string   `mapstructure:"where" yaml:"where" json:"where"`

	ImportFile    string `mapstructure:"import" yaml:"import" json:"import"`
	DumpName      string `mapstructure:"dump_name" yaml:"dump_name" json:"dump_name"`
	KeepDump      bool   `mapstructure:"keep_dump" yaml:"keep_dump" json:"keep_dump"`
	ClearDatabase bool   `mapstructure:"clear_database" yaml:"clear_database" json:"clear_database"`

	DryRun  bool `mapstructure:"dry_run" yaml:"dry_run" json:"dry_run"`
	Yes     bool `mapstructure:"yes" yaml:"yes" json:"yes"`
	Reverse bool `mapstructure:"reverse" yaml:"reverse" json:"reverse"`

	CheckDump    bool   `mapstructure:"check_dump" yaml:"check_dump" json:"check_dump"`
	UseRsync     bool   `mapstructure:"use_rsync" yaml:"use_rsync" json:"use_rsync"`
	RsyncOptions string `mapstructure:"rsync_options" yaml:"rsync_options" json:"rsync_options"`

	AdditionalMysqldumpOptions string `mapstructure:"additional_mysqldump_options" yaml:"additional_mysqldump_options" json:"additional_mysqldump_options"`

	Script ScriptConfig `mapstructure:"script" yaml:"script" json:"script"`
}

// NewSyncConfig returns a SyncConfig with defaults applied.
func NewSyncConfig() *SyncConfig {
	c := &SyncConfig{
		CheckDump: true,
		UseRsync:  true,
	}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset ports and dump directories on both endpoints.
func (c *SyncConfig) SetDefaults() {
	for _, e := range []*EndpointConfig{&c.Origin, &c.Target} {
		if e.Port == 0 {
			e.Port = DefaultSSHPort
		}
		// db host and port stay untouched here: a fabricated value
		// would shadow credentials extracted from a framework file.
		// credentials.Resolve fills the defaults after merging.
		if e.DumpDir == "" {
			e.DumpDir = DefaultDumpDir
		}
		if !strings.HasSuffix(e.DumpDir, "/") {
			e.DumpDir += "/"
		}
		if e.JumpHost != nil && e.JumpHost.Port == 0 {
			e.JumpHost.Port = DefaultSSHPort
		}
	}
}

// ApplyReverse swaps origin and target when the reverse flag is set.
// Must run before mode classification.
func (c *SyncConfig) ApplyReverse() {
	if !c.Reverse {
		return
	}
	c.Origin, c.Target = c.Target, c.Origin
}

// Validate checks structural constraints and the semantic rules that
// tags cannot express. It returns the first problem found.
func (c *SyncConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			f := verrs[0]
			return apperrors.Newf(apperrors.ErrorTypeConfiguration,
				"invalid configuration value for %s (%s)", f.Namespace(), f.Tag())
		}
		return apperrors.New(apperrors.ErrorTypeConfiguration, "invalid configuration", err)
	}

	if c.Origin.IsEmpty() && c.ImportFile == "" {
		// an import file makes the origin optional; anything else
		// needs a source to dump from
		return apperrors.Newf(apperrors.ErrorTypeConfiguration, "origin endpoint is not configured")
	}

	for role, e := range map[string]EndpointConfig{"origin": c.Origin, "target": c.Target} {
		if e.IsEmpty() {
			// absent target makes the run dump-only, absent origin is
			// allowed for import-only runs
			continue
		}
		if e.IsRemote() && e.User == "" {
			return apperrors.Newf(apperrors.ErrorTypeConfiguration,
				"%s: host %q given without an ssh user", role, e.Host)
		}
		if e.JumpHost != nil && !e.IsRemote() {
			return apperrors.Newf(apperrors.ErrorTypeConfiguration,
				"%s: jump_host configured for a local endpoint", role)
		}
		if e.Path == "" && !e.DB.IsComplete() && c.ImportFile == "" {
			return apperrors.Newf(apperrors.ErrorTypeConfiguration,
				"%s: neither a framework path nor complete db credentials (missing %s)",
				role, e.DB.MissingField())
		}
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		*target = verrs
		return true
	}
	return false
}

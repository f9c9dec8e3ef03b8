package config

import (
	"time"
)

// Version is set at build time.
var Version = "dev"

var (
	DefaultTimeout           = 5 * time.Minute
	DefaultScanTimeout       = 4 * time.Hour
	DefaultExecutable        = "powershell"
	DefaultGMalwareTimeout   = 5 * time.Minute
	DefaultModificationDelay = 30 * time.Second
	DefaultListen            = "127.0.0.1:7878"
	DefaultJournalRetention  = 90 * 24 * time.Hour
	DefaultOutput            = "json"
)

type PowerShellConfig struct {
	Executable  string        `mapstructure:"executable" yaml:"executable" desc:"PowerShell executable (powershell or pwsh)"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" desc:"time allowed for each PowerShell call"`
	ScanTimeout time.Duration `mapstructure:"scan_timeout" yaml:"scan_timeout" desc:"time allowed for a Defender scan"`
}

type JournalConfig struct {
	Location  string        `mapstructure:"location" yaml:"location" desc:"location of the action journal database, in memory if empty"`
	Retention time.Duration `mapstructure:"retention" yaml:"retention" desc:"journal entries older than retention are pruned at startup, 0 keeps everything"`
}

type ReportConfig struct {
	Location string `mapstructure:"location" yaml:"location" desc:"JSON file where reports are appended, disabled if empty"`
}

type ExportConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled" desc:"upload reports to S3 compatible storage"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint" desc:"S3 endpoint, AWS if empty"`
	Region          string `mapstructure:"region" yaml:"region"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix" desc:"key prefix for exported reports"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key" password:"true"`
	Insecure        bool   `mapstructure:"insecure" yaml:"insecure" desc:"do not check certificates"`
	UsePathStyle    bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
	CreateBucket    bool   `mapstructure:"create_bucket" yaml:"create_bucket"`
}

type GMalwareConfig struct {
	URL      string        `mapstructure:"url" yaml:"url" desc:"GLIMPS Malware Detect url, threat inspection is disabled if empty"`
	Token    string        `mapstructure:"token" yaml:"token" password:"true"`
	Insecure bool          `mapstructure:"insecure" yaml:"insecure" desc:"do not check certificates"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" desc:"time allowed to analyze a threat file"`
	Tags     []string      `mapstructure:"tags" yaml:"tags" desc:"tags added to each analysis"`
}

type MonitoringConfig struct {
	Paths             []string      `mapstructure:"paths" yaml:"paths" desc:"paths to monitor"`
	PreScan           bool          `mapstructure:"pre_scan" yaml:"pre_scan" desc:"scan monitored paths when monitoring starts"`
	Period            time.Duration `mapstructure:"period" yaml:"period" desc:"time between periodic scans of monitored paths, disabled if 0"`
	ModificationDelay time.Duration `mapstructure:"modification_delay" yaml:"modification_delay" desc:"wait time after a file modification before scanning it"`
}

type ServerConfig struct {
	Listen         string   `mapstructure:"listen" yaml:"listen" desc:"address of the local API"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" desc:"CORS origins allowed to call the API"`
}

type Config struct {
	Config     string           `mapstructure:"config" yaml:"config" desc:"path to configuration file"`
	Debug      bool             `mapstructure:"debug" yaml:"debug" desc:"print debug strings"`
	Output     string           `mapstructure:"output" yaml:"output" desc:"output format, json or yaml"`
	PowerShell PowerShellConfig `mapstructure:"powershell" yaml:"powershell"`
	Journal    JournalConfig    `mapstructure:"journal" yaml:"journal"`
	Report     ReportConfig     `mapstructure:"report" yaml:"report"`
	Export     ExportConfig     `mapstructure:"export" yaml:"export"`
	GMalware   GMalwareConfig   `mapstructure:"gmalware" yaml:"gmalware"`
	Monitoring MonitoringConfig `mapstructure:"monitoring" yaml:"monitoring"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
}

// Default returns a configuration filled with default values.
func Default() *Config {
	return &Config{
		Config: DefaultConfigPath,
		Output: DefaultOutput,
		PowerShell: PowerShellConfig{
			Executable:  DefaultExecutable,
			Timeout:     DefaultTimeout,
			ScanTimeout: DefaultScanTimeout,
		},
		Journal: JournalConfig{
			Location:  DefaultJournalLocation,
			Retention: DefaultJournalRetention,
		},
		GMalware: GMalwareConfig{
			Timeout: DefaultGMalwareTimeout,
		},
		Monitoring: MonitoringConfig{
			ModificationDelay: DefaultModificationDelay,
		},
		Server: ServerConfig{
			Listen: DefaultListen,
		},
	}
}

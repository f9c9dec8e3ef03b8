package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/glimps-re/defhost/pkg/cleanup"
	"github.com/glimps-re/defhost/pkg/config"
	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/glimps-re/defhost/pkg/defender"
	"github.com/glimps-re/defhost/pkg/export"
	"github.com/glimps-re/defhost/pkg/journal"
	"github.com/glimps-re/defhost/pkg/monitor"
	"github.com/glimps-re/defhost/pkg/powershell"
	"github.com/glimps-re/defhost/pkg/server"
	"github.com/glimps-re/go-gdetect/pkg/gdetect"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var hostConfig = config.Default()

// services used by the sub-commands, set by initServices
type services struct {
	defender server.Defender
	cleaner  server.Cleaner
	journal  journal.Journaler
	exporter export.Uploader
}

var hostServices = &services{}

var ErrInvalidOutput = errors.New("output must be json or yaml")

// for test purposes
var Now = time.Now

func initConfig() {
	if hostConfig.Config == "" {
		conf, err := config.GetConfigFile()
		if err != nil {
			logger.Warn("could not create config file", slog.String("location", conf), slog.String("error", err.Error()))
		}
		hostConfig.Config = conf
	}
	if _, err := os.Stat(hostConfig.Config); err != nil {
		logger.Debug("no config file", slog.String("location", hostConfig.Config))
		return
	}
	viper.SetConfigFile(hostConfig.Config)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		logger.Error("can't read config", slog.String("error", err.Error()))
		return
	}
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := viper.Unmarshal(hostConfig, viper.DecodeHook(hook)); err != nil {
		logger.Error("can't unmarshal config", slog.String("error", err.Error()))
	}
}

// bindFlag lets an explicit flag win over the config file value of key.
func bindFlag(flags *pflag.FlagSet, key string, name string) {
	if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
		logger.Error("could not bind flag", slog.String("flag", name), slog.String("error", err.Error()))
	}
}

func initRoot(rootCmd *cobra.Command) {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&hostConfig.Config, "config", "", "config file (default is the per user config, then "+config.DefaultConfigPath+")")
	flags.BoolVarP(&hostConfig.Debug, "debug", "d", hostConfig.Debug, "print debug strings")
	flags.StringVarP(&hostConfig.Output, "output", "o", config.DefaultOutput, "output format, json or yaml")
	flags.DurationVar(&hostConfig.PowerShell.Timeout, "timeout", config.DefaultTimeout, "Time allowed for each PowerShell call")
	flags.DurationVar(&hostConfig.PowerShell.ScanTimeout, "scan-timeout", config.DefaultScanTimeout, "Time allowed for a Defender scan (full scans can take hours)")
	flags.StringVar(&hostConfig.PowerShell.Executable, "powershell", config.DefaultExecutable, "PowerShell executable (powershell or pwsh)")
	flags.StringVar(&hostConfig.Journal.Location, "journal", config.DefaultJournalLocation, "Path to the action journal database (leave empty for in-memory journal, lost on exit)")
	flags.StringVar(&hostConfig.Report.Location, "report", "", "JSON file where a report of each status, scan, threats and cleanup command is appended")
	flags.BoolVar(&hostConfig.Export.Enabled, "export", false, "Upload reports to the S3 bucket set in the export section of the config file")
	flags.StringVar(&hostConfig.GMalware.URL, "gmalware-url", os.Getenv("GMALWARE_URL"), "GLIMPS Malware Detect url (E.g https://gmalware.ggp.glimps.re), needed by threats inspect")
	flags.StringVar(&hostConfig.GMalware.Token, "gmalware-token", os.Getenv("GMALWARE_TOKEN"), "GLIMPS Malware Detect token")
	flags.BoolVar(&hostConfig.GMalware.Insecure, "insecure", false, "do not check GLIMPS Malware Detect certificates")

	bindFlag(flags, "debug", "debug")
	bindFlag(flags, "output", "output")
	bindFlag(flags, "powershell.timeout", "timeout")
	bindFlag(flags, "powershell.scan_timeout", "scan-timeout")
	bindFlag(flags, "powershell.executable", "powershell")
	bindFlag(flags, "journal.location", "journal")
	bindFlag(flags, "report.location", "report")
	bindFlag(flags, "export.enabled", "export")
	bindFlag(flags, "gmalware.url", "gmalware-url")
	bindFlag(flags, "gmalware.token", "gmalware-token")
	bindFlag(flags, "gmalware.insecure", "insecure")

	monitoringFlags := monitoringCmd.PersistentFlags()
	monitoringFlags.BoolVar(&hostConfig.Monitoring.PreScan, "pre-scan", false, "Immediately scan monitored paths when monitoring starts")
	monitoringFlags.DurationVar(&hostConfig.Monitoring.Period, "scan-period", 0, "Time interval between periodic scans of monitored paths (e.g., '1h', disabled if 0)")
	monitoringFlags.DurationVar(&hostConfig.Monitoring.ModificationDelay, "mod-delay", config.DefaultModificationDelay, "Wait time after file modification before scanning (e.g., '30s', prevents scanning incomplete writes)")
	bindFlag(monitoringFlags, "monitoring.pre_scan", "pre-scan")
	bindFlag(monitoringFlags, "monitoring.period", "scan-period")
	bindFlag(monitoringFlags, "monitoring.modification_delay", "mod-delay")

	serveCmd.Flags().StringVar(&hostConfig.Server.Listen, "listen", config.DefaultListen, "address of the local API")
	bindFlag(serveCmd.Flags(), "server.listen", "listen")

	cleanupAnalyzeCmd.Flags().StringVar(&minSize, "min-size", "", "only list categories holding at least this size (e.g., '100MB')")
	cleanupRunCmd.Flags().StringSliceVar(&categories, "category", nil, "category to clean, repeat for several (default selection if none)")
	journalCmd.Flags().IntVar(&journalLimit, "limit", server.DefaultJournalLimit, "number of entries to print, 0 prints everything")
}

var rootCmd = &cobra.Command{
	Use:           "defhost",
	Short:         "defhost drives Windows Defender from the command line or a local API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		setDebug()
		switch hostConfig.Output {
		case "json", "yaml":
		default:
			err = fmt.Errorf("%w, got %q", ErrInvalidOutput, hostConfig.Output)
		}
		return
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		err = yaml.NewEncoder(cmd.OutOrStdout()).Encode(hostConfig)
		if err != nil {
			logger.Error("error encode yaml conf", slog.String("err", err.Error()))
			return
		}
		if err = cmd.Usage(); err != nil {
			return
		}
		return
	},
}

func setDebug() {
	if !hostConfig.Debug {
		return
	}
	LogLevel.Set(slog.LevelDebug)
	powershell.LogLevel.Set(slog.LevelDebug)
	defender.LogLevel.Set(slog.LevelDebug)
	cleanup.LogLevel.Set(slog.LevelDebug)
	journal.LogLevel.Set(slog.LevelDebug)
	monitor.LogLevel.Set(slog.LevelDebug)
	server.LogLevel.Set(slog.LevelDebug)
	export.LogLevel.Set(slog.LevelDebug)
	datamodel.LogLevel.Set(slog.LevelDebug)
	logger.Debug("debug activated")
}

func exportConfig(cfg config.ExportConfig) export.S3Config {
	return export.S3Config{
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		Bucket:          cfg.Bucket,
		Prefix:          cfg.Prefix,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Insecure:        cfg.Insecure,
		UsePathStyle:    cfg.UsePathStyle,
		CreateBucket:    cfg.CreateBucket,
	}
}

// waitOptions tags every submission with "defhost" on top of the configured tags.
func waitOptions(cfg config.GMalwareConfig) gdetect.WaitForOptions {
	return gdetect.WaitForOptions{
		Tags:     slices.Concat(cfg.Tags, []string{"defhost"}),
		Timeout:  cfg.Timeout,
		PullTime: 500 * time.Millisecond,
	}
}

// initServices wires the Defender and cleanup services from hostConfig.
func initServices(cmd *cobra.Command, _ []string) (err error) {
	ctx := cmd.Context()
	logger.Debug("config", slog.Any("config", hostConfig))

	j, err := journal.New(ctx, hostConfig.Journal.Location)
	if err != nil {
		err = fmt.Errorf("could not open journal: %w", err)
		return
	}
	if j.GetLocation() == journal.MemoryLocation {
		logger.Warn("journal kept in memory, actions are lost on exit")
	}
	if hostConfig.Journal.Retention > 0 {
		removed, pruneErr := j.Prune(ctx, Now().Add(-hostConfig.Journal.Retention))
		if pruneErr != nil {
			logger.Warn("could not prune journal", slog.String("error", pruneErr.Error()))
		} else if removed > 0 {
			logger.Debug("journal pruned", slog.Int64("removed", removed))
		}
	}
	svc := &services{journal: j}

	var submitter defender.Submitter
	if hostConfig.GMalware.URL != "" && hostConfig.GMalware.Token != "" {
		client, clientErr := gdetect.NewClient(hostConfig.GMalware.URL, hostConfig.GMalware.Token, hostConfig.GMalware.Insecure, nil)
		if clientErr != nil {
			svc.Close()
			err = fmt.Errorf("init gdetect client error: %w", clientErr)
			return
		}
		submitter = client
	}

	runner := powershell.NewExecutor(powershell.Config{
		Executable: hostConfig.PowerShell.Executable,
		Timeout:    hostConfig.PowerShell.Timeout,
	})
	svc.defender = defender.New(defender.Config{
		Runner:      runner,
		Journal:     j,
		Submitter:   submitter,
		WaitOpts:    waitOptions(hostConfig.GMalware),
		ScanTimeout: hostConfig.PowerShell.ScanTimeout,
	})
	svc.cleaner = cleanup.New(cleanup.Config{Journal: j})

	if hostConfig.Export.Enabled {
		exporter, exportErr := export.NewS3Exporter(ctx, exportConfig(hostConfig.Export))
		if exportErr != nil {
			svc.Close()
			err = fmt.Errorf("could not init report export: %w", exportErr)
			return
		}
		svc.exporter = exporter
	}
	hostServices = svc
	return
}

func (s *services) Close() {
	if s.journal == nil {
		return
	}
	if err := s.journal.Close(); err != nil {
		logger.Error("could not close journal", slog.String("error", err.Error()))
	}
}

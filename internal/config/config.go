package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/go-hrtf-lab/internal/catalog"
	"github.com/example/go-hrtf-lab/internal/hrir"
	"github.com/example/go-hrtf-lab/internal/probe"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "HRTFLAB"

type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	HRIR     HRIRConfig     `mapstructure:"hrir"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Measured MeasuredConfig `mapstructure:"measured"`
	Server   ServerConfig   `mapstructure:"server"`
	LogLevel string         `mapstructure:"log_level"`
}

type PathsConfig struct {
	OutputDir   string `mapstructure:"output_dir"`
	AudioDir    string `mapstructure:"audio_dir"`
	CacheDir    string `mapstructure:"cache_dir"`
	DatasetFile string `mapstructure:"dataset_file"`
	ProbeFile   string `mapstructure:"probe_file"`
}

type HRIRConfig struct {
	SampleRate   int       `mapstructure:"sample_rate"`
	IRLength     int       `mapstructure:"ir_length"`
	HeadRadius   float64   `mapstructure:"head_radius"`
	SpeedOfSound float64   `mapstructure:"speed_of_sound"`
	Azimuths     []float64 `mapstructure:"azimuths"`
	Workers      int       `mapstructure:"workers"`
}

type ProbeConfig struct {
	Duration   float64 `mapstructure:"duration"`
	SampleRate int     `mapstructure:"sample_rate"`
}

type MeasuredConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	FilePattern    string   `mapstructure:"file_pattern"`
	Subjects       []string `mapstructure:"subjects"`
	ElevationIndex int      `mapstructure:"elevation_index"`
	Timeout        int      `mapstructure:"timeout"` // seconds
	Workers        int      `mapstructure:"workers"`
	HorizontalOnly bool     `mapstructure:"horizontal_only"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
	RequestTimeout  int    `mapstructure:"request_timeout"`  // seconds
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	p := hrir.DefaultParams()
	pr := probe.DefaultParams()
	return Config{
		Paths: PathsConfig{
			OutputDir:   "public/hrir",
			AudioDir:    "public/audio",
			CacheDir:    ".sofa-cache",
			DatasetFile: "hrir-data.json",
			ProbeFile:   "sample.wav",
		},
		HRIR: HRIRConfig{
			SampleRate:   p.SampleRate,
			IRLength:     p.IRLength,
			HeadRadius:   p.HeadRadius,
			SpeedOfSound: p.SpeedOfSound,
			Azimuths:     hrir.CIPICAzimuths(),
			Workers:      4,
		},
		Probe: ProbeConfig{
			Duration:   pr.Duration,
			SampleRate: pr.SampleRate,
		},
		Measured: MeasuredConfig{
			BaseURL:        "https://sofacoustics.org/data/database/cipic",
			FilePattern:    "subject_%s.sofa",
			Subjects:       catalog.DefaultSubjectSpecs(),
			ElevationIndex: 8,
			Timeout:        120,
			Workers:        2,
			HorizontalOnly: false,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: 30,
			RequestTimeout:  30,
		},
		LogLevel: "info",
	}
}

// binding ties a config key to the flag that overrides it.
type binding struct {
	key  string
	flag string
}

var bindings = []binding{
	{"paths.output_dir", "paths-output-dir"},
	{"paths.audio_dir", "paths-audio-dir"},
	{"paths.cache_dir", "paths-cache-dir"},
	{"paths.dataset_file", "paths-dataset-file"},
	{"paths.probe_file", "paths-probe-file"},
	{"hrir.sample_rate", "hrir-sample-rate"},
	{"hrir.ir_length", "hrir-ir-length"},
	{"hrir.head_radius", "hrir-head-radius"},
	{"hrir.speed_of_sound", "hrir-speed-of-sound"},
	{"hrir.azimuths", "hrir-azimuths"},
	{"hrir.workers", "hrir-workers"},
	{"probe.duration", "probe-duration"},
	{"probe.sample_rate", "probe-sample-rate"},
	{"measured.base_url", "measured-base-url"},
	{"measured.file_pattern", "measured-file-pattern"},
	{"measured.subjects", "measured-subjects"},
	{"measured.elevation_index", "measured-elevation-index"},
	{"measured.timeout", "measured-timeout"},
	{"measured.workers", "measured-workers"},
	{"measured.horizontal_only", "measured-horizontal-only"},
	{"server.listen_addr", "server-listen-addr"},
	{"server.shutdown_timeout", "server-shutdown-timeout"},
	{"server.request_timeout", "server-request-timeout"},
	{"log_level", "log-level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-output-dir", defaults.Paths.OutputDir, "Directory for HRIR datasets and the subject manifest")
	fs.String("paths-audio-dir", defaults.Paths.AudioDir, "Directory for the probe WAV")
	fs.String("paths-cache-dir", defaults.Paths.CacheDir, "Download cache for measured subject files")
	fs.String("paths-dataset-file", defaults.Paths.DatasetFile, "File name of the synthetic dataset inside the output dir")
	fs.String("paths-probe-file", defaults.Paths.ProbeFile, "File name of the probe WAV inside the audio dir")
	fs.Int("hrir-sample-rate", defaults.HRIR.SampleRate, "HRIR sample rate in Hz")
	fs.Int("hrir-ir-length", defaults.HRIR.IRLength, "Impulse response length in samples")
	fs.Float64("hrir-head-radius", defaults.HRIR.HeadRadius, "Head radius in metres")
	fs.Float64("hrir-speed-of-sound", defaults.HRIR.SpeedOfSound, "Speed of sound in m/s")
	fs.StringSlice("hrir-azimuths", formatAzimuths(defaults.HRIR.Azimuths), "Azimuth grid in degrees, comma separated")
	fs.Int("hrir-workers", defaults.HRIR.Workers, "Concurrent azimuths during synthesis")
	fs.Float64("probe-duration", defaults.Probe.Duration, "Probe length in seconds")
	fs.Int("probe-sample-rate", defaults.Probe.SampleRate, "Probe sample rate in Hz")
	fs.String("measured-base-url", defaults.Measured.BaseURL, "Base URL of the measured HRIR database")
	fs.String("measured-file-pattern", defaults.Measured.FilePattern, "Remote file name pattern; %s is the subject id")
	fs.StringArray("measured-subjects", defaults.Measured.Subjects, "Subject to convert as id=label (repeatable)")
	fs.Int("measured-elevation-index", defaults.Measured.ElevationIndex, "Elevation slice used by import-matrix")
	fs.Int("measured-timeout", defaults.Measured.Timeout, "Per-download timeout in seconds")
	fs.Int("measured-workers", defaults.Measured.Workers, "Concurrent subject conversions")
	fs.Bool("measured-horizontal-only", defaults.Measured.HorizontalOnly, "Keep only 0° elevation measurements")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("hrtflab")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.output_dir", c.Paths.OutputDir)
	v.SetDefault("paths.audio_dir", c.Paths.AudioDir)
	v.SetDefault("paths.cache_dir", c.Paths.CacheDir)
	v.SetDefault("paths.dataset_file", c.Paths.DatasetFile)
	v.SetDefault("paths.probe_file", c.Paths.ProbeFile)
	v.SetDefault("hrir.sample_rate", c.HRIR.SampleRate)
	v.SetDefault("hrir.ir_length", c.HRIR.IRLength)
	v.SetDefault("hrir.head_radius", c.HRIR.HeadRadius)
	v.SetDefault("hrir.speed_of_sound", c.HRIR.SpeedOfSound)
	v.SetDefault("hrir.azimuths", c.HRIR.Azimuths)
	v.SetDefault("hrir.workers", c.HRIR.Workers)
	v.SetDefault("probe.duration", c.Probe.Duration)
	v.SetDefault("probe.sample_rate", c.Probe.SampleRate)
	v.SetDefault("measured.base_url", c.Measured.BaseURL)
	v.SetDefault("measured.file_pattern", c.Measured.FilePattern)
	v.SetDefault("measured.subjects", c.Measured.Subjects)
	v.SetDefault("measured.elevation_index", c.Measured.ElevationIndex)
	v.SetDefault("measured.timeout", c.Measured.Timeout)
	v.SetDefault("measured.workers", c.Measured.Workers)
	v.SetDefault("measured.horizontal_only", c.Measured.HorizontalOnly)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds each known key to its flag when the command carries it.
// Only flags set on the command line take precedence over env and file.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, b := range bindings {
		f := fs.Lookup(b.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", b.flag, err)
		}
	}
	return nil
}

func formatAzimuths(azimuths []float64) []string {
	out := make([]string, len(azimuths))
	for i, az := range azimuths {
		out[i] = strconv.FormatFloat(az, 'g', -1, 64)
	}
	return out
}

// SynthesisParams returns the reference model with the configured overrides.
func (c HRIRConfig) SynthesisParams() hrir.Params {
	p := hrir.DefaultParams()
	p.SampleRate = c.SampleRate
	p.IRLength = c.IRLength
	p.HeadRadius = c.HeadRadius
	p.SpeedOfSound = c.SpeedOfSound
	return p
}

// Grid validates and returns the configured azimuth grid.
func (c HRIRConfig) Grid() (hrir.Grid, error) {
	return hrir.NewGrid(c.Azimuths)
}

// Params returns the reference probe with the configured overrides.
func (c ProbeConfig) Params() probe.Params {
	p := probe.DefaultParams()
	p.Duration = c.Duration
	p.SampleRate = c.SampleRate
	return p
}

// ParsedSubjects returns the configured subject list.
func (c MeasuredConfig) ParsedSubjects() ([]catalog.Subject, error) {
	return catalog.ParseSubjects(c.Subjects)
}

func (c MeasuredConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}

func (c ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/logger"
)

// FileSystem abstracts the file checks of the loader for tests.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem is the operating system's file system.
type RealFileSystem struct{}

// Exists reports whether path can be stat'ed.
func (RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads a .env file into the process environment without
// overriding variables that are already set.
func (RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Resolver locates the config and .env files of a service.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles are the files LoadConfig reads. Empty means none found.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles keeps explicit paths from opts and searches for the rest.
// Config files are looked up under cmd/<service>, then config/, then the
// working directory; .env.<service> is preferred over .env.
func (cr *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	files := ResolvedFiles{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile}
	names := serviceNames(serviceName)

	if files.ConfigFile == "" {
		var candidates []string
		for _, up := range []string{".", "..", "../.."} {
			for _, name := range names {
				candidates = append(candidates, up+"/cmd/"+name+"/config.yml")
			}
		}
		candidates = append(candidates, "./config/config.yml", "../config/config.yml", "./config.yml")
		files.ConfigFile = cr.first(candidates)
	}

	if files.EnvFile == "" {
		var candidates []string
		for _, file := range []string{".env." + serviceName, ".env"} {
			for _, name := range names {
				for _, dir := range envDirs(name) {
					candidates = append(candidates, filepath.Join(dir, file))
				}
			}
		}
		files.EnvFile = cr.first(candidates)
	}
	return files
}

func (cr *Resolver) first(paths []string) string {
	for _, p := range paths {
		if cr.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

// serviceNames returns the service name and, for names like "acme-tablemut",
// the part after the last dash.
func serviceNames(serviceName string) []string {
	if i := strings.LastIndex(serviceName, "-"); i >= 0 && i < len(serviceName)-1 {
		return []string{serviceName, serviceName[i+1:]}
	}
	return []string{serviceName}
}

func envDirs(name string) []string {
	return []string{
		"cmd/" + name, "../cmd/" + name, "../../cmd/" + name,
		"config/" + name, "../config/" + name,
		"config", "../config",
		".", "..", "../..",
	}
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct env file path (optional)
	EnvPrefix  string // Only bind variables named PREFIX_* (optional)
	Flags      *pflag.FlagSet
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithEnvPrefix binds only environment variables starting with prefix and
// an underscore. The prefix is stripped before matching config keys.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvPrefix = strings.TrimSuffix(strings.ToUpper(prefix), "_") }
}

// WithFlags binds command-line flags named after config keys, such as
// --logging.level or --server.port. Only flags set on the command line are
// bound, and they win over the environment and the config file.
func WithFlags(fs *pflag.FlagSet) LoaderOption {
	return func(lc *LoaderConfig) { lc.Flags = fs }
}

// LoadConfig loads configuration for a service into the provided cfg struct.
// It searches for config.yml and .env files in standard locations, binds
// environment variables, and unmarshals the result into cfg.
func LoadConfig(serviceName string, cfg any, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = RealFileSystem{}
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(serviceName, lc)

	return loadFromResolvedFiles(serviceName, cfg, files, lc)
}

// loadFromResolvedFiles loads configuration from specific files.
func loadFromResolvedFiles(serviceName string, cfg any, files ResolvedFiles, lc LoaderConfig) error {
	fs := lc.FileSystem
	log := logger.WithComponent("config")
	v := viper.New()

	// 1. Load YAML config first (base configuration)
	if files.ConfigFile != "" && fs.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.InvalidInput("config", "unreadable config file "+files.ConfigFile).WithCause(err)
		}
		log.Debug("Config file loaded", logger.Fields(logger.FieldSource, files.ConfigFile))
	}

	// 2. Enable automatic environment variable reading
	v.AutomaticEnv()
	autoBindEnvVars(v, lc.EnvPrefix)

	// 3. Load .env file
	if files.EnvFile != "" && fs.Exists(files.EnvFile) {
		if err := fs.LoadEnv(files.EnvFile); err != nil {
			log.Warn("Failed to load .env file", logger.Fields(logger.FieldSource, files.EnvFile, logger.FieldError, err.Error()))
		} else {
			// Re-bind env vars after loading .env to pick up new variables
			autoBindEnvVars(v, lc.EnvPrefix)
		}
	}

	// 4. Command-line flags
	if lc.Flags != nil {
		var bindErr error
		lc.Flags.Visit(func(f *pflag.Flag) {
			if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
				bindErr = errors.InvalidInput(f.Name, "cannot bind flag").WithCause(err)
			}
		})
		if bindErr != nil {
			return bindErr
		}
	}

	// 5. Unmarshal into config struct
	if err := v.Unmarshal(cfg); err != nil {
		return errors.InvalidInput("config", "cannot decode configuration for "+serviceName).WithCause(err)
	}

	return nil
}

// autoBindEnvVars copies the environment into v under every key spelling
// a variable could stand for, so SERVER_READ_TIMEOUT reaches
// server.read_timeout.
func autoBindEnvVars(v *viper.Viper, prefix string) {
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if prefix != "" {
			if key, ok = strings.CutPrefix(key, prefix+"_"); !ok || key == "" {
				continue
			}
		}
		for _, variant := range generateEnvKeyVariants(key) {
			v.Set(variant, value)
		}
	}
}

// generateEnvKeyVariants returns every way of joining the underscore
// separated words of envKey with "." or "_", lower-cased, starting with the
// all-underscore form:
//
//	INPUT_HEADER_LINE -> input_header_line, input.header_line,
//	                     input_header.line, input.header.line
func generateEnvKeyVariants(envKey string) []string {
	parts := strings.Split(strings.ToLower(envKey), "_")
	// Keys with many words would explode; their nesting is capped.
	const maxSeparators = 6
	seps := min(len(parts)-1, maxSeparators)

	variants := make([]string, 0, 1<<seps)
	var b strings.Builder
	for mask := 0; mask < 1<<seps; mask++ {
		b.Reset()
		b.WriteString(parts[0])
		for i, part := range parts[1:] {
			if i < seps && mask&(1<<i) != 0 {
				b.WriteByte('.')
			} else {
				b.WriteByte('_')
			}
			b.WriteString(part)
		}
		variants = append(variants, b.String())
	}
	return variants
}

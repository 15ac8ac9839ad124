package cmd

import (
	"errors"
	stdlog "log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/ai/gemini"
	"github.com/spigell/hh-pathfinder/internal/graph"
	"github.com/spigell/hh-pathfinder/internal/graphexport"
	"github.com/spigell/hh-pathfinder/internal/headhunter"
	"github.com/spigell/hh-pathfinder/internal/index/dense"
	"github.com/spigell/hh-pathfinder/internal/index/lexical"
	"github.com/spigell/hh-pathfinder/internal/logger"
	"github.com/spigell/hh-pathfinder/internal/recommend"
	"github.com/spigell/hh-pathfinder/internal/server"
)

const (
	app = "hh-pathfinder"
)

type Config struct {
	Corpus     CorpusConfig      `mapstructure:"corpus"`
	Index      IndexConfig       `mapstructure:"index"`
	Encoder    EncoderConfig     `mapstructure:"encoder"`
	Graph      graph.Options     `mapstructure:"graph"`
	Recommend  recommend.Options `mapstructure:"recommend"`
	AI         *AIConfig         `mapstructure:"ai"`
	Headhunter HeadhunterConfig  `mapstructure:"headhunter"`
	Server     ServerConfig      `mapstructure:"server"`
	Neo4j      Neo4jConfig       `mapstructure:"neo4j"`
}

type CorpusConfig struct {
	// Path is a JSON array or JSON Lines vacancy snapshot.
	Path string `mapstructure:"path"`
}

type IndexConfig struct {
	// Strategy is lexical or dense.
	Strategy string         `mapstructure:"strategy"`
	Lexical  lexical.Params `mapstructure:"lexical"`
	Dense    dense.Options  `mapstructure:"dense"`
	// Path stores the built dense index between runs.
	Path string `mapstructure:"path"`
	// Fallback serves with the lexical strategy while the encoder is down.
	Fallback bool `mapstructure:"fallback"`
}

type EncoderConfig struct {
	// Provider is hash, ollama or gemini.
	Provider  string `mapstructure:"provider"`
	Dimension int    `mapstructure:"dimension"`
	Ollama    struct {
		URL   string `mapstructure:"url"`
		Model string `mapstructure:"model"`
	} `mapstructure:"ollama"`
	CachePath string `mapstructure:"cache-path"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	gemini.Options `mapstructure:",squash"`
	APIKeyFile     string `mapstructure:"api-key-file"`
}

type HeadhunterConfig struct {
	TokenFile   string                   `mapstructure:"token-file"`
	UserAgent   string                   `mapstructure:"user-agent"`
	Queries     []string                 `mapstructure:"queries"`
	Search      *headhunter.SearchParams `mapstructure:"search"`
	ExcludeFile string                   `mapstructure:"exclude-file"`
	Exclude     struct {
		Employers []string `mapstructure:"employers"`
	} `mapstructure:"exclude"`
}

type ServerConfig struct {
	server.Options  `mapstructure:",squash"`
	ReloadTokenFile string `mapstructure:"reload-token-file"`
}

type Neo4jConfig struct {
	graphexport.Config `mapstructure:",squash"`
	PasswordFile       string `mapstructure:"password-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hh-pathfinder recommends hh.ru vacancies and adjacent career paths for a candidate profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"headhunter.token-file":    "HH_TOKEN_FILE",
		"ai.gemini.api-key-file":   "GEMINI_API_KEY_FILE",
		"neo4j.password-file":      "NEO4J_PASSWORD_FILE",
		"server.reload-token-file": "HH_PATHFINDER_RELOAD_TOKEN_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			stdlog.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hh-pathfinder.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("corpus", "", "vacancy snapshot to load (overrides corpus.path)")
	rootCmd.PersistentFlags().String("strategy", "", "relevance strategy: lexical or dense (overrides index.strategy)")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("corpus.path", rootCmd.PersistentFlags().Lookup("corpus"))
	viper.BindPFlag("index.strategy", rootCmd.PersistentFlags().Lookup("strategy"))
}

func setDefaults() {
	defaults := recommend.DefaultOptions()

	viper.SetDefault("corpus.path", "vacancies.jsonl")
	viper.SetDefault("index.strategy", lexical.Name)
	viper.SetDefault("index.fallback", true)
	viper.SetDefault("index.dense.kind", dense.KindHNSW)
	viper.SetDefault("encoder.provider", "hash")
	viper.SetDefault("recommend.top-k", defaults.TopK)
	viper.SetDefault("recommend.top-career", defaults.TopCareer)
	viper.SetDefault("recommend.min-skill-freq", defaults.MinSkillFreq)
	viper.SetDefault("recommend.top-skills", defaults.TopSkills)
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.timeout", "30s")
	viper.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
}

func initConfig() {
	// version works without any configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// An explicit config must parse. The default one may be absent, then
	// defaults, env and flags are used.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			stdlog.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// setup builds the logger and reads the configuration. Failures are fatal.
func setup() (*Config, *zap.Logger) {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		stdlog.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		log.Fatal("config is required")
	}

	log.Debug("starting", zap.String("version", version), zap.String("config", viper.ConfigFileUsed()))
	return config, log
}

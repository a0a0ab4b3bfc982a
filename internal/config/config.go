package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds everything the api and ingest binaries need. Values come from
// config.yaml, overridden by environment variables, with defaults last.
type Config struct {
	TaskName string `yaml:"task_name"`
	Language string `yaml:"language"`

	StoreBackend      string `yaml:"store_backend"` // couchbase | sqlite | memory
	CouchbaseURL      string `yaml:"couchbase_url"`
	CouchbaseUsername string `yaml:"couchbase_username"`
	CouchbasePassword string `yaml:"couchbase_password"`
	CouchbaseBucket   string `yaml:"couchbase_bucket"`
	SQLitePath        string `yaml:"sqlite_path"`

	DatasetKey           string `yaml:"dataset_key"`
	QualificationKey     string `yaml:"qualification_key"`
	QuestionTreeKey      string `yaml:"question_tree_key"`
	ImagePrefix          string `yaml:"image_prefix"`
	QualificationImages  string `yaml:"qualification_image_prefix"`
	ProgressPrefix       string `yaml:"progress_prefix"`
	DoneKey              string `yaml:"done_key"`
	NonParticipantsKey   string `yaml:"non_participants_key"`
	AddQualifications    bool   `yaml:"add_qualifications"`
	MaxPerWorker         int    `yaml:"max_annotations_per_worker"`
	AnnotatorsPerItem    int    `yaml:"annotators_per_item"`
	MaxTreeDepth         int    `yaml:"max_tree_depth"`
	DebugItemLimit       int    `yaml:"debug_item_limit"`
	DoneCode             string `yaml:"done_code"`
	NoConsentCode        string `yaml:"no_consent_code"`
	APIPort              string `yaml:"api_port"`
	ElasticsearchURL     string `yaml:"elasticsearch_url"`

	IngestDataDir   string `yaml:"ingest_data_dir"`
	IngestStaticDir string `yaml:"ingest_static_dir"`
}

// Load reads config.yaml (path overridable via CONFIG_PATH), applies env
// overrides and defaults.
func Load() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("Failed to parse config file")
		}
		log.Info().Str("path", configPath).Msg("Loaded config file")
	}

	// Env vars override YAML values
	envOverride(&cfg.TaskName, "TASK_NAME")
	envOverride(&cfg.Language, "TASK_LANGUAGE")
	envOverride(&cfg.StoreBackend, "STORE_BACKEND")
	envOverride(&cfg.CouchbaseURL, "COUCHBASE_URL")
	envOverride(&cfg.CouchbaseUsername, "COUCHBASE_USERNAME")
	envOverride(&cfg.CouchbasePassword, "COUCHBASE_PASSWORD")
	envOverride(&cfg.CouchbaseBucket, "COUCHBASE_BUCKET")
	envOverride(&cfg.SQLitePath, "SQLITE_PATH")
	envOverride(&cfg.DatasetKey, "DATASET_KEY")
	envOverride(&cfg.QualificationKey, "QUALIFICATION_KEY")
	envOverride(&cfg.QuestionTreeKey, "QUESTION_TREE_KEY")
	envOverride(&cfg.ImagePrefix, "IMAGE_PREFIX")
	envOverride(&cfg.QualificationImages, "QUALIFICATION_IMAGE_PREFIX")
	envOverride(&cfg.DoneCode, "DONE_CODE")
	envOverride(&cfg.NoConsentCode, "NO_CONSENT_CODE")
	envOverride(&cfg.APIPort, "API_PORT")
	envOverride(&cfg.ElasticsearchURL, "ELASTICSEARCH_URL")
	envOverride(&cfg.IngestDataDir, "INGEST_DATA_DIR")
	envOverride(&cfg.IngestStaticDir, "INGEST_STATIC_DIR")
	envOverrideInt(&cfg.MaxPerWorker, "MAX_ANNOTATIONS_PER_WORKER")
	envOverrideInt(&cfg.AnnotatorsPerItem, "ANNOTATORS_PER_ITEM")
	envOverrideInt(&cfg.MaxTreeDepth, "MAX_TREE_DEPTH")
	envOverrideInt(&cfg.DebugItemLimit, "DEBUG_ITEM_LIMIT")
	envOverrideBool(&cfg.AddQualifications, "ADD_QUALIFICATIONS")

	// Defaults
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.TaskName == "" {
		cfg.TaskName = fmt.Sprintf("visual_evidence_%s", cfg.Language)
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "sqlite"
	}
	if cfg.CouchbaseBucket == "" {
		cfg.CouchbaseBucket = "annotate"
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "./annotate.db"
	}
	if cfg.DatasetKey == "" {
		cfg.DatasetKey = "data/multimodal_tweets_balanced.csv"
	}
	if cfg.QualificationKey == "" {
		cfg.QualificationKey = "data/qualification_data.csv"
	}
	if cfg.QuestionTreeKey == "" {
		cfg.QuestionTreeKey = "static/question_tree.yaml"
	}
	if cfg.ImagePrefix == "" {
		cfg.ImagePrefix = "static/images/"
	}
	if cfg.QualificationImages == "" {
		cfg.QualificationImages = "static/qualification_images/"
	}
	if cfg.ProgressPrefix == "" {
		cfg.ProgressPrefix = fmt.Sprintf("data/worker_progress/%s/", cfg.TaskName)
	}
	if cfg.DoneKey == "" {
		cfg.DoneKey = fmt.Sprintf("data/done_%s.txt", cfg.TaskName)
	}
	if cfg.NonParticipantsKey == "" {
		cfg.NonParticipantsKey = "data/non_participants.txt"
	}
	if cfg.MaxPerWorker == 0 {
		cfg.MaxPerWorker = 25
	}
	if cfg.AnnotatorsPerItem == 0 {
		cfg.AnnotatorsPerItem = 3
	}
	if cfg.MaxTreeDepth == 0 {
		cfg.MaxTreeDepth = 4
	}
	if cfg.APIPort == "" {
		cfg.APIPort = "8080"
	}
	if cfg.IngestDataDir == "" {
		cfg.IngestDataDir = "./data"
	}
	if cfg.IngestStaticDir == "" {
		cfg.IngestStaticDir = "./static"
	}

	return cfg
}

func envOverride(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envOverrideInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func envOverrideBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

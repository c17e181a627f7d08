package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string
	}
	Database struct {
		URL string
	}
	Redis struct {
		URL string
	}
	Ollama struct {
		BaseURL    string
		EmbedModel string
		ChatModel  string
	}
	Dataset struct {
		CatalogPath    string
		EmbeddingsPath string
		DictionaryPath string
	}
	Session struct {
		TTLMinutes int
	}
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	var config Config

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.url", "")
	viper.SetDefault("redis.url", "redis://localhost:6379")
	viper.SetDefault("ollama.baseurl", "http://localhost:11434")
	viper.SetDefault("ollama.embedmodel", "all-minilm")
	viper.SetDefault("ollama.chatmodel", "phi3")
	viper.SetDefault("dataset.catalogpath", "data/Dataset_categories.csv")
	viper.SetDefault("dataset.embeddingspath", "data/embeddings.json")
	viper.SetDefault("dataset.dictionarypath", "data/frequency_dictionary_en_82_765.txt")
	viper.SetDefault("session.ttlminutes", 0) // 0 = sessions never expire

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	config.Server.Port = viper.GetString("server.port")
	config.Database.URL = viper.GetString("database.url")
	config.Redis.URL = viper.GetString("redis.url")
	config.Ollama.BaseURL = viper.GetString("ollama.baseurl")
	config.Ollama.EmbedModel = viper.GetString("ollama.embedmodel")
	config.Ollama.ChatModel = viper.GetString("ollama.chatmodel")
	config.Dataset.CatalogPath = viper.GetString("dataset.catalogpath")
	config.Dataset.EmbeddingsPath = viper.GetString("dataset.embeddingspath")
	config.Dataset.DictionaryPath = viper.GetString("dataset.dictionarypath")
	config.Session.TTLMinutes = viper.GetInt("session.ttlminutes")

	return &config, nil
}

func (c *Config) ValidateOllama() error {
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.baseurl is required")
	}
	if c.Ollama.EmbedModel == "" {
		return fmt.Errorf("ollama.embedmodel is required")
	}
	return nil
}

func (c *Config) ValidateDataset() error {
	if c.Dataset.CatalogPath == "" {
		return fmt.Errorf("dataset.catalogpath is required")
	}
	if c.Dataset.EmbeddingsPath == "" {
		return fmt.Errorf("dataset.embeddingspath is required")
	}
	return nil
}

package llms

type Config struct {
	EmbeddingProvider string `env:"LLM_EMBEDDING_PROVIDER,default=openai"`
	EmbeddingModel    string `env:"LLM_EMBEDDING_MODEL,default=text-embedding-3-small"`
}

package domain

// VectorConfig holds vectorization settings shared by the embedding provider and the vector store.
type VectorConfig struct {
	Model           string
	Dimensions      int
	QueryPrefix     string
	PassagePrefix   string
	OversampleRatio int
}

// DefaultVectorConfig returns the defaults for multilingual-e5-large.
// e5 models are trained with asymmetric "query: " / "passage: " prefixes.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:           "intfloat/multilingual-e5-large",
		Dimensions:      1024,
		QueryPrefix:     "query: ",
		PassagePrefix:   "passage: ",
		OversampleRatio: 3,
	}
}

// KeyPrefix namespaces every Redis key owned by the service.
const KeyPrefix = "benefitsearch:"

package encoder

import "context"

// Encoder produces sentence embeddings for question text. Outputs are
// L2-normalized so cosine similarity reduces to a dot product.
type Encoder interface {
	Model() string
	Dimensions() int
	EncodeText(ctx context.Context, text string) ([]float32, error)
	EncodeTexts(ctx context.Context, texts []string) ([][]float32, error)
}

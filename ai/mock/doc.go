// Package mock provides test double implementations of AI service interfaces.
//
// The mocks allow tests to run without external AI services and give
// controlled, deterministic behavior.
//
//	mockProvider := mock.NewMockProvider()
//	vec, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	}
//	count := embedder.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: unit vectors derived from a hash of the text
//   - MockQueryTranslator: entity patterns built from the question's longer words
//   - MockEntityExtractor: capitalized word runs become entities, neighbours are related
//   - MockProvider: aggregates the three
package mock

// Package hat implements the Hierarchical Attention Tree, an in-memory
// vector index tuned for AI-conversation embeddings. It exploits the known
// four-level hierarchy of conversational data (Global, Session, Document,
// Chunk) to route beam search with stored centroids instead of the flat
// graph structures general-purpose ANN indexes rely on.
//
// Quick start:
//
//	cfg := hat.DefaultConfig()
//	idx := hat.NewIndex(1536, hat.Cosine, cfg)
//	id, err := idx.Add(embedding)
//	results, err := idx.Search(query, 10)
//
// Callers that insert conversational turns as they arrive should bracket
// session and document boundaries explicitly:
//
//	idx.NewSession()
//	idx.NewDocument()
//	idx.Add(turnEmbedding)
package hat

// Package ingestion loads documents into both retrieval indexes.
//
// The Pipeline type manages the ingestion workflow for a document:
//   - Splitting the text into overlapping chunks
//   - Embedding the chunks into the vector store
//   - Extracting entities and relationships into the graph store
//
// Documents are processed asynchronously on a worker pool. Each submission
// returns a task id whose status can be polled or waited on.
package ingestion

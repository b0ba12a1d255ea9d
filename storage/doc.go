// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage defines the two indexes the query engine reads from.
//
// VectorStore holds document chunks with their embeddings and answers
// similarity queries. GraphStore holds the entities mentioned by those
// chunks and the relationships between them, and answers graph queries in
// its own dialect. Both return chunks, so results from either index can be
// identified by the same identity key.
//
// # Backends
//
//   - storage/badger: embedded BadgerDB, implements both stores. Used for
//     local deployments and tests.
//   - storage/pgvector: PostgreSQL with the pgvector extension (VectorStore).
//   - storage/neo4j: Neo4j over Bolt (GraphStore, Cypher dialect).
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	backend, err := badger.OpenBackend("", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	vectors := badger.NewVectorStore(backend)
//	graph := badger.NewGraphStore(backend)
//
// # Thread Safety
//
// All store implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All store methods accept context.Context for cancellation
// and timeout support. A store must return promptly once its
// context is done.
package storage

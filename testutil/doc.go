// Package testutil provides fixtures for tests of models and builders.
//
// This package is intended for use in tests and benchmarks only.
// It provides a small hand-checked trigram model, random statistics
// generators, and a reference scorer that evaluates backoff directly on
// the statistics.
//
// # Random Statistics
//
//	rng := testutil.NewRNG(seed)
//	stats := rng.Statistics(50, 3, 200)
//
// # Reference Scoring (Ground Truth)
//
//	ref := testutil.NewReference(stats, -100)
//	want := ref.Score([]string{"<s>", "the"}, "cat")
package testutil

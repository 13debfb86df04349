// Package ngramlm scores text with memory-mapped n-gram language models.
//
// A model is a binary file holding a header, a hashed vocabulary and one of
// six search layouts (probing hash tables, with or without rest costs, and
// four trie variants that trade lookup speed for size). Models are built with
// the build package and loaded read-only.
//
// # Quick Start
//
//	ctx := context.Background()
//	m, _ := ngramlm.Load(ctx, "en-3gram.bin", ngramlm.DefaultConfig())
//	defer m.Close()
//
//	state := m.BeginSentenceState()
//	var total float32
//	for _, w := range strings.Fields("the cat sat") {
//	    var p float32
//	    p, state = m.ScoreWord(state, w)
//	    total += p
//	}
//
// Remote models load through a blobstore:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("models/"))
//	m, _ := ngramlm.Open(ctx, store, "en-3gram.bin", ngramlm.DefaultConfig())
//
// # Scoring
//
// Scoring is incremental. Each call consumes a State holding the preceding
// words and returns the log10 probability of the next word together with the
// State for the word after it. When the full context was never seen the
// longest matching n-gram is used and the backoff weights of the unmatched
// contexts are added. Out-of-vocabulary words score a flat penalty: the
// <unk> probability, or Config.UnknownMissingLogProb when the model has no
// <unk> statistics.
//
// States are small values; keep them on the stack and compare them with
// Equal. A loaded Model is immutable and safe for concurrent use.
//
// # Loading
//
// Config.LoadMethod selects between lazy and prefaulted memory mappings and
// heap copies, optionally read in parallel. A resource.Controller bounds heap
// usage, reader concurrency and IO rate. Load-time policies repair or reject
// models with missing <unk>, missing sentence markers, or positive
// log-probabilities.
package ngramlm

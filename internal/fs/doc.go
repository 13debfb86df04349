// Package fs abstracts the file operations of the model builder so tests
// can inject write, sync, close and rename failures.
//
// Production code uses [Default]. Tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".ngramlm-build-", fs.Fault{FailAfterBytes: -1, FailOnRename: true})
package fs

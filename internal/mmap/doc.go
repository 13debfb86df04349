// Package mmap maps model files read-only and slices header-described
// sections out of them.
//
//	m, err := mmap.Open("model.bin", mmap.WithPopulate())
//	if err != nil { ... }
//	defer m.Close()
//
//	search, err := mmap.Section(m.Bytes(), h.Body.Search.Offset, h.Body.Search.Size)
//	_ = m.Advise(mmap.AccessRandom)
//
// Linux honors WithPopulate through MAP_POPULATE. Other Unix systems map
// lazily and report it through Mapping.Populated. Windows uses
// CreateFileMapping/MapViewOfFile and ignores Advise.
//
// Mappings are safe for concurrent reads. Close is idempotent; nothing may
// read the mapped bytes after it returns.
package mmap

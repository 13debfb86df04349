package hash

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the CRC32-Castagnoli checksum of a model body.
func CRC32C(body []byte) uint32 {
	return crc32.Checksum(body, castagnoli)
}

// UpdateCRC32C extends crc with chunk. Starting from 0 and feeding a body in
// order yields CRC32C(body).
func UpdateCRC32C(crc uint32, chunk []byte) uint32 {
	return crc32.Update(crc, castagnoli, chunk)
}

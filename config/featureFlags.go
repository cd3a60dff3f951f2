package config

import (
	"os"
	"strconv"
	"strings"
)

// AutoCreateMasters controls whether an import run may create master
// records for names that stayed unresolved after confirmation. Off by
// default: the safe behavior is to fail fast with the unresolved list.
//
// Set via env:
// - IMPORT_AUTO_CREATE_MASTERS=true
func AutoCreateMasters() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("IMPORT_AUTO_CREATE_MASTERS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ImportChunkSize is the number of records written per chunk during the
// apply phase. Zero means the engine default.
//
// Set via env:
// - IMPORT_CHUNK_SIZE=50
func ImportChunkSize() int {
	return nonNegativeIntFromEnv("IMPORT_CHUNK_SIZE")
}

// ImportConcurrency bounds in-flight writes within one chunk. Zero means
// the engine default.
//
// Set via env:
// - IMPORT_CONCURRENCY=5
func ImportConcurrency() int {
	return nonNegativeIntFromEnv("IMPORT_CONCURRENCY")
}

func nonNegativeIntFromEnv(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

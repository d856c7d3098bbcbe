// Package redisstore provides a Redis-backed table.Store.
//
// Each collection is a Redis list of canonical JSON rows at
// citycycle:{namespace}:collection:{name}; list index i holds sheet row i+1.
// Collection names are tracked in the set citycycle:{namespace}:collections
// so that an empty collection still exists after a Replace.
//
// Append and Replace run as MULTI/EXEC transactions. Cell and range writes
// are read-modify-write and run under WATCH, retrying when another client
// touched the list in between.
package redisstore

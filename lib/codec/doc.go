// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides coreinit's standard CBOR encoding configuration.
//
// CBOR carries every internal protocol in this repo: the sandbox.Spec
// handed across the childinit re-exec pipe, the InternalMessage envelope
// exchanged between the property server and the supervisor, and the
// published property-info trie on disk. None of these ever need JSON;
// this package exists so they all encode identically without
// duplicating configuration. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer encoding,
// no indefinite-length items. Same logical data always produces
// identical bytes.
//
// For buffer-oriented operations (files, pipes):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Struct fields use `cbor` tags throughout; this module never uses
// non-string map keys or needs a JSON fallback, so there is no dual
// `cbor`/`json` tag convention to document.
package codec

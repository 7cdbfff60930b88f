// Package snapshot persists workspace snapshot records in a KV engine.
//
// Each record is stored under "snap/<session id>" as a self-checking frame:
//
//	[magic:8 "WSNAPREC"]
//	[HeaderLen:4][HeaderJSON:HeaderLen]
//	[DataLen:4][Data:DataLen]   (JSON record, or AEAD sealed bytes)
//	[checksum:32 SHA-256 of all bytes above]
//
// Launch commands are stored separately under "cmd/<session id>". When a
// passphrase is configured, the Argon2id salt lives under "meta/salt".
//
// Store operations never return bare errors: they return domain.Result so
// callers choose when a storage failure becomes visible.
package snapshot

// Package ir provides the canonical types shared by every other package:
// the counter, domain records, event payloads and the event envelope.
//
// ir imports nothing internal. It also owns the two encodings that must be
// identical on every machine:
//   - MarshalCanonical: RFC 8785 canonical JSON for payload storage
//   - EventID: SHA-256 over canonical JSON with domain separation
//
// Key design constraints:
//   - NO float types anywhere - integers only
//   - Logical clocks (seq) only, never wall-clock timestamps
//   - All JSON tags use snake_case
package ir

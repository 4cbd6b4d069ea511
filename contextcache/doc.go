// Package contextcache implements the content-addressed cache for large,
// rarely-changing context payloads. Keys are derived deterministically from
// the content pack, persona variant, target model and a package schema
// version; bumping the schema version makes every old entry unreachable at
// once because clients simply stop matching old keys.
//
// Entries are model-bound: a payload cached for one model identifier must
// never be handed to a call targeting a different model. The dispatcher
// enforces this at call time; the cache additionally refuses to return an
// entry whose recorded binding mismatches the lookup key.
package contextcache

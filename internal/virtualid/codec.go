// Shelfgate - Virtual Library Reverse Proxy for Media Servers
// Copyright 2026 Shelfgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfgate/shelfgate

// Package virtualid implements the reversible token encoding that gives
// synthetic views and items stable identifiers in the client protocol.
//
// A virtual token has the form
//
//	vl1-<tag>-<payload>
//
// where "vl1" is the reserved, versioned marker, <tag> names the entity
// namespace ("view" or "item" today), and <payload> is the source identifier
// in lowercase base32hex without padding. The marker contains a dash, which
// upstream media servers never emit in their own identifiers (Jellyfin and
// Emby ids are 32-character hex strings), so the virtual token space is
// disjoint from the native id space by construction.
//
// Encoding is pure: the same (tag, sourceID) pair always yields the same
// token, across restarts and across instances, so no mapping table has to be
// persisted or kept consistent anywhere.
package virtualid

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
)

// Marker is the reserved leading marker for all virtual tokens.
// Version is part of the marker so future token layouts can coexist.
const Marker = "vl1"

// Tag identifies the namespace a token belongs to.
type Tag string

// Known token namespaces.
const (
	// TagView marks a token identifying a virtual view (library).
	TagView Tag = "view"

	// TagItem marks a token identifying a virtual item (placeholder media).
	TagItem Tag = "item"
)

// ErrMalformedToken is returned when a token carries the reserved marker but
// its remainder cannot be parsed. Callers must treat this as not-found and
// never fall back to passing the token upstream.
var ErrMalformedToken = errors.New("virtualid: malformed token")

const delimiter = "-"

// payloadEncoding is base32hex with a lowercase alphabet and no padding.
// The resulting payload is alphanumeric, keeping tokens inside the character
// set media server clients accept for item identifiers.
var payloadEncoding = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

// Token is a decoded virtual identifier.
type Token struct {
	// Tag is the entity namespace.
	Tag Tag

	// SourceID is the original source identifier the token was minted from,
	// e.g. an external catalog id or a collection id.
	SourceID string
}

// String re-encodes the token. Encode(Decode(x)) == x for valid tokens.
func (t Token) String() string {
	return Encode(t.Tag, t.SourceID)
}

// Encode builds the virtual token for (tag, sourceID).
//
// Encode is total for any tag and source id; validation of which tags are
// meaningful belongs to the caller. The empty source id encodes to an empty
// payload and round-trips like any other value.
func Encode(tag Tag, sourceID string) string {
	return Marker + delimiter + string(tag) + delimiter + payloadEncoding.EncodeToString([]byte(sourceID))
}

// IsVirtual reports whether the identifier carries the reserved marker.
// It does not validate the remainder; use Decode for that.
func IsVirtual(id string) bool {
	return strings.HasPrefix(id, Marker+delimiter)
}

// Decode parses a client-presented identifier.
//
// Return values distinguish the three cases the router cares about:
//
//   - (token, true, nil): a well-formed virtual token.
//   - (zero, false, nil): no reserved marker; the id is native and should be
//     passed through to the upstream server untouched.
//   - (zero, false, ErrMalformedToken): the marker is present but the
//     remainder does not parse. The id must be rejected, not reinterpreted.
func Decode(id string) (Token, bool, error) {
	if !IsVirtual(id) {
		return Token{}, false, nil
	}

	rest := id[len(Marker)+len(delimiter):]
	tag, payload, found := strings.Cut(rest, delimiter)
	if !found || tag == "" {
		return Token{}, false, fmt.Errorf("%w: %q", ErrMalformedToken, id)
	}
	if !validTag(tag) {
		return Token{}, false, fmt.Errorf("%w: bad tag in %q", ErrMalformedToken, id)
	}

	sourceID, err := payloadEncoding.DecodeString(payload)
	if err != nil {
		return Token{}, false, fmt.Errorf("%w: bad payload in %q", ErrMalformedToken, id)
	}

	return Token{Tag: Tag(tag), SourceID: string(sourceID)}, true, nil
}

// validTag accepts lowercase ASCII letters only. Tags are part of the wire
// format, so the accepted alphabet is fixed here rather than left to callers.
func validTag(tag string) bool {
	for i := 0; i < len(tag); i++ {
		if tag[i] < 'a' || tag[i] > 'z' {
			return false
		}
	}
	return true
}

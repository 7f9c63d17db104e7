// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"encoding/binary"
	"strings"

	"github.com/poiesic/lectio/core"
)

// Key prefixes for different data types
const (
	unitPrefix         = "unit:"
	unitPositionPrefix = "upos:"
	wordPrefix         = "word:"
	embeddingPrefix    = "emb:"
	entityPrefix       = "ent:"
	linkPrefix         = "link:"
	schemaKey          = "schema:version"
)

// sortableID maps a signed id to an unsigned value whose big-endian bytes
// sort in the same order as the signed value.
func sortableID(id int64) uint64 {
	return uint64(id) ^ (1 << 63)
}

func idFromSortable(v uint64) int64 {
	return int64(v ^ (1 << 63))
}

// appendID appends the order-preserving encoding of id to buf.
func appendID(buf []byte, id int64) []byte {
	return binary.BigEndian.AppendUint64(buf, sortableID(id))
}

// makeUnitKey generates a key for a unit by ID.
// Format: prefix + id
func makeUnitKey(id core.UnitID) []byte {
	return appendID([]byte(unitPrefix), int64(id))
}

// unitIDFromKey decodes the id portion of a unit key.
func unitIDFromKey(key []byte) core.UnitID {
	return core.UnitID(idFromSortable(binary.BigEndian.Uint64(key[len(unitPrefix):])))
}

// makeChapterKey generates the partial position key shared by every verse of a chapter.
// Format: prefix + translation + 0x00 + book + 0x00 + chapter
func makeChapterKey(translation, book string, chapter int) []byte {
	buf := make([]byte, 0, len(unitPositionPrefix)+len(translation)+len(book)+6)
	buf = append(buf, unitPositionPrefix...)
	buf = append(buf, translation...)
	buf = append(buf, 0)
	buf = append(buf, book...)
	buf = append(buf, 0)
	return binary.BigEndian.AppendUint32(buf, uint32(chapter))
}

// makeUnitPositionKey generates the index key locating a unit within its chapter.
// Format: chapter key + verse
func makeUnitPositionKey(u *core.Unit) []byte {
	buf := makeChapterKey(u.Translation, u.Book, u.Chapter)
	return binary.BigEndian.AppendUint32(buf, uint32(u.Verse))
}

// makePartialWordKey generates the prefix shared by all words of a unit.
func makePartialWordKey(id core.UnitID) []byte {
	return appendID([]byte(wordPrefix), int64(id))
}

// makeWordKey generates a key for a unit word.
// Format: prefix + unit id + position
func makeWordKey(id core.UnitID, position int) []byte {
	return binary.BigEndian.AppendUint32(makePartialWordKey(id), uint32(position))
}

// makeEmbeddingKey generates a key for a unit embedding.
func makeEmbeddingKey(id core.UnitID) []byte {
	return appendID([]byte(embeddingPrefix), int64(id))
}

// makeEntityKey generates a key for a named entity.
// Names are folded to lower case so lookups are case-insensitive.
func makeEntityKey(unifiedName string) []byte {
	return []byte(entityPrefix + strings.ToLower(unifiedName))
}

// makePartialLinkKey generates the prefix shared by all links of a unit.
func makePartialLinkKey(id core.UnitID) []byte {
	return appendID([]byte(linkPrefix), int64(id))
}

// makeLinkKey generates a key for a unit-entity link.
// Format: prefix + unit id + link id, so a prefix scan yields link id order.
func makeLinkKey(link *core.UnitEntityLink) []byte {
	return appendID(makePartialLinkKey(link.UnitID), link.LinkID)
}

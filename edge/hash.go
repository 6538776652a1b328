/*
 * GraphStream
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edge

import "github.com/cespare/xxhash/v2"

/*
DefaultHash is the cluster-wide vertex hash: every node must use the same
HashFunc (or one that agrees on every vertex id) so that owner(v) =
hash(v) mod N resolves to the same node everywhere. xxhash is a fast,
allocation-free, non-cryptographic hash - the same property the teacher
relies on for its own bucket hashing.
*/
func DefaultHash(v VertexID) uint64 {
	return xxhash.Sum64String(string(v))
}

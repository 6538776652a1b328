/*
 * GraphStream
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package cluster implements the Partitioner: the push/pull transport that
hash-partitions inbound edges to their owning node and ships edges and
edge requests between peers. It is grounded on the teacher's
cluster/manager.Client - a peer connection map guarded by a single
sync.RWMutex, with a parallel "failed" set - but replaces EliasDB's
synchronous net/rpc calls with an asynchronous, best-effort push: each
peer gets numSockets independent outbound connections per traffic class,
each owned by exactly one sender goroutine, and a bounded channel stands
in for the high-water mark.
*/
package cluster

import "log"

/*
Logger matches the teacher's cluster/manager.Logger signature so a
deployment can redirect GraphStream's transport logging the same way it
would redirect EliasDB's cluster logging.
*/
type Logger func(v ...interface{})

/*
LogInfo is called for informational transport events (an accept error
that stops a listener's accept loop). Disabled logging should set this to LogNull, the
same convention the teacher uses.
*/
var LogInfo = Logger(log.Print)

/*
LogDebug is called for high-volume transport events (one line per
dropped send); disabled by default.
*/
var LogDebug = Logger(LogNull)

/*
LogNull discards every message passed to it.
*/
func LogNull(v ...interface{}) {}

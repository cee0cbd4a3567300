// Package relay forwards UDP media packets between conference endpoints.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Every datagram is read into a pooled buffer and fanned out through a worker
// executor to the other endpoints of the sender's conference. The number of
// receivers per packet is capped by a last-N limit that the overload package
// lowers under stress.
package relay

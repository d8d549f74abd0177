// Package transport establishes the single TCP connection a transfer
// session runs over.
//
// Either end of a transfer may listen while the other connects, so the
// two axes are independent: Role (sender or receiver) and Mode (connect
// or listen). A connecting sender retries with a fixed delay, which
// lets it be started before the listening receiver is up. A connecting
// receiver gets one attempt. A listener accepts exactly one connection
// and then stops listening; the protocol is strictly two-party.
package transport

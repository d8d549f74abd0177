// Package session implements the per-entry transfer state machine that
// runs over an established connection.
//
// A session is a sequence of entries, each following the same exchange:
//
//	sender                          receiver
//	  Meta          ------------->
//	                <-------------  PreflightOk | PreflightFail
//	  TransferStart ------------->                (files only)
//	  payload bytes ------------->                (files only)
//	                <-------------  TransferResult
//
// Directory entries skip TransferStart and the payload; they still close
// with a TransferResult. The sender aborts the whole session on the
// first PreflightFail. The receiver answers PreflightFail and keeps
// consuming entries. A clean connection close is legal only between
// entries, immediately before a Meta.
//
// Files are materialized through a temporary file next to the final
// path and renamed into place only after every payload byte arrived, so
// a failed transfer never leaves a partial file under the final name.
package session

// Package saxstream parses XML incrementally and delivers structural events
// to typed handlers without building a document tree.
//
// A parse session reads the source in fixed-size chunks, feeds each chunk to
// an incremental tokenizer and collects every event completed by that chunk
// into a batch. Batches are exposed as a lazy iter.Seq2 (see Batches) and
// drained by Dispatch, which calls one handler at a time in document order.
// Memory stays near one chunk plus whatever tag or text run is still open at
// a chunk boundary.
//
// Pipeline:
//   - Tokenizer adapter: wraps a Tokenizer and turns its callbacks into a flat
//     []Event per feed; tokenizer errors become *SyntaxError.
//   - Generator (Batches): one batch per chunk read, then a final batch that
//     contains only End.
//   - Dispatcher (Dispatch): invokes Handlers synchronously; the next event is
//     not delivered until the previous handler has returned.
//
// Everything runs on the caller's goroutine. Concurrent Parse calls share no
// state.
//
// The render helpers (RenderOpenTag, RenderCloseTag, EscapeText,
// EscapeAttribute) rebuild markup from received events for callers writing a
// transformed stream.
package saxstream

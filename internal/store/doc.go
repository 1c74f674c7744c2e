/*
Package store persists transcoded artifacts under opaque ids and serves
them back as seekable streams.

Ids are 32-character lowercase hex encodings of random v4 UUIDs. They are
generated only at Put time; the store never accepts caller-chosen ids, so
writes cannot collide or overwrite. Ids that are not exactly 32 hex
characters are rejected as not found without touching the backend, which
also forecloses path traversal on the filesystem backend.

Two backends implement the Store interface:

  - FS writes to a local (possibly NFS-mounted) directory. Puts stream to
    an adjacent .partial file, fsync, then rename into place, so a
    published artifact is always complete. Reads open the file directly;
    *os.File satisfies io.ReadSeekCloser, which gives HTTP range serving
    for free.

  - S3 uploads through s3manager and reads through ranged GetObject
    calls issued lazily on first read after a seek, so a range request
    for the tail of a video fetches only the tail.

There is no update, delete, or eviction: artifacts are immutable once
published and the store only grows.
*/
package store

/*
Package pipeline runs one upload through the ingest state machine:

	Received -> Validating -> Extracting -> Transcoding -> Storing -> Completed

with Failed reachable from every non-terminal state. Stages are strictly
ordered and share no state across requests; each request spools to its
own temp directory, which is always removed.

Failures carry a Stage and a Kind. The Stage says where the request died
and is the client-visible "stage" field; the Kind says why and decides
the HTTP status. Both double as the metric labels on the pipeline
failure counters, so dashboards, logs, and client responses all speak
the same vocabulary.

The artifact is only published after a fully successful transcode, and
the request context is checked immediately before the store write, so a
caller that disconnected never leaves an orphaned artifact.
*/
package pipeline

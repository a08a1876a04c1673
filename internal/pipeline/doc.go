// Package pipeline runs one ingestion pass: for every symbol it fetches raw
// records, normalizes them and upserts the result.
//
// A symbol moves through these states:
//
//	pending -> fetching -> fetched -> normalizing -> normalized -> upserting -> done
//
// Any stage may end in failed instead. A failed symbol never stops the run;
// its Outcome records the stage and an ErrorKind, and the next symbol starts.
// RunOnce always returns a Report and never an error.
package pipeline

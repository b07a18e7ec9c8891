// Package lake stores records in a log-structured table directory.
//
// A table is a directory of Parquet data files plus a _delta_log directory
// of numbered JSON commit files. Each commit file lists the actions of one
// atomic version: table creation, or the addition of one data file. A data
// file becomes visible only once the commit that adds it is published, and
// a version is published by hard-linking a fully written file into place,
// so concurrent committers race for a version number and the loser retries
// on the next one.
//
// Reads replay the log to the newest version, load every live data file
// and order the rows by creation instant. Files are never rewritten.
package lake

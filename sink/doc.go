// Package sink writes result tables to their destination.
//
// A target string names the destination:
//
//	-                                       CSV on stdout
//	out/report.csv                          CSV file
//	sqlite:out/report.db?table=privileges   SQLite table
//	postgres://u:p@host/db?table=t          PostgreSQL table
//	mysql://u:p@tcp(host:3306)/db?table=t   MySQL table
//	mongodb://host:27017/db?collection=c    MongoDB collection
//
// Database targets take mode=replace (the default) or mode=append. Replace
// recreates the table or collection; append adds rows to it. Every cell is
// stored as text under the header's column names.
package sink

// Package schemagen generates DRL fact type declarations from relational
// mapping metadata.
//
// Classes come from a SQLite schema (Introspect), a CUE model file
// (LoadModel), or are built by hand. Builder maps every attribute through
// a fixed type table:
//
//	char, clob, nchar, nvarchar, text, string, unicode, varchar -> String
//	bigint, biginteger                                        -> Long
//	int, integer                                              -> Integer
//	boolean                                                   -> Boolean
//	date, datetime, timestamp                                 -> java.util.Date
//	time                                                      -> java.time.LocalTime
//	decimal                                                   -> java.math.BigDecimal
//	float                                                     -> Float
//	real                                                      -> Double
//	blob, binary, array, enum, varbinary                      -> dropped
//
// Many-to-one relations are typed by the related class; one-to-many
// relations become java.util.List or java.util.Set of it. Anything else
// fails with *UnmappableFieldError unless the attribute is ignored.
package schemagen

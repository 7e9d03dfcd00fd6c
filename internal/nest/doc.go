// Package nest turns flat, denormalized rows (typically the result of a
// multi-table join) into nested entries described by a declarative schema.
//
// A schema is an ordered list of Property values:
//
//   - Scalar copies one column into one field. Identifier scalars form the
//     identity key of the entity that declares them.
//   - Single builds a nested object from the current row, or nil when one of
//     its identifier columns is absent.
//   - Collection builds a nested list whose items are deduplicated by their
//     own identifier columns across rows.
//
// Entities repeated across rows are merged: the first row that presents a new
// identity creates the entry, later rows with the same identity update its
// scalar fields and extend its collections. Output order is first-seen order
// at every level.
//
// Absent values are Go nil. A row that does not contain a referenced column at
// all is a schema/data mismatch and fails with ErrMissingColumn.
package nest

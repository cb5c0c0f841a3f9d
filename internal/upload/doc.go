// Package upload implements the mass upload pipeline that turns a spreadsheet
// of rows into mutations against a store.
//
// A batch runs through four phases, strictly in sequence:
//
//   - Verify: checks the header row against the upload type's column catalog
//     and rejects individual rows with blank or broken required cells.
//   - Extract: coerces the cells of every accepted row into typed values and
//     resolves the row action (add, change, add-or-change, delete).
//   - Transform: hands each record to the upload type's Transformer, which
//     builds the domain entity and applies business rules.
//   - Load: drops duplicate entities and applies each remaining record to the
//     store through the upload type's Loader.
//
// Every phase writes into the Run it receives: the Result collects counters
// and row-indexed diagnostics, and the SkipSet records rows that must not be
// processed further. Rows are processed in sheet order and never in parallel.
// Separate batches use separate Runs and share nothing but the store.
//
// Upload types are registered once at startup in a Registry that maps the
// type identifier to its column catalog, transformer factory and loader:
//
//	registry, err := upload.NewRegistry(yieldparam.Definition(repo))
//	pipeline := upload.NewPipeline(registry, upload.WithLogger(logger))
//	run, err := pipeline.Run(ctx, sheet, upload.Request{
//		Type: yieldparam.Type,
//		User: "jdoe",
//	})
//	summary := run.Result.Counts()
//
// Only an unknown upload type is returned as an error. Everything that can go
// wrong with the sheet content is reported through the Result.
package upload

// Package preflight runs the environment checks behind "mindual doctor".
//
// Required checks fail the command:
//   - free disk space under the data directory (100 MB minimum)
//   - write access to the data directory
//   - the open file limit (1024 minimum; bleve keeps segment files open)
//
// The rest only warn, because part of the tool still works without them:
//   - pdftoppm on PATH, needed to render pages for OCR
//   - GEMINI_API_KEY, needed for OCR, answers and gemini embeddings
//   - the SQLite database, created by "mindual init" or the first ingest
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{DataDir: "data"})
//	if checker.HasCriticalFailures(results) {
//	    // report and exit non-zero
//	}
package preflight

// Package core provides the business logic for payment import operations.
//
// This package is the heart of the payment importer, containing all domain
// logic independent of any UI, transport or storage layer. It is used by the
// web handlers, the payimport CLI and tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Field mapping: a [FieldMapping] names the source column of each
//     canonical [Field]. Unmapped fields are skipped.
//   - Coercion: [ParseAmount], [ParseDate], [ParseMode], [ParseAbsInt] and
//     [SanitizeText] turn raw cells into domain values and never fail a row.
//   - Building: a [Builder] turns one row into a saved [Payment], resolving
//     customers, users, gateways and catalog items on the way.
//   - Scheduling: a [Scheduler] selects the rows of one step from a
//     resumable [ImportState].
//   - Service: [Service] is the entry point for jobs, templates and previews.
//
// # Import Steps
//
// An import advances one step per call. The caller persists the returned
// state and calls again until the step reports no more work:
//
//	report, err := svc.RunStep(ctx, op, jobID)
//	for err == nil && report.More {
//	    report, err = svc.RunStep(ctx, op, jobID)
//	}
//
// The same state always selects the same rows, so an interrupted import
// resumes where it stopped. Steps across jobs are bounded by a
// [StepLimiter], and one job never runs two steps at once.
//
// # Gateways
//
// Gateway cells are resolved against a [GatewayRegistry] by key, then by
// checkout label, then by admin label:
//
//	reg := core.NewDefaultGatewayRegistry()
//	key, ok := reg.Resolve("PayPal") // "paypal", true
//
// # Error Handling
//
// Row problems are recovered and reported as [RowIssue] values. Technical
// errors are mapped to user-friendly messages using [MapError]. Each error
// category has a unique code for support reference:
//
//   - AUTH001-AUTH002: Permission and credential errors
//   - JOB001-JOB007: Job and request lifecycle errors
//   - IMP001-IMP005: Mapping and value errors
//   - FILE001-FILE005: File errors (size, format, encoding)
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - RATE001-RATE002: Rate limiting
//
// # Audit Logging
//
// Job and template changes are recorded through an optional [AuditStore]
// with severity levels:
//
//   - Low: Template changes
//   - Medium: Job start and cancel
//   - High: Job creation, completion and failure
package core

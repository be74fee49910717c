// Package core provides the domain logic of the circadian tracker.
//
// It holds everything that does not touch the disk or the network, so the
// HTTP server, the CLI and tests share it without modification.
//
// # Validation
//
// A [Validator] checks raw input collected by a boundary layer and returns a
// [Verdict]. A failed verdict carries an [ErrorKind] and a message; a
// successful one may carry advisory warnings (blood pressure bands, unusual
// energy/heart-rate combinations).
//
//	v := core.NewValidator(time.Local)
//	rec, verdict := v.ParseEntry(core.Fields{
//	    "person_id":    "john_doe",
//	    "timestamp":    "2024-01-01 08:00:00",
//	    "heart_rate":   70,
//	    "systolic_bp":  120,
//	    "diastolic_bp": 80,
//	    "energy_level": 5,
//	})
//
// The Validator owns the clock and the location used to read timestamps
// without an offset, so time-dependent checks are deterministic in tests.
//
// # Imports
//
// [ReadImport] reads an uploaded CSV into a [Table]; [Validator.ParseTable]
// coerces and validates every row independently and reports capped, row
// numbered messages in a [BatchVerdict].
//
// # Patterns
//
// [HourlyPattern], [WeekdayPattern], [Correlations], [PeakEnergyHours] and
// [BuildInsights] aggregate records into the circadian views.
//
// # Error Handling
//
// Storage and import failures are returned as [*Error] values classified by
// kind. [MapError] turns any error into a [UserMessage] with a support code:
//
//   - VAL001-VAL006: entry validation
//   - FILE001-FILE004: uploaded file problems
//   - STO001-STO003: storage conflicts and I/O
//   - SYS001-SYS004: busy, cancelled, timed out, warehouse disabled
package core

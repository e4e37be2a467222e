// Package logging provides the subsystem logger used across multibranch.
//
// It is a thin layer over log/slog. Every record carries a "subsystem"
// attribute and, for failures, an "error" attribute, so that reconciliation
// activity for one project can be filtered out of a busy log.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Engine", "Created child %s for project %s", name, project)
//	logging.Warn("Store", "Template for %s unreadable, using defaults", project)
//	logging.Error("Engine", err, "Failed to fetch branch heads for %s", project)
//
// Structured activity records (one per reconciled child) go through Record:
//
//	logging.Record(logging.LevelInfo, "Engine", nil, "child synced",
//	    slog.String("project", "api"), slog.String("child", "main"))
//
// # Formats
//
// Init accepts FormatText (the default, human oriented) or FormatJSON for log
// shippers. ParseLevel maps the config file's level strings.
//
// # Thread Safety
//
// All functions are safe for concurrent use. Calls made before Init only
// surface warnings and errors on stderr.
package logging

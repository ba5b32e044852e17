// Package constants is responsible for defining the constants used in the application.
package constants

import "log/slog"

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the lead intake daemon.
	CmdName = "lead-intake"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn
)

// Upstream defaults.
const (
	// DefaultCRMBaseURL is the HubSpot API root.
	DefaultCRMBaseURL = "https://api.hubapi.com"

	// DefaultEstimateBaseURL is the Gemini generative language API root.
	DefaultEstimateBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultEstimateModel is the model asked for price estimates.
	DefaultEstimateModel = "gemini-2.5-flash"

	// DefaultLeadsCollection is the document store collection (or table) holding archived leads.
	DefaultLeadsCollection = "leads"

	// LeadStatusNew is the status marker attached to every contact created in the CRM.
	LeadStatusNew = "NEW"
)

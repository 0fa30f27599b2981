package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (invalid config, no library)
	ExitDataError   = 3 // Data error (malformed input, unreadable index)
	ExitNoMatch     = 4 // Input is not a DOI, arXiv id or URL
	ExitPartial     = 5 // Some documents in a batch failed
)

package app

// CliOptions is the contract between an application and its options struct.
// Any options struct implementing this interface can be used with App.
type CliOptions interface {
	// Flags returns the flags grouped by section.
	Flags() NamedFlagSets
	// Complete fills in defaults and derived fields after config loading.
	Complete() error
	// Validate validates the options.
	Validate() error
}

// PrintableOptions is an optional interface for options that can print
// themselves, with secrets redacted.
type PrintableOptions interface {
	String() string
}

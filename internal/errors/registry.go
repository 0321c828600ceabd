package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Configuration (E100-E119)

	"E100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "The config file passed with --config does not exist.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "The config file is not valid YAML or JSON, or a field has the wrong type.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid listen address",
		Detail:   "The address must be host:port, for example \":6671\" or \"127.0.0.1:6671\".",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid capture size",
		Detail:   "Capture width and height must be positive and at most 4096.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid frame rate",
		Detail:   "capture.fps must be between 1 and 240.",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Static directory not found",
		Detail:   "static_dir must name an existing directory holding the viewer files.",
	},
	"E106": {
		Category: CategoryConfig,
		Message:  "Incomplete S3 asset configuration",
		Detail:   "assets.s3 needs both a bucket and a region.",
	},
	"E107": {
		Category: CategoryConfig,
		Message:  "Invalid log level",
		Detail:   "log_level must be one of debug, info, warn or error.",
	},
	"E108": {
		Category: CategoryConfig,
		Message:  "Invalid websocket limits",
		Detail:   "websocket.max_message_size and websocket.send_queue must not be negative.",
	},

	// CLI (E140-E149)

	"E140": {
		Category: CategoryTransport,
		Message:  "Server failed to start",
		Detail:   "The HTTP listener could not be opened. Another process may be using the port.",
	},
	"E141": {
		Category: CategoryLevel,
		Message:  "No embedded level data",
		Detail:   "The guideline string does not contain an embedded level payload.",
	},
	"E142": {
		Category: CategoryLevel,
		Message:  "Invalid level data",
		Detail:   "The payload is not a valid level data document.",
	},
	"E143": {
		Category: CategoryCLI,
		Message:  "Input read failed",
		Detail:   "The input file or stdin could not be read.",
	},
	"E144": {
		Category: CategoryCLI,
		Message:  "Browser launch failed",
		Detail:   "The viewer could not be opened in the default browser.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

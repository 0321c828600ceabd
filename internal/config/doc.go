// Package config loads the spc.yaml configuration file.
//
// The file may be YAML or JSON. Every field is optional; missing values take
// the defaults (":6671", 440x240 at 30 fps, metrics on).
//
// # Configuration File Structure
//
//	address: ":6671"
//	static_dir: ./viewer
//	assets:
//	  s3:
//	    bucket: spc-viewer
//	    region: us-east-1
//	    endpoint: http://localhost:9000
//	    prefix: viewer
//	capture:
//	  width: 440
//	  height: 240
//	  fps: 30
//	websocket:
//	  write_timeout: 5s
//	  max_message_size: 65536
//	  send_queue: 256
//	metrics: true
//	tracing: false
//	open_browser: true
//	log_level: info
//
// # Usage
//
//	cfg, err := config.LoadOptional(path, ".")
//	if err != nil {
//	    errors.PrintError(err)
//	    os.Exit(1)
//	}
//	if err := cfg.Validate(); err != nil { ... }
package config

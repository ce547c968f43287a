// Package failsift provides the public API for embedding the failure
// pattern detector. This is the stable API for external consumers.
package failsift

import (
	"github.com/failsift/failsift/internal/runtime"
)

// Detector is the main entry point for running the detection service.
// See internal/runtime.Detector for full documentation.
type Detector = runtime.Detector

// Option is a functional option for configuring a Detector.
type Option = runtime.Option

// New creates a new Detector with the given options.
// Example:
//
//	d, err := failsift.New(
//	    failsift.WithConfigFile("failsift.yaml"),
//	    failsift.WithSQLite("file:failsift.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithConfig     = runtime.WithConfig
	WithConfigFile = runtime.WithConfigFile

	// Storage
	WithSQLite            = runtime.WithSQLite
	WithPostgres          = runtime.WithPostgres
	WithMySQL             = runtime.WithMySQL
	WithMemoryStore       = runtime.WithMemoryStore
	WithConfiguredStorage = runtime.WithConfiguredStorage

	// Notification
	WithNotifier = runtime.WithNotifier

	// Advanced options
	WithLogger         = runtime.WithLogger
	WithFailureStore   = runtime.WithFailureStore
	WithActionStore    = runtime.WithActionStore
	WithClusterInvoker = runtime.WithClusterInvoker
	WithEngine         = runtime.WithEngine
)

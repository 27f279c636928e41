// Package ext defines the extension system for Stageflow. Extensions
// are notified of lifecycle events (definition saved, instance started,
// stage advanced, etc.) and can react to them — logging, metrics,
// syncing an external task board, and so on.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

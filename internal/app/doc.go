// Package app wires the evaluation engine together: configuration, logging,
// page loading, the worker lifecycle, and the optional serve and watch
// loops.
package app
